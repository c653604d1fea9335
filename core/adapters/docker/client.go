// Package docker provides an adapter for the official Docker SDK.
package docker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/client"

	"github.com/netresearch/testenv/core/ports"
)

// Client implements ports.DockerClient using the official Docker SDK.
type Client struct {
	sdk  *client.Client
	host string

	containers *ContainerServiceAdapter
	images     *ImageServiceAdapter
	networks   *NetworkServiceAdapter
	system     *SystemServiceAdapter
}

// ClientConfig contains configuration for the Docker client.
type ClientConfig struct {
	// Host is the Docker host address (e.g., "unix:///var/run/docker.sock").
	// Empty means DOCKER_HOST or the platform default.
	Host string

	// Version is the API version (empty for auto-negotiation)
	Version string

	// Connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Timeout settings
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
	}
}

// NewClient creates a new Docker client from environment variables.
func NewClient() (*Client, error) {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithOptions creates a client from the generic port options.
func NewClientWithOptions(opts ...ports.ClientOption) (*Client, error) {
	o := &ports.ClientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	config := DefaultConfig()
	config.Host = o.Host
	config.Version = o.Version
	return NewClientWithConfig(config)
}

// NewClientWithConfig creates a new Docker client with custom configuration.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}

	if config.Host != "" {
		opts = append(opts, client.WithHost(config.Host))
	}

	if config.Version != "" {
		opts = append(opts, client.WithVersion(config.Version))
	}

	if httpClient := createHTTPClient(config); httpClient != nil {
		opts = append(opts, client.WithHTTPClient(httpClient))
	}

	sdk, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	return newClientFromSDK(sdk), nil
}

// newClientFromSDK wraps an existing SDK client.
func newClientFromSDK(sdk *client.Client) *Client {
	c := &Client{sdk: sdk, host: publishedHost(sdk.DaemonHost())}
	c.containers = &ContainerServiceAdapter{client: sdk}
	c.images = &ImageServiceAdapter{client: sdk}
	c.networks = &NetworkServiceAdapter{client: sdk}
	c.system = &SystemServiceAdapter{client: sdk}
	return c
}

// createHTTPClient creates an HTTP client with connection pooling.
func createHTTPClient(config *ClientConfig) *http.Client {
	host := config.Host
	if host == "" {
		host = os.Getenv(client.EnvOverrideHost)
	}
	if host == "" {
		host = client.DefaultDockerHost
	}

	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
	}

	switch {
	case strings.HasPrefix(host, "unix://"):
		socketPath := strings.TrimPrefix(host, "unix://")
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: config.DialTimeout}
			return dialer.DialContext(ctx, "unix", socketPath)
		}
		// HTTP/2 not supported on Unix sockets
		transport.ForceAttemptHTTP2 = false
	case strings.HasPrefix(host, "tcp://"), strings.HasPrefix(host, "http://"):
		transport.DialContext = (&net.Dialer{Timeout: config.DialTimeout}).DialContext
		transport.ForceAttemptHTTP2 = false
	default:
		// npipe, ssh and TLS setups keep the SDK's own transport
		return nil
	}

	return &http.Client{
		Transport: transport,
		Timeout:   0, // No overall timeout; individual operations have timeouts
	}
}

// publishedHost derives the host name under which published ports are
// reachable. Local sockets publish on localhost; a remote daemon publishes
// on its own address.
func publishedHost(daemonHost string) string {
	u, err := url.Parse(daemonHost)
	if err != nil {
		return "localhost"
	}
	switch u.Scheme {
	case "tcp", "http", "https":
		if h := u.Hostname(); h != "" {
			return h
		}
	}
	return "localhost"
}

// Containers returns the container service.
func (c *Client) Containers() ports.ContainerService {
	return c.containers
}

// Images returns the image service.
func (c *Client) Images() ports.ImageService {
	return c.images
}

// Networks returns the network service.
func (c *Client) Networks() ports.NetworkService {
	return c.networks
}

// System returns the system service.
func (c *Client) System() ports.SystemService {
	return c.system
}

// Host returns the host name for published ports.
func (c *Client) Host() string {
	return c.host
}

// Close closes the client.
func (c *Client) Close() error {
	if err := c.sdk.Close(); err != nil {
		return fmt.Errorf("closing docker client: %w", err)
	}
	return nil
}

// SDK returns the underlying Docker SDK client.
// This should only be used for operations not covered by the ports interface.
func (c *Client) SDK() *client.Client {
	return c.sdk
}
