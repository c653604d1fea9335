// Package ports defines the port interfaces for container engine operations.
// These interfaces abstract the Docker client implementation so the
// provisioner can be driven by a mock engine in tests.
package ports

// DockerClient is the main interface for engine operations.
// It provides access to specialized service interfaces for the resource
// types the provisioner works with.
type DockerClient interface {
	// Containers returns the container service interface.
	Containers() ContainerService

	// Images returns the image service interface.
	Images() ImageService

	// Networks returns the network service interface.
	Networks() NetworkService

	// System returns the system service interface.
	System() SystemService

	// Host returns the host name under which published container ports are
	// reachable from the test process.
	Host() string

	// Close closes the client and releases resources.
	Close() error
}

// ClientOption is a function that configures a DockerClient.
type ClientOption func(*ClientOptions)

// ClientOptions contains options for creating a DockerClient.
type ClientOptions struct {
	// Host is the Docker host address.
	Host string

	// Version is the API version to use.
	Version string
}

// WithHost sets the Docker host address.
func WithHost(host string) ClientOption {
	return func(o *ClientOptions) {
		o.Host = host
	}
}

// WithVersion sets the API version.
func WithVersion(version string) ClientOption {
	return func(o *ClientOptions) {
		o.Version = version
	}
}
