// Package mock provides mock implementations of the ports interfaces for testing.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netresearch/testenv/core/domain"
	"github.com/netresearch/testenv/core/ports"
)

// DockerClient is a mock implementation of ports.DockerClient.
type DockerClient struct {
	mu sync.RWMutex

	containers *ContainerService
	images     *ImageService
	networks   *NetworkService
	system     *SystemService

	host     string
	closed   bool
	closeErr error
}

// NewDockerClient creates a new mock DockerClient.
func NewDockerClient() *DockerClient {
	return &DockerClient{
		containers: NewContainerService(),
		images:     NewImageService(),
		networks:   NewNetworkService(),
		system:     NewSystemService(),
		host:       "localhost",
	}
}

// Containers returns the container service.
func (c *DockerClient) Containers() ports.ContainerService {
	return c.containers
}

// Images returns the image service.
func (c *DockerClient) Images() ports.ImageService {
	return c.images
}

// Networks returns the network service.
func (c *DockerClient) Networks() ports.NetworkService {
	return c.networks
}

// System returns the system service.
func (c *DockerClient) System() ports.SystemService {
	return c.system
}

// Host returns the host name for published ports.
func (c *DockerClient) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// SetHost sets the value returned by Host().
func (c *DockerClient) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = host
}

// Close closes the client.
func (c *DockerClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

// SetCloseError sets the error returned by Close().
func (c *DockerClient) SetCloseError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeErr = err
}

// IsClosed returns true if the client has been closed.
func (c *DockerClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// ContainerService is a mock implementation of ports.ContainerService.
// Without callbacks it behaves like a small in-memory engine: created
// containers can be started, inspected and removed, and published ports get
// sequential host ports.
type ContainerService struct {
	mu sync.RWMutex

	// Callbacks for customizing behavior
	OnCreate  func(ctx context.Context, config *domain.ContainerConfig) (string, error)
	OnStart   func(ctx context.Context, containerID string) error
	OnStop    func(ctx context.Context, containerID string, timeout *time.Duration) error
	OnRemove  func(ctx context.Context, containerID string, opts domain.RemoveOptions) error
	OnInspect func(ctx context.Context, containerID string) (*domain.Container, error)
	OnList    func(ctx context.Context, opts domain.ListOptions) ([]domain.Container, error)
	OnLogs    func(ctx context.Context, containerID string, opts domain.LogOptions) (io.ReadCloser, error)
	OnCopyTo  func(ctx context.Context, containerID, dstPath string, content io.Reader) error

	// HostPort chooses the published host port for a container port.
	// Defaults to sequential ports starting at 49153.
	HostPort func(containerID string, port domain.Port) string

	// LogsByImage is returned by Logs for containers of the given image.
	LogsByImage map[string]string

	// Call tracking
	CreateCalls  []CreateContainerCall
	StartCalls   []string
	StopCalls    []StopContainerCall
	RemoveCalls  []RemoveContainerCall
	InspectCalls []string
	ListCalls    []domain.ListOptions
	LogsCalls    []LogsCall
	CopyToCalls  []CopyToCall

	containers map[string]*domain.Container
	nextID     int
	nextPort   int
}

// CreateContainerCall represents a call to Create().
type CreateContainerCall struct {
	Config *domain.ContainerConfig
}

// StopContainerCall represents a call to Stop().
type StopContainerCall struct {
	ContainerID string
	Timeout     *time.Duration
}

// RemoveContainerCall represents a call to Remove().
type RemoveContainerCall struct {
	ContainerID string
	Options     domain.RemoveOptions
}

// LogsCall represents a call to Logs().
type LogsCall struct {
	ContainerID string
	Options     domain.LogOptions
}

// CopyToCall represents a call to CopyTo(). Content holds the bytes read.
type CopyToCall struct {
	ContainerID string
	DstPath     string
	Content     []byte
}

// NewContainerService creates a new mock ContainerService.
func NewContainerService() *ContainerService {
	return &ContainerService{
		LogsByImage: make(map[string]string),
		containers:  make(map[string]*domain.Container),
		nextPort:    49153,
	}
}

// Create creates a container.
func (s *ContainerService) Create(ctx context.Context, config *domain.ContainerConfig) (string, error) {
	s.mu.Lock()
	s.CreateCalls = append(s.CreateCalls, CreateContainerCall{Config: config})
	s.mu.Unlock()

	if s.OnCreate != nil {
		return s.OnCreate(ctx, config)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("mock-container-%d", s.nextID)
	s.containers[id] = &domain.Container{
		ID:      id,
		Name:    config.Name,
		Image:   config.Image,
		Created: time.Now(),
		Labels:  config.Labels,
		Config:  config,
		State:   domain.ContainerState{Status: "created"},
	}
	return id, nil
}

// Start starts a container.
func (s *ContainerService) Start(ctx context.Context, containerID string) error {
	s.mu.Lock()
	s.StartCalls = append(s.StartCalls, containerID)
	s.mu.Unlock()

	if s.OnStart != nil {
		return s.OnStart(ctx, containerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[containerID]
	if !ok {
		return &domain.ContainerNotFoundError{ID: containerID}
	}
	c.State = domain.ContainerState{Status: "running", Running: true, StartedAt: time.Now()}
	c.Ports = make(domain.PortMap)
	for _, port := range c.Config.ExposedPorts {
		c.Ports[port] = []domain.PortBinding{{HostIP: "0.0.0.0", HostPort: s.allocatePortLocked(containerID, port)}}
	}
	return nil
}

func (s *ContainerService) allocatePortLocked(containerID string, port domain.Port) string {
	if s.HostPort != nil {
		return s.HostPort(containerID, port)
	}
	p := s.nextPort
	s.nextPort++
	return strconv.Itoa(p)
}

// Stop stops a container.
func (s *ContainerService) Stop(ctx context.Context, containerID string, timeout *time.Duration) error {
	s.mu.Lock()
	s.StopCalls = append(s.StopCalls, StopContainerCall{ContainerID: containerID, Timeout: timeout})
	s.mu.Unlock()

	if s.OnStop != nil {
		return s.OnStop(ctx, containerID, timeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.containers[containerID]; ok {
		c.State.Running = false
		c.State.Status = "exited"
	}
	return nil
}

// Remove removes a container.
func (s *ContainerService) Remove(ctx context.Context, containerID string, opts domain.RemoveOptions) error {
	s.mu.Lock()
	s.RemoveCalls = append(s.RemoveCalls, RemoveContainerCall{ContainerID: containerID, Options: opts})
	s.mu.Unlock()

	if s.OnRemove != nil {
		return s.OnRemove(ctx, containerID, opts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[containerID]; !ok {
		return &domain.ContainerNotFoundError{ID: containerID}
	}
	delete(s.containers, containerID)
	return nil
}

// Inspect returns container information.
func (s *ContainerService) Inspect(ctx context.Context, containerID string) (*domain.Container, error) {
	s.mu.Lock()
	s.InspectCalls = append(s.InspectCalls, containerID)
	s.mu.Unlock()

	if s.OnInspect != nil {
		return s.OnInspect(ctx, containerID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[containerID]
	if !ok {
		return nil, &domain.ContainerNotFoundError{ID: containerID}
	}
	clone := *c
	return &clone, nil
}

// List lists containers. Only "label" filters are honoured.
func (s *ContainerService) List(ctx context.Context, opts domain.ListOptions) ([]domain.Container, error) {
	s.mu.Lock()
	s.ListCalls = append(s.ListCalls, opts)
	s.mu.Unlock()

	if s.OnList != nil {
		return s.OnList(ctx, opts)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.Container{}
	for _, c := range s.containers {
		if !opts.All && !c.State.Running {
			continue
		}
		if matchLabels(c.Labels, opts.Filters["label"]) {
			result = append(result, *c)
		}
	}
	return result, nil
}

func matchLabels(labels map[string]string, filters []string) bool {
	for _, f := range filters {
		key, value, hasValue := strings.Cut(f, "=")
		got, ok := labels[key]
		if !ok || (hasValue && got != value) {
			return false
		}
	}
	return true
}

// Logs returns container logs.
func (s *ContainerService) Logs(ctx context.Context, containerID string, opts domain.LogOptions) (io.ReadCloser, error) {
	s.mu.Lock()
	s.LogsCalls = append(s.LogsCalls, LogsCall{ContainerID: containerID, Options: opts})
	s.mu.Unlock()

	if s.OnLogs != nil {
		return s.OnLogs(ctx, containerID, opts)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[containerID]
	if !ok {
		return nil, &domain.ContainerNotFoundError{ID: containerID}
	}
	return io.NopCloser(strings.NewReader(s.LogsByImage[c.Image])), nil
}

// CopyTo copies a tar archive into a container.
func (s *ContainerService) CopyTo(ctx context.Context, containerID, dstPath string, content io.Reader, _ domain.CopyOptions) error {
	var buf bytes.Buffer
	if content != nil {
		if _, err := io.Copy(&buf, content); err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
	}

	s.mu.Lock()
	s.CopyToCalls = append(s.CopyToCalls, CopyToCall{ContainerID: containerID, DstPath: dstPath, Content: buf.Bytes()})
	s.mu.Unlock()

	if s.OnCopyTo != nil {
		return s.OnCopyTo(ctx, containerID, dstPath, bytes.NewReader(buf.Bytes()))
	}
	return nil
}

// Running returns the IDs of containers currently known to the fake engine.
func (s *ContainerService) Running() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.containers))
	for id, c := range s.containers {
		if c.State.Running {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns the number of containers the fake engine still holds.
func (s *ContainerService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.containers)
}

// Calls returns copies of the tracked Create/Start/Remove calls.
func (s *ContainerService) Calls() (creates []CreateContainerCall, starts []string, removes []RemoveContainerCall) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CreateContainerCall(nil), s.CreateCalls...),
		append([]string(nil), s.StartCalls...),
		append([]RemoveContainerCall(nil), s.RemoveCalls...)
}
