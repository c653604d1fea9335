// Package domain contains SDK-agnostic models for the container engine.
// These types are independent of any specific Docker client implementation.
package domain

import (
	"io"
	"time"
)

// Container represents a container as reported by the engine.
type Container struct {
	ID      string
	Name    string
	Image   string
	State   ContainerState
	Created time.Time
	Labels  map[string]string
	Mounts  []Mount
	Config  *ContainerConfig

	// Ports holds the published port bindings, keyed by container port
	// ("5432/tcp"). Only populated by Inspect.
	Ports PortMap

	// Networks maps network names to the container's address on them.
	Networks map[string]string
}

// ContainerState represents the state of a container.
type ContainerState struct {
	Status     string // "created", "running", "exited", ...
	Running    bool
	Paused     bool
	Restarting bool
	OOMKilled  bool
	Dead       bool
	Pid        int
	ExitCode   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Health     *Health
}

// Health represents container health check status.
type Health struct {
	Status        string // "healthy", "unhealthy", "starting", "none"
	FailingStreak int
}

// ContainerConfig represents the configuration for creating a container.
type ContainerConfig struct {
	Image      string
	Cmd        []string
	Entrypoint []string
	Env        []string
	Labels     map[string]string
	Hostname   string

	// ExposedPorts lists container ports ("8080/tcp") to expose.
	ExposedPorts []Port

	HostConfig    *HostConfig
	NetworkConfig *NetworkConfig

	// Container name (optional)
	Name string
}

// HostConfig contains the host-specific configuration for a container.
type HostConfig struct {
	Binds        []string // Volume bindings in format "host:container[:options]"
	Mounts       []Mount
	NetworkMode  string
	PortBindings PortMap
	AutoRemove   bool
	ShmSize      int64
	Tmpfs        map[string]string
}

// Mount represents a mount configuration.
type Mount struct {
	Type     MountType
	Source   string
	Target   string
	ReadOnly bool
}

// MountType represents the type of mount.
type MountType string

const (
	MountTypeBind   MountType = "bind"
	MountTypeVolume MountType = "volume"
	MountTypeTmpfs  MountType = "tmpfs"
)

// NetworkConfig contains networking configuration for a container.
type NetworkConfig struct {
	EndpointsConfig map[string]*EndpointSettings
}

// EndpointSettings represents the settings for a network endpoint.
type EndpointSettings struct {
	Aliases   []string
	NetworkID string
	IPAddress string
}

// PortMap is a map of ports to their bindings.
type PortMap map[Port][]PortBinding

// Port represents a container port with protocol, e.g. "5432/tcp".
type Port string

// PortBinding represents a port binding.
type PortBinding struct {
	HostIP   string
	HostPort string
}

// ListOptions represents options for listing containers.
type ListOptions struct {
	All     bool                // Show all containers (default shows just running)
	Filters map[string][]string // Filters to apply
}

// RemoveOptions represents options for removing a container.
type RemoveOptions struct {
	RemoveVolumes bool
	Force         bool
}

// LogOptions represents options for retrieving container logs.
type LogOptions struct {
	ShowStdout bool
	ShowStderr bool
	Since      string
	Follow     bool
	Tail       string
}

// CopyOptions represents options for copying content into a container.
type CopyOptions struct {
	AllowOverwriteDirWithFile bool
}

// LogsReader provides methods to read container logs.
type LogsReader interface {
	io.ReadCloser
}
