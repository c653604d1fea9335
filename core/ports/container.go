package ports

import (
	"context"
	"io"
	"time"

	"github.com/netresearch/testenv/core/domain"
)

// ContainerService provides operations for managing containers.
type ContainerService interface {
	// Create creates a new container.
	// Returns the container ID on success.
	Create(ctx context.Context, config *domain.ContainerConfig) (string, error)

	// Start starts a created container.
	Start(ctx context.Context, containerID string) error

	// Stop stops a running container.
	// If timeout is nil, the engine default is used.
	Stop(ctx context.Context, containerID string, timeout *time.Duration) error

	// Remove removes a container.
	Remove(ctx context.Context, containerID string, opts domain.RemoveOptions) error

	// Inspect returns detailed information about a container, including its
	// published ports.
	Inspect(ctx context.Context, containerID string) (*domain.Container, error)

	// List returns a list of containers matching the options.
	List(ctx context.Context, opts domain.ListOptions) ([]domain.Container, error)

	// Logs returns the demultiplexed logs of a container.
	// The returned ReadCloser must be closed by the caller.
	Logs(ctx context.Context, containerID string, opts domain.LogOptions) (io.ReadCloser, error)

	// CopyTo extracts a tar archive into the container at dstPath.
	CopyTo(ctx context.Context, containerID, dstPath string, content io.Reader, opts domain.CopyOptions) error
}
