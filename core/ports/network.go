package ports

import (
	"context"

	"github.com/netresearch/testenv/core/domain"
)

// NetworkService provides operations for managing networks.
type NetworkService interface {
	// List returns a list of networks matching the options.
	List(ctx context.Context, opts domain.NetworkListOptions) ([]domain.Network, error)

	// Inspect returns detailed information about a network.
	Inspect(ctx context.Context, networkID string) (*domain.Network, error)

	// Create creates a new network and returns its ID.
	Create(ctx context.Context, name string, opts domain.NetworkCreateOptions) (string, error)

	// Remove removes a network.
	Remove(ctx context.Context, networkID string) error
}
