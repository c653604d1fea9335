package docker

import (
	"context"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/netresearch/testenv/core/domain"
)

// NetworkServiceAdapter implements ports.NetworkService using Docker SDK.
type NetworkServiceAdapter struct {
	client *client.Client
}

// List lists networks.
func (s *NetworkServiceAdapter) List(ctx context.Context, opts domain.NetworkListOptions) ([]domain.Network, error) {
	networks, err := s.client.NetworkList(ctx, network.ListOptions{
		Filters: convertToFilters(opts.Filters),
	})
	if err != nil {
		return nil, convertError(err)
	}

	result := make([]domain.Network, len(networks))
	for i, n := range networks {
		result[i] = convertFromNetworkResource(&n)
	}
	return result, nil
}

// Inspect returns network information.
func (s *NetworkServiceAdapter) Inspect(ctx context.Context, networkID string) (*domain.Network, error) {
	n, err := s.client.NetworkInspect(ctx, networkID, network.InspectOptions{})
	if err != nil {
		if domain.IsNotFound(convertError(err)) {
			return nil, &domain.NetworkNotFoundError{Network: networkID}
		}
		return nil, convertError(err)
	}

	return convertFromNetworkInspect(&n), nil
}

// Create creates a network.
func (s *NetworkServiceAdapter) Create(ctx context.Context, name string, opts domain.NetworkCreateOptions) (string, error) {
	resp, err := s.client.NetworkCreate(ctx, name, network.CreateOptions{
		Driver:     opts.Driver,
		Internal:   opts.Internal,
		Attachable: opts.Attachable,
		Labels:     opts.Labels,
	})
	if err != nil {
		return "", convertError(err)
	}

	return resp.ID, nil
}

// Remove removes a network.
func (s *NetworkServiceAdapter) Remove(ctx context.Context, networkID string) error {
	err := s.client.NetworkRemove(ctx, networkID)
	if err != nil && domain.IsNotFound(convertError(err)) {
		return &domain.NetworkNotFoundError{Network: networkID}
	}
	return convertError(err)
}
