package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netresearch/testenv/core/domain"
)

// NetworkService is a mock implementation of ports.NetworkService.
type NetworkService struct {
	mu sync.RWMutex

	// Callbacks for customizing behavior
	OnList    func(ctx context.Context, opts domain.NetworkListOptions) ([]domain.Network, error)
	OnInspect func(ctx context.Context, networkID string) (*domain.Network, error)
	OnCreate  func(ctx context.Context, name string, opts domain.NetworkCreateOptions) (string, error)
	OnRemove  func(ctx context.Context, networkID string) error

	// Call tracking
	ListCalls    []domain.NetworkListOptions
	InspectCalls []string
	CreateCalls  []NetworkCreateCall
	RemoveCalls  []string

	// Simulated data
	Networks []domain.Network
}

// NetworkCreateCall represents a call to Create().
type NetworkCreateCall struct {
	Name    string
	Options domain.NetworkCreateOptions
}

// NewNetworkService creates a new mock NetworkService.
func NewNetworkService() *NetworkService {
	return &NetworkService{}
}

// List lists networks. Only "name" filters are honoured.
func (s *NetworkService) List(ctx context.Context, opts domain.NetworkListOptions) ([]domain.Network, error) {
	s.mu.Lock()
	s.ListCalls = append(s.ListCalls, opts)
	s.mu.Unlock()

	if s.OnList != nil {
		return s.OnList(ctx, opts)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	names := opts.Filters["name"]
	result := []domain.Network{}
	for _, n := range s.Networks {
		if len(names) == 0 || contains(names, n.Name) {
			result = append(result, n)
		}
	}
	return result, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Inspect returns network information by ID or name.
func (s *NetworkService) Inspect(ctx context.Context, networkID string) (*domain.Network, error) {
	s.mu.Lock()
	s.InspectCalls = append(s.InspectCalls, networkID)
	s.mu.Unlock()

	if s.OnInspect != nil {
		return s.OnInspect(ctx, networkID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.Networks {
		if s.Networks[i].ID == networkID || s.Networks[i].Name == networkID {
			n := s.Networks[i]
			return &n, nil
		}
	}
	return nil, &domain.NetworkNotFoundError{Network: networkID}
}

// Create creates a network.
func (s *NetworkService) Create(ctx context.Context, name string, opts domain.NetworkCreateOptions) (string, error) {
	s.mu.Lock()
	s.CreateCalls = append(s.CreateCalls, NetworkCreateCall{Name: name, Options: opts})
	s.mu.Unlock()

	if s.OnCreate != nil {
		return s.OnCreate(ctx, name, opts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.Networks {
		if n.Name == name {
			return "", domain.ErrConflict
		}
	}
	id := fmt.Sprintf("mock-network-%d", len(s.CreateCalls))
	s.Networks = append(s.Networks, domain.Network{
		ID:      id,
		Name:    name,
		Driver:  opts.Driver,
		Labels:  opts.Labels,
		Created: time.Now(),
	})
	return id, nil
}

// Remove removes a network.
func (s *NetworkService) Remove(ctx context.Context, networkID string) error {
	s.mu.Lock()
	s.RemoveCalls = append(s.RemoveCalls, networkID)
	s.mu.Unlock()

	if s.OnRemove != nil {
		return s.OnRemove(ctx, networkID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.Networks {
		if n.ID == networkID || n.Name == networkID {
			s.Networks = append(s.Networks[:i], s.Networks[i+1:]...)
			return nil
		}
	}
	return &domain.NetworkNotFoundError{Network: networkID}
}

// SetNetworks sets the networks known to the mock.
func (s *NetworkService) SetNetworks(networks []domain.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Networks = networks
}
