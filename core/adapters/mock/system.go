package mock

import (
	"context"
	"sync"

	"github.com/netresearch/testenv/core/domain"
)

// SystemService is a mock implementation of ports.SystemService.
type SystemService struct {
	mu sync.RWMutex

	// Callbacks for customizing behavior
	OnPing    func(ctx context.Context) (*domain.PingResponse, error)
	OnVersion func(ctx context.Context) (*domain.Version, error)

	// Call tracking
	PingCalls    int
	VersionCalls int

	// Simulated data
	PingResult    *domain.PingResponse
	VersionResult *domain.Version

	// Errors
	PingErr    error
	VersionErr error
}

// NewSystemService creates a new mock SystemService.
func NewSystemService() *SystemService {
	return &SystemService{
		PingResult: &domain.PingResponse{
			APIVersion: "1.47",
			OSType:     "linux",
		},
		VersionResult: &domain.Version{
			Version:    "28.5.2",
			APIVersion: "1.47",
			Os:         "linux",
			Arch:       "amd64",
		},
	}
}

// Ping pings the engine.
func (s *SystemService) Ping(ctx context.Context) (*domain.PingResponse, error) {
	s.mu.Lock()
	s.PingCalls++
	result, err := s.PingResult, s.PingErr
	s.mu.Unlock()

	if s.OnPing != nil {
		return s.OnPing(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Version returns version information.
func (s *SystemService) Version(ctx context.Context) (*domain.Version, error) {
	s.mu.Lock()
	s.VersionCalls++
	result, err := s.VersionResult, s.VersionErr
	s.mu.Unlock()

	if s.OnVersion != nil {
		return s.OnVersion(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetPingError sets the error returned by Ping().
func (s *SystemService) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PingErr = err
}
