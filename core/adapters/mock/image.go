package mock

import (
	"context"
	"sync"

	"github.com/netresearch/testenv/core/domain"
)

// ImageService is a mock implementation of ports.ImageService.
type ImageService struct {
	mu sync.RWMutex

	// Callbacks for customizing behavior
	OnPullAndWait func(ctx context.Context, opts domain.PullOptions) error
	OnInspect     func(ctx context.Context, imageRef string) (*domain.Image, error)
	OnExists      func(ctx context.Context, imageRef string) (bool, error)

	// Call tracking
	PullAndWaitCalls []domain.PullOptions
	InspectCalls     []string
	ExistsCalls      []string

	// Simulated data
	ExistsResult bool
}

// NewImageService creates a new mock ImageService.
func NewImageService() *ImageService {
	return &ImageService{
		ExistsResult: true, // Default: images exist
	}
}

// PullAndWait pulls an image and waits for completion.
func (s *ImageService) PullAndWait(ctx context.Context, opts domain.PullOptions) error {
	s.mu.Lock()
	s.PullAndWaitCalls = append(s.PullAndWaitCalls, opts)
	s.mu.Unlock()

	if s.OnPullAndWait != nil {
		return s.OnPullAndWait(ctx, opts)
	}
	return nil
}

// Inspect returns image information.
func (s *ImageService) Inspect(ctx context.Context, imageRef string) (*domain.Image, error) {
	s.mu.Lock()
	s.InspectCalls = append(s.InspectCalls, imageRef)
	exists := s.ExistsResult
	s.mu.Unlock()

	if s.OnInspect != nil {
		return s.OnInspect(ctx, imageRef)
	}
	if !exists {
		return nil, &domain.ImageNotFoundError{Image: imageRef}
	}
	return &domain.Image{
		ID:       "sha256:" + imageRef,
		RepoTags: []string{imageRef},
	}, nil
}

// Exists checks if an image exists.
func (s *ImageService) Exists(ctx context.Context, imageRef string) (bool, error) {
	s.mu.Lock()
	s.ExistsCalls = append(s.ExistsCalls, imageRef)
	result := s.ExistsResult
	s.mu.Unlock()

	if s.OnExists != nil {
		return s.OnExists(ctx, imageRef)
	}
	return result, nil
}

// SetExistsResult sets the result returned by Exists().
func (s *ImageService) SetExistsResult(exists bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExistsResult = exists
}

// Pulls returns a copy of the recorded pulls.
func (s *ImageService) Pulls() []domain.PullOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PullOptions(nil), s.PullAndWaitCalls...)
}
