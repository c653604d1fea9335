package ports

import (
	"context"

	"github.com/netresearch/testenv/core/domain"
)

// ImageService provides operations for managing images.
type ImageService interface {
	// PullAndWait pulls an image and waits until the pull has completed.
	PullAndWait(ctx context.Context, opts domain.PullOptions) error

	// Inspect returns detailed information about a local image.
	Inspect(ctx context.Context, imageRef string) (*domain.Image, error)

	// Exists checks if an image exists locally.
	Exists(ctx context.Context, imageRef string) (bool, error)
}

// AuthProvider provides authentication for registry operations.
type AuthProvider interface {
	// GetAuthConfig returns the authentication configuration for a registry.
	GetAuthConfig(registry string) (domain.AuthConfig, error)

	// GetEncodedAuth returns base64-encoded authentication for a registry.
	GetEncodedAuth(registry string) (string, error)
}
