package ports

import (
	"context"

	"github.com/netresearch/testenv/core/domain"
)

// SystemService provides operations for engine system information.
type SystemService interface {
	// Ping pings the engine.
	Ping(ctx context.Context) (*domain.PingResponse, error)

	// Version returns version information.
	Version(ctx context.Context) (*domain.Version, error)
}
