package docker

import (
	"context"

	"github.com/docker/docker/client"

	"github.com/netresearch/testenv/core/domain"
)

// SystemServiceAdapter implements ports.SystemService using Docker SDK.
type SystemServiceAdapter struct {
	client *client.Client
}

// Ping pings the Docker server.
func (s *SystemServiceAdapter) Ping(ctx context.Context) (*domain.PingResponse, error) {
	ping, err := s.client.Ping(ctx)
	if err != nil {
		return nil, convertError(err)
	}

	return &domain.PingResponse{
		APIVersion:     ping.APIVersion,
		OSType:         ping.OSType,
		Experimental:   ping.Experimental,
		BuilderVersion: string(ping.BuilderVersion),
	}, nil
}

// Version returns version information.
func (s *SystemServiceAdapter) Version(ctx context.Context) (*domain.Version, error) {
	version, err := s.client.ServerVersion(ctx)
	if err != nil {
		return nil, convertError(err)
	}

	return &domain.Version{
		Version:       version.Version,
		APIVersion:    version.APIVersion,
		MinAPIVersion: version.MinAPIVersion,
		Os:            version.Os,
		Arch:          version.Arch,
		KernelVersion: version.KernelVersion,
	}, nil
}
