package core

import (
	"context"

	"github.com/netresearch/testenv/config"
)

// StartAll applies the engine settings of s and starts every enabled
// service, one after another: postgres, redis, keycloak. It stops at the
// first failure; containers created so far stay registered in the StopSet.
func (p *Provisioner) StartAll(ctx context.Context, s *config.Settings) ([]*ContainerHandle, error) {
	p.Configure(s)

	var handles []*ContainerHandle
	if s.Postgres.Enabled {
		h, err := p.StartPostgres(ctx, &s.Postgres)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	if s.Redis.Enabled {
		h, err := p.StartRedis(ctx, &s.Redis)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	if s.Keycloak.Enabled {
		h, err := p.StartKeycloak(ctx, &s.Keycloak)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// SettingsLoader produces the settings of an environment.
type SettingsLoader func() (*config.Settings, error)

// DefaultInit returns an InitFunc that loads settings and starts every
// enabled service.
func DefaultInit(load SettingsLoader) InitFunc {
	return func(ctx context.Context, p *Provisioner) ([]*ContainerHandle, *config.Settings, error) {
		s, err := load()
		if err != nil {
			return nil, nil, newProvisionError(ProvisionConfigInvalid, "settings", err)
		}
		handles, err := p.StartAll(ctx, s)
		if err != nil {
			return nil, nil, err
		}
		return handles, s, nil
	}
}
