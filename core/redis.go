package core

import (
	"context"

	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core/domain"
)

const redisPort domain.Port = "6379/tcp"

// RedisSpec builds the service description of the cache.
func RedisSpec(s config.RedisSettings) ServiceSpec {
	return ServiceSpec{
		Kind:           ServiceRedis,
		Image:          s.ImageRef(),
		ExposedPorts:   []domain.Port{redisPort},
		StartupTimeout: s.StartupTimeout,
		Wait:           ForAll(ForListeningPort(redisPort), ForRedisPing(redisPort)),
		Endpoint: func(host string, ports map[domain.Port]int) Endpoint {
			return &RedisEndpoint{Host: host, Port: ports[redisPort]}
		},
	}
}

// StartRedis provisions the cache and fills s.URL.
func (p *Provisioner) StartRedis(ctx context.Context, s *config.RedisSettings) (*ContainerHandle, error) {
	h, err := p.Start(ctx, RedisSpec(*s))
	if err != nil {
		return nil, err
	}
	s.URL = h.URI
	return h, nil
}
