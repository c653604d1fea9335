package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/netresearch/testenv/core/domain"
)

// ContainerServiceAdapter implements ports.ContainerService using Docker SDK.
type ContainerServiceAdapter struct {
	client *client.Client
}

// Create creates a new container.
func (s *ContainerServiceAdapter) Create(ctx context.Context, config *domain.ContainerConfig) (string, error) {
	containerConfig := convertToContainerConfig(config)
	hostConfig := convertToHostConfig(config.HostConfig)
	networkConfig := convertToNetworkingConfig(config.NetworkConfig)

	var platform *ocispec.Platform // Let Docker choose the platform

	resp, err := s.client.ContainerCreate(ctx, containerConfig, hostConfig, networkConfig, platform, config.Name)
	if err != nil {
		return "", convertError(err)
	}

	return resp.ID, nil
}

// Start starts a container.
func (s *ContainerServiceAdapter) Start(ctx context.Context, containerID string) error {
	err := s.client.ContainerStart(ctx, containerID, container.StartOptions{})
	return convertError(err)
}

// Stop stops a container.
func (s *ContainerServiceAdapter) Stop(ctx context.Context, containerID string, timeout *time.Duration) error {
	opts := container.StopOptions{}
	if timeout != nil {
		seconds := int(timeout.Seconds())
		opts.Timeout = &seconds
	}
	err := s.client.ContainerStop(ctx, containerID, opts)
	return convertError(err)
}

// Remove removes a container.
func (s *ContainerServiceAdapter) Remove(ctx context.Context, containerID string, opts domain.RemoveOptions) error {
	err := s.client.ContainerRemove(ctx, containerID, container.RemoveOptions{
		RemoveVolumes: opts.RemoveVolumes,
		Force:         opts.Force,
	})
	return convertError(err)
}

// Inspect returns container information.
func (s *ContainerServiceAdapter) Inspect(ctx context.Context, containerID string) (*domain.Container, error) {
	resp, err := s.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, convertError(err)
	}

	return convertFromContainerJSON(&resp), nil
}

// List lists containers.
func (s *ContainerServiceAdapter) List(ctx context.Context, opts domain.ListOptions) ([]domain.Container, error) {
	listOpts := container.ListOptions{
		All:     opts.All,
		Filters: convertToFilters(opts.Filters),
	}

	containers, err := s.client.ContainerList(ctx, listOpts)
	if err != nil {
		return nil, convertError(err)
	}

	result := make([]domain.Container, len(containers))
	for i, c := range containers {
		result[i] = convertFromAPIContainer(&c)
	}
	return result, nil
}

// Logs returns container logs with stdout and stderr interleaved.
func (s *ContainerServiceAdapter) Logs(ctx context.Context, containerID string, opts domain.LogOptions) (io.ReadCloser, error) {
	reader, err := s.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: opts.ShowStdout,
		ShowStderr: opts.ShowStderr,
		Since:      opts.Since,
		Follow:     opts.Follow,
		Tail:       opts.Tail,
	})
	if err != nil {
		return nil, convertError(err)
	}

	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, reader)
		_ = reader.Close()
		pw.CloseWithError(copyErr)
	}()
	return pr, nil
}

// CopyTo extracts a tar archive into the container.
func (s *ContainerServiceAdapter) CopyTo(ctx context.Context, containerID, dstPath string, content io.Reader, opts domain.CopyOptions) error {
	err := s.client.CopyToContainer(ctx, containerID, dstPath, content, container.CopyToContainerOptions{
		AllowOverwriteDirWithFile: opts.AllowOverwriteDirWithFile,
	})
	if err != nil {
		return fmt.Errorf("copy to %s:%s: %w", containerID, dstPath, convertError(err))
	}
	return nil
}

// Helper conversion functions

func convertToFilters(in map[string][]string) filters.Args {
	args := filters.NewArgs()
	for key, values := range in {
		for _, v := range values {
			args.Add(key, v)
		}
	}
	return args
}

func convertToContainerConfig(config *domain.ContainerConfig) *container.Config {
	if config == nil {
		return nil
	}

	cfg := &container.Config{
		Hostname:   config.Hostname,
		Env:        config.Env,
		Cmd:        config.Cmd,
		Image:      config.Image,
		Entrypoint: config.Entrypoint,
		Labels:     config.Labels,
	}

	if len(config.ExposedPorts) > 0 {
		cfg.ExposedPorts = make(nat.PortSet, len(config.ExposedPorts))
		for _, p := range config.ExposedPorts {
			cfg.ExposedPorts[nat.Port(p)] = struct{}{}
		}
	}

	return cfg
}

func convertToHostConfig(config *domain.HostConfig) *container.HostConfig {
	if config == nil {
		return nil
	}

	hostConfig := &container.HostConfig{
		Binds:        config.Binds,
		NetworkMode:  container.NetworkMode(config.NetworkMode),
		PortBindings: convertToPortMap(config.PortBindings),
		AutoRemove:   config.AutoRemove,
		ShmSize:      config.ShmSize,
		Tmpfs:        config.Tmpfs,
	}

	for _, m := range config.Mounts {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mount.Type(m.Type),
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	return hostConfig
}

func convertToNetworkingConfig(config *domain.NetworkConfig) *network.NetworkingConfig {
	if config == nil {
		return nil
	}

	networkConfig := &network.NetworkingConfig{
		EndpointsConfig: make(map[string]*network.EndpointSettings),
	}

	for name, endpoint := range config.EndpointsConfig {
		if endpoint == nil {
			networkConfig.EndpointsConfig[name] = &network.EndpointSettings{}
			continue
		}
		networkConfig.EndpointsConfig[name] = &network.EndpointSettings{
			Aliases:   endpoint.Aliases,
			NetworkID: endpoint.NetworkID,
			IPAddress: endpoint.IPAddress,
		}
	}

	return networkConfig
}

func convertToPortMap(pm domain.PortMap) nat.PortMap {
	if len(pm) == 0 {
		return nil
	}

	result := make(nat.PortMap)
	for port, bindings := range pm {
		natPort := nat.Port(port)
		for _, b := range bindings {
			result[natPort] = append(result[natPort], nat.PortBinding{
				HostIP:   b.HostIP,
				HostPort: b.HostPort,
			})
		}
	}
	return result
}
