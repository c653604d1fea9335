package docker

import (
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	containertypes "github.com/docker/docker/api/types/container"
	networktypes "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/netresearch/testenv/core/domain"
)

// convertError converts Docker SDK errors to domain errors.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	if client.IsErrConnectionFailed(err) {
		return domain.ErrConnectionFailed
	}
	if cerrdefs.IsNotFound(err) {
		return &domain.ContainerNotFoundError{ID: err.Error()}
	}
	if cerrdefs.IsConflict(err) {
		return domain.ErrConflict
	}
	if cerrdefs.IsUnauthorized(err) {
		return domain.ErrUnauthorized
	}
	if cerrdefs.IsPermissionDenied(err) {
		return domain.ErrForbidden
	}
	if cerrdefs.IsDeadlineExceeded(err) {
		return domain.ErrTimeout
	}
	if cerrdefs.IsCanceled(err) {
		return domain.ErrCanceled
	}
	if cerrdefs.IsUnavailable(err) {
		return domain.ErrConnectionFailed
	}

	return err
}

// convertFromContainerJSON converts SDK InspectResponse to domain Container.
func convertFromContainerJSON(c *containertypes.InspectResponse) *domain.Container {
	if c == nil {
		return nil
	}

	container := &domain.Container{}
	if c.ContainerJSONBase == nil {
		return container
	}
	container.ID = c.ID
	container.Name = strings.TrimPrefix(c.Name, "/")
	container.Image = c.Image
	container.Created = parseTime(c.Created)

	if c.State != nil {
		container.State = domain.ContainerState{
			Status:     string(c.State.Status),
			Running:    c.State.Running,
			Paused:     c.State.Paused,
			Restarting: c.State.Restarting,
			OOMKilled:  c.State.OOMKilled,
			Dead:       c.State.Dead,
			Pid:        c.State.Pid,
			ExitCode:   c.State.ExitCode,
			Error:      c.State.Error,
			StartedAt:  parseTime(c.State.StartedAt),
			FinishedAt: parseTime(c.State.FinishedAt),
		}

		if c.State.Health != nil {
			container.State.Health = &domain.Health{
				Status:        string(c.State.Health.Status),
				FailingStreak: c.State.Health.FailingStreak,
			}
		}
	}

	if c.Config != nil {
		container.Labels = c.Config.Labels
		container.Config = &domain.ContainerConfig{
			Image:      c.Config.Image,
			Cmd:        c.Config.Cmd,
			Entrypoint: c.Config.Entrypoint,
			Env:        c.Config.Env,
			Labels:     c.Config.Labels,
			Hostname:   c.Config.Hostname,
		}
	}

	for _, m := range c.Mounts {
		container.Mounts = append(container.Mounts, domain.Mount{
			Type:     domain.MountType(m.Type),
			Source:   m.Source,
			Target:   m.Destination,
			ReadOnly: !m.RW,
		})
	}

	if c.NetworkSettings != nil {
		if len(c.NetworkSettings.Ports) > 0 {
			container.Ports = make(domain.PortMap, len(c.NetworkSettings.Ports))
			for port, bindings := range c.NetworkSettings.Ports {
				out := make([]domain.PortBinding, 0, len(bindings))
				for _, b := range bindings {
					out = append(out, domain.PortBinding{HostIP: b.HostIP, HostPort: b.HostPort})
				}
				container.Ports[domain.Port(port)] = out
			}
		}
		if len(c.NetworkSettings.Networks) > 0 {
			container.Networks = make(map[string]string, len(c.NetworkSettings.Networks))
			for name, ep := range c.NetworkSettings.Networks {
				if ep == nil {
					continue
				}
				container.Networks[name] = ep.IPAddress
			}
		}
	}

	return container
}

// convertFromAPIContainer converts SDK Container (list result) to domain Container.
func convertFromAPIContainer(c *containertypes.Summary) domain.Container {
	var name string
	if len(c.Names) > 0 {
		// Docker API returns container names with a leading slash.
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return domain.Container{
		ID:      c.ID,
		Name:    name,
		Image:   c.Image,
		Created: time.Unix(c.Created, 0),
		Labels:  c.Labels,
		State: domain.ContainerState{
			Status:  string(c.State),
			Running: c.State == "running",
		},
	}
}

// convertFromNetworkResource converts SDK network summary to domain Network.
func convertFromNetworkResource(n *networktypes.Summary) domain.Network {
	network := domain.Network{
		Name:       n.Name,
		ID:         n.ID,
		Created:    n.Created,
		Scope:      n.Scope,
		Driver:     n.Driver,
		Internal:   n.Internal,
		Attachable: n.Attachable,
		Labels:     n.Labels,
	}

	if len(n.Containers) > 0 {
		network.Containers = make(map[string]domain.EndpointResource)
		for id, ep := range n.Containers {
			network.Containers[id] = domain.EndpointResource{
				Name:        ep.Name,
				EndpointID:  ep.EndpointID,
				IPv4Address: ep.IPv4Address,
			}
		}
	}

	return network
}

// convertFromNetworkInspect converts an SDK inspect result to domain Network.
func convertFromNetworkInspect(n *networktypes.Inspect) *domain.Network {
	network := &domain.Network{
		Name:       n.Name,
		ID:         n.ID,
		Created:    n.Created,
		Scope:      n.Scope,
		Driver:     n.Driver,
		Internal:   n.Internal,
		Attachable: n.Attachable,
		Labels:     n.Labels,
	}

	if len(n.Containers) > 0 {
		network.Containers = make(map[string]domain.EndpointResource)
		for id, ep := range n.Containers {
			network.Containers[id] = domain.EndpointResource{
				Name:        ep.Name,
				EndpointID:  ep.EndpointID,
				IPv4Address: ep.IPv4Address,
			}
		}
	}

	return network
}

// parseTime parses a Docker timestamp string.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
