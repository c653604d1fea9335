package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/core/domain"
	"github.com/netresearch/testenv/core/ports"
)

// PruneCommand removes containers and networks left behind by sessions
// that were killed before their teardown ran.
type PruneCommand struct {
	Host     string `long:"host" env:"DOCKER_HOST" description:"engine address (default from the environment)"`
	Session  string `long:"session" description:"only prune resources of this session"`
	Yes      bool   `long:"yes" short:"y" description:"do not ask for confirmation"`
	LogLevel string `long:"log-level" env:"TESTENV_LOG_LEVEL" description:"Set log level"`
	Logger   core.Logger
	Engine   ports.DockerClient

	confirm func(label string) bool
}

// Execute runs the prune command
func (c *PruneCommand) Execute(_ []string) error {
	ApplyLogLevel(c.Logger, c.LogLevel)
	ctx := context.Background()

	engine, closeEngine, err := engineFor(c.Engine, c.Host, c.Logger)
	if err != nil {
		return fmt.Errorf("connect to container engine: %w", err)
	}
	defer closeEngine()

	containers, networks, err := c.find(ctx, engine)
	if err != nil {
		return err
	}
	if len(containers) == 0 && len(networks) == 0 {
		c.Logger.Noticef("Nothing to prune")
		return nil
	}

	for _, ctr := range containers {
		c.Logger.Noticef("  container %s (%s, session %s)", strings.TrimPrefix(ctr.Name, "/"), ctr.Labels[core.LabelService], ctr.Labels[core.LabelSession])
	}
	for _, n := range networks {
		c.Logger.Noticef("  network %s (session %s)", n.Name, n.Labels[core.LabelSession])
	}

	if !c.Yes {
		confirm := c.confirm
		if confirm == nil {
			confirm = promptConfirm
		}
		if !confirm(fmt.Sprintf("Remove %d container(s) and %d network(s)", len(containers), len(networks))) {
			c.Logger.Noticef("Prune canceled")
			return nil
		}
	}

	var errs []error
	removed := 0
	for _, ctr := range containers {
		err := engine.Containers().Remove(ctx, ctr.ID, domain.RemoveOptions{Force: true, RemoveVolumes: true})
		switch {
		case err == nil:
			removed++
		case domain.IsNotFound(err):
		default:
			errs = append(errs, core.WrapContainerError("remove", ctr.ID, err))
		}
	}

	removedNetworks := 0
	for _, n := range networks {
		err := engine.Networks().Remove(ctx, n.ID)
		switch {
		case err == nil:
			removedNetworks++
		case domain.IsNotFound(err):
		default:
			errs = append(errs, fmt.Errorf("remove network %q: %w", n.Name, err))
		}
	}

	c.Logger.Noticef("Removed %d container(s) and %d network(s)", removed, removedNetworks)
	if err := errors.Join(errs...); err != nil {
		c.Logger.Errorf("Prune incomplete: %v", err)
		return err
	}
	return nil
}

func (c *PruneCommand) find(ctx context.Context, engine ports.DockerClient) ([]domain.Container, []domain.Network, error) {
	filter := core.LabelSession
	if c.Session != "" {
		filter += "=" + c.Session
	}

	containers, err := engine.Containers().List(ctx, domain.ListOptions{
		All:     true,
		Filters: map[string][]string{"label": {filter}},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list containers: %w", err)
	}

	all, err := engine.Networks().List(ctx, domain.NetworkListOptions{
		Filters: map[string][]string{"label": {filter}},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list networks: %w", err)
	}
	networks := make([]domain.Network, 0, len(all))
	for _, n := range all {
		if c.owns(n.Labels) {
			networks = append(networks, n)
		}
	}
	return containers, networks, nil
}

func (c *PruneCommand) owns(labels map[string]string) bool {
	session, ok := labels[core.LabelSession]
	if !ok {
		return false
	}
	return c.Session == "" || session == c.Session
}

func promptConfirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Default:   "n",
	}
	_, err := prompt.Run()
	return err == nil
}
