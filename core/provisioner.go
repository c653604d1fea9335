package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/distribution/reference"
	"github.com/google/uuid"

	"github.com/netresearch/testenv/config"
	dockeradapter "github.com/netresearch/testenv/core/adapters/docker"
	"github.com/netresearch/testenv/core/domain"
	"github.com/netresearch/testenv/core/ports"
)

// Labels put on every resource the provisioner creates.
const (
	LabelSession = "io.testenv.session"
	LabelService = "io.testenv.service"
)

// File is copied into a container before it starts.
type File struct {
	Dir     string
	Name    string
	Content []byte
	Mode    int64
}

// ServiceSpec describes one service container.
type ServiceSpec struct {
	Kind           ServiceKind
	Image          string
	Env            []string
	Cmd            []string
	ExposedPorts   []domain.Port
	Mounts         []domain.Mount
	Files          []File
	Wait           WaitStrategy
	StartupTimeout time.Duration

	// Endpoint builds the connection description once ports are mapped.
	Endpoint func(host string, ports map[domain.Port]int) Endpoint
}

// Provisioner starts service containers on an engine. Every container's
// removal is registered in the StopSet as soon as the engine created it.
type Provisioner struct {
	engine  ports.DockerClient
	stops   *StopSet
	logger  Logger
	auth    ports.AuthProvider
	metrics MetricsRecorder
	session string
	docker  config.DockerSettings
	network config.NetworkSettings
	waits   map[ServiceKind]WaitStrategy

	mu           sync.Mutex
	networkReady bool
	handles      map[ServiceKind]*ContainerHandle
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithSession sets the session label value.
func WithSession(id string) ProvisionerOption {
	return func(p *Provisioner) { p.session = id }
}

// WithAuthProvider sets the registry credential source for pulls.
func WithAuthProvider(auth ports.AuthProvider) ProvisionerOption {
	return func(p *Provisioner) { p.auth = auth }
}

// WithProvisionMetrics sets the metrics sink.
func WithProvisionMetrics(m MetricsRecorder) ProvisionerOption {
	return func(p *Provisioner) { p.metrics = m }
}

// WithWaitStrategy replaces the readiness strategy of kind.
func WithWaitStrategy(kind ServiceKind, s WaitStrategy) ProvisionerOption {
	return func(p *Provisioner) { p.waits[kind] = s }
}

// WithEngineSettings sets pull policy, platform and the shared network.
func WithEngineSettings(docker config.DockerSettings, network config.NetworkSettings) ProvisionerOption {
	return func(p *Provisioner) {
		p.docker = docker
		p.network = network
	}
}

// NewProvisioner creates a Provisioner bound to engine and stops.
func NewProvisioner(engine ports.DockerClient, stops *StopSet, logger Logger, opts ...ProvisionerOption) *Provisioner {
	defaults := config.NewSettings()
	p := &Provisioner{
		engine:  engine,
		stops:   stops,
		logger:  logger,
		metrics: noopMetrics{},
		session: NewSessionID(),
		docker:  defaults.Docker,
		network: defaults.Network,
		waits:   make(map[ServiceKind]WaitStrategy),
		handles: make(map[ServiceKind]*ContainerHandle),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()[:12]
}

// Session returns the session label value.
func (p *Provisioner) Session() string { return p.session }

// Configure applies the docker and network sections of s.
func (p *Provisioner) Configure(s *config.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docker = s.Docker
	p.network = s.Network
}

// Handles returns the handles started so far.
func (p *Provisioner) Handles() []*ContainerHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*ContainerHandle, 0, len(p.handles))
	for _, kind := range []ServiceKind{ServicePostgres, ServiceRedis, ServiceKeycloak} {
		if h, ok := p.handles[kind]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Inspect returns the engine's view of the container started for kind.
func (p *Provisioner) Inspect(ctx context.Context, kind ServiceKind) (*domain.Container, error) {
	p.mu.Lock()
	h, ok := p.handles[kind]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotProvisioned, kind)
	}
	c, err := p.engine.Containers().Inspect(ctx, h.ContainerID)
	if err != nil {
		return nil, WrapContainerError("inspect", h.Name, err)
	}
	return c, nil
}

// Start provisions spec and blocks until it is ready.
func (p *Provisioner) Start(ctx context.Context, spec ServiceSpec) (*ContainerHandle, error) {
	started := time.Now()
	h, err := p.start(ctx, spec)
	if err != nil {
		kind := ProvisionStartFailed
		if pe, ok := errors.AsType[*ProvisionError](err); ok {
			kind = pe.Kind
		}
		p.metrics.ProvisionFailed(string(spec.Kind), kind.String())
		p.logger.Errorf("Provisioning %s failed: %v", spec.Kind, err)
		return nil, err
	}
	p.metrics.ContainerStarted(string(spec.Kind), time.Since(started))
	p.logger.Noticef("%s ready at %s (%s)", spec.Kind, h.URI, time.Since(started).Round(time.Millisecond))
	return h, nil
}

func (p *Provisioner) start(ctx context.Context, spec ServiceSpec) (*ContainerHandle, error) {
	service := string(spec.Kind)
	if err := validateSpec(spec); err != nil {
		return nil, newProvisionError(ProvisionConfigInvalid, service, err)
	}

	p.mu.Lock()
	_, exists := p.handles[spec.Kind]
	p.mu.Unlock()
	if exists {
		return nil, newProvisionError(ProvisionConfigInvalid, service, fmt.Errorf("%s already provisioned", spec.Kind))
	}

	if _, err := p.engine.System().Ping(ctx); err != nil {
		return nil, newProvisionError(ProvisionEngineUnavailable, service, err)
	}
	if err := p.ensureNetwork(ctx); err != nil {
		return nil, engineError(service, err)
	}
	if err := p.ensureImage(ctx, spec.Image); err != nil {
		return nil, engineError(service, err)
	}

	name := fmt.Sprintf("testenv-%s-%s", spec.Kind, p.session)
	id, err := p.engine.Containers().Create(ctx, p.containerConfig(name, spec))
	if err != nil {
		return nil, engineError(service, WrapContainerError("create", name, err))
	}

	stopName := "container/" + name
	p.stops.Register(StopHook{
		Name:     stopName,
		Priority: PriorityContainer,
		Hook:     p.removeContainer(id, name),
	})
	p.logger.Debugf("Created container %s (%s)", name, shortID(id))

	for _, f := range spec.Files {
		archive, err := tarFile(f)
		if err != nil {
			return nil, newProvisionError(ProvisionConfigInvalid, service, err)
		}
		if err := p.engine.Containers().CopyTo(ctx, id, "/", archive, domain.CopyOptions{}); err != nil {
			return nil, engineError(service, WrapContainerError("copy into", name, err))
		}
	}

	if err := p.engine.Containers().Start(ctx, id); err != nil {
		return nil, engineError(service, WrapContainerError("start", name, err))
	}

	info, err := p.engine.Containers().Inspect(ctx, id)
	if err != nil {
		return nil, engineError(service, WrapContainerError("inspect", name, err))
	}
	mapped, err := mappedPorts(info, spec.ExposedPorts)
	if err != nil {
		return nil, newProvisionError(ProvisionStartFailed, service, err)
	}

	target := &containerTarget{
		engine:      p.engine.Containers(),
		containerID: id,
		host:        p.engine.Host(),
		ports:       mapped,
	}
	if err := p.waitReady(ctx, spec, target); err != nil {
		return nil, err
	}

	endpoint := spec.Endpoint(target.host, mapped)
	h := &ContainerHandle{
		Kind:        spec.Kind,
		ContainerID: id,
		Name:        name,
		URI:         endpoint.URI(),
		ReadyAt:     time.Now(),
		Endpoint:    endpoint,
		stopName:    stopName,
	}

	p.mu.Lock()
	p.handles[spec.Kind] = h
	p.mu.Unlock()
	return h, nil
}

func validateSpec(spec ServiceSpec) error {
	if spec.Kind == "" {
		return errors.New("service kind is empty")
	}
	if _, err := reference.ParseNormalizedNamed(spec.Image); err != nil {
		return fmt.Errorf("image %q: %w", spec.Image, err)
	}
	if spec.StartupTimeout <= 0 {
		return fmt.Errorf("startup timeout must be positive, got %s", spec.StartupTimeout)
	}
	if spec.Endpoint == nil {
		return errors.New("no endpoint builder")
	}
	return nil
}

// engineError classifies an engine failure that happened after the ping.
func engineError(service string, err error) *ProvisionError {
	if domain.IsConnectionFailed(err) {
		return newProvisionError(ProvisionEngineUnavailable, service, err)
	}
	return newProvisionError(ProvisionStartFailed, service, err)
}

func (p *Provisioner) waitReady(ctx context.Context, spec ServiceSpec, target *containerTarget) error {
	strategy := spec.Wait
	if override, ok := p.waits[spec.Kind]; ok {
		strategy = override
	}
	if strategy == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, spec.StartupTimeout)
	defer cancel()

	p.logger.Debugf("Waiting up to %s for %s", spec.StartupTimeout, spec.Kind)
	err := strategy.WaitUntilReady(waitCtx, target)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		tailCtx, tailCancel := context.WithTimeout(context.WithoutCancel(ctx), attemptTimeout)
		defer tailCancel()
		pe := newProvisionError(ProvisionTimeout, string(spec.Kind),
			fmt.Errorf("not ready after %s: %w", spec.StartupTimeout, err))
		pe.LogTail = logTail(tailCtx, target)
		return pe
	}
	return newProvisionError(ProvisionStartFailed, string(spec.Kind), err)
}

func (p *Provisioner) containerConfig(name string, spec ServiceSpec) *domain.ContainerConfig {
	bindings := make(domain.PortMap, len(spec.ExposedPorts))
	for _, port := range spec.ExposedPorts {
		// Empty host port lets the engine pick a free one.
		bindings[port] = []domain.PortBinding{{HostIP: ""}}
	}

	cfg := &domain.ContainerConfig{
		Name:         name,
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		ExposedPorts: spec.ExposedPorts,
		Labels: map[string]string{
			LabelSession: p.session,
			LabelService: string(spec.Kind),
		},
		HostConfig: &domain.HostConfig{
			Mounts:       spec.Mounts,
			PortBindings: bindings,
		},
	}

	p.mu.Lock()
	network := p.network
	p.mu.Unlock()
	if network.Name != "" {
		cfg.HostConfig.NetworkMode = network.Name
		cfg.NetworkConfig = &domain.NetworkConfig{
			EndpointsConfig: map[string]*domain.EndpointSettings{
				network.Name: {Aliases: []string{string(spec.Kind)}},
			},
		}
	}
	return cfg
}

func (p *Provisioner) removeContainer(id, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		err := p.engine.Containers().Remove(ctx, id, domain.RemoveOptions{Force: true, RemoveVolumes: true})
		if err != nil && !domain.IsNotFound(err) {
			return WrapContainerError("remove", name, err)
		}
		p.logger.Debugf("Removed container %s", name)
		return nil
	}
}

// ensureNetwork creates the shared network once. A network that already
// exists is reused and left in place at teardown.
func (p *Provisioner) ensureNetwork(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.networkReady || p.network.Name == "" {
		return nil
	}

	name := p.network.Name
	_, err := p.engine.Networks().Inspect(ctx, name)
	switch {
	case err == nil:
		p.logger.Debugf("Reusing network %s", name)
	case !domain.IsNotFound(err):
		return fmt.Errorf("inspect network %q: %w", name, err)
	case !p.network.Create:
		return fmt.Errorf("network %q does not exist and creation is disabled: %w", name, err)
	default:
		id, err := p.engine.Networks().Create(ctx, name, domain.NetworkCreateOptions{
			Driver: "bridge",
			Labels: map[string]string{LabelSession: p.session},
		})
		if err != nil && !domain.IsConflict(err) {
			return fmt.Errorf("create network %q: %w", name, err)
		}
		if err == nil {
			p.logger.Debugf("Created network %s", name)
			p.stops.Register(StopHook{
				Name:     "network/" + name,
				Priority: PriorityNetwork,
				Hook: func(ctx context.Context) error {
					if err := p.engine.Networks().Remove(ctx, id); err != nil && !domain.IsNotFound(err) {
						return fmt.Errorf("remove network %q: %w", name, err)
					}
					return nil
				},
			})
		}
	}
	p.networkReady = true
	return nil
}

func (p *Provisioner) ensureImage(ctx context.Context, image string) error {
	p.mu.Lock()
	policy := p.docker.PullPolicy
	platform := p.docker.Platform
	p.mu.Unlock()

	switch policy {
	case config.PullAlways:
	case config.PullNever:
		ok, err := p.engine.Images().Exists(ctx, image)
		if err != nil {
			return WrapImageError("inspect", image, err)
		}
		if !ok {
			return WrapImageError("find", image, &domain.ImageNotFoundError{Image: image})
		}
		return nil
	default:
		ok, err := p.engine.Images().Exists(ctx, image)
		if err != nil {
			return WrapImageError("inspect", image, err)
		}
		if ok {
			return nil
		}
	}

	opts := domain.PullOptions{Repository: image, Platform: platform}
	if p.auth != nil {
		auth, err := p.auth.GetEncodedAuth(dockeradapter.ExtractRegistry(image))
		if err != nil {
			p.logger.Warningf("No registry credentials for %s: %v", image, err)
		}
		opts.RegistryAuth = auth
	}

	p.logger.Noticef("Pulling image %s", image)
	if err := p.engine.Images().PullAndWait(ctx, opts); err != nil {
		return WrapImageError("pull", image, err)
	}
	return nil
}

func mappedPorts(c *domain.Container, exposed []domain.Port) (map[domain.Port]int, error) {
	out := make(map[domain.Port]int, len(exposed))
	for _, port := range exposed {
		bindings := c.Ports[port]
		if len(bindings) == 0 || bindings[0].HostPort == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoPublishedPort, port)
		}
		n, err := strconv.Atoi(bindings[0].HostPort)
		if err != nil {
			return nil, fmt.Errorf("host port %q for %s: %w", bindings[0].HostPort, port, err)
		}
		out[port] = n
	}
	return out, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
