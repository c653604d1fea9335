package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/netresearch/testenv/config"
	dockeradapter "github.com/netresearch/testenv/core/adapters/docker"
	"github.com/netresearch/testenv/core/ports"
)

// InitFunc provisions the services of an environment. It runs on the
// bridge and returns the handles it started plus the settings to publish.
type InitFunc func(ctx context.Context, p *Provisioner) ([]*ContainerHandle, *config.Settings, error)

// PostInitFunc runs after publication and before the registry is sealed.
type PostInitFunc func(ctx context.Context, env *Published) error

// Orchestrator drives one test environment through its lifecycle:
// setup provisions and publishes, teardown stops everything exactly once.
type Orchestrator struct {
	logger          Logger
	registry        *Registry
	bridge          *Bridge
	ownBridge       bool
	workers         int
	engine          ports.DockerClient
	ownEngine       bool
	engineHost      string
	dial            EngineDialer
	auth            ports.AuthProvider
	provisionerOpts []ProvisionerOption
	metrics         MetricsRecorder
	session         string
	teardownTimeout time.Duration
	timeoutPinned   bool

	phase phaseMachine
	stops *StopSet

	setupDone chan struct{}
	stopCmd   chan struct{}
	confirm   chan error

	teardownOnce sync.Once
	teardownErr  error

	exit func(code int)
}

// EngineDialer connects to the container engine at host. An empty host
// means the engine of the environment (DOCKER_HOST or the local socket).
type EngineDialer func(host string) (ports.DockerClient, error)

func dialDocker(host string) (ports.DockerClient, error) {
	cfg := dockeradapter.DefaultConfig()
	cfg.Host = host
	client, err := dockeradapter.NewClientWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistry publishes into r instead of the process-wide registry.
func WithRegistry(r *Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithBridge runs setup and teardown on b. The caller keeps ownership.
func WithBridge(b *Bridge) Option {
	return func(o *Orchestrator) { o.bridge = b }
}

// WithWorkers sets the size of the bridge the orchestrator creates.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithTeardownTimeout bounds the wait for the stop confirmation. Zero waits
// forever. It takes precedence over teardown.timeout of the settings.
func WithTeardownTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.teardownTimeout = d
		o.timeoutPinned = true
	}
}

// WithPhaseObserver is called after every phase transition.
func WithPhaseObserver(fn PhaseObserver) Option {
	return func(o *Orchestrator) { o.phase.observer = fn }
}

// WithMetrics records lifecycle measurements into m.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSessionID sets the label value that marks this environment's
// resources.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.session = id }
}

// WithEngine provisions on client. The caller keeps ownership.
func WithEngine(client ports.DockerClient) Option {
	return func(o *Orchestrator) { o.engine = client }
}

// WithEngineDialer replaces the Docker SDK dialer used when no engine was
// injected. The orchestrator owns and closes what dial returns.
func WithEngineDialer(dial EngineDialer) Option {
	return func(o *Orchestrator) { o.dial = dial }
}

// WithProvisionerOptions passes extra options to the provisioner.
func WithProvisionerOptions(opts ...ProvisionerOption) Option {
	return func(o *Orchestrator) { o.provisionerOpts = append(o.provisionerOpts, opts...) }
}

// NewOrchestrator creates an orchestrator in PhaseUninitialized.
func NewOrchestrator(logger Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:    logger,
		workers:   minBridgeWorkers,
		metrics:   noopMetrics{},
		setupDone: make(chan struct{}),
		stopCmd:   make(chan struct{}, 1),
		confirm:   make(chan error, 1),
		exit:      os.Exit,
		dial:      dialDocker,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = Global()
	}
	if o.session == "" {
		o.session = NewSessionID()
	}

	observer := o.phase.observer
	o.phase.observer = func(from, to Phase) {
		o.logger.Debugf("Environment phase %s -> %s", from, to)
		o.metrics.PhaseChanged(to.String())
		if observer != nil {
			observer(from, to)
		}
	}

	o.stops = NewStopSet(logger)
	o.stops.onFail = func(name string, _ error) { o.metrics.StopFailed(name) }
	return o
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase { return o.phase.get() }

// Registry returns the registry the environment publishes into.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Session returns the label value of this environment's resources.
func (o *Orchestrator) Session() string { return o.session }

// ApplySettings takes the engine host and the teardown timeout from s
// before setup. An explicit WithEngine or WithTeardownTimeout wins.
func (o *Orchestrator) ApplySettings(s *config.Settings) error {
	if o.phase.get() != PhaseUninitialized {
		return ErrAlreadyInitialized
	}
	o.engineHost = s.Docker.Host
	o.adoptTeardownTimeout(s.Teardown.Timeout)
	return nil
}

func (o *Orchestrator) adoptTeardownTimeout(d time.Duration) {
	if !o.timeoutPinned && d > 0 {
		o.teardownTimeout = d
	}
}

// Setup provisions the environment with init, publishes its handles and
// settings, runs postInit and seals the registry. It may be called once;
// later calls return ErrAlreadyInitialized. On failure every container
// created so far is removed and the environment ends in PhaseFailed.
func (o *Orchestrator) Setup(init InitFunc, postInit PostInitFunc) error {
	if init == nil {
		return newProvisionError(ProvisionConfigInvalid, "setup", errors.New("no init function"))
	}
	if !o.phase.transition(PhaseUninitialized, PhaseInitializing) {
		return ErrAlreadyInitialized
	}
	defer close(o.setupDone)

	started := time.Now()
	if err := o.setup(init, postInit); err != nil {
		cleanupErr := o.abort()
		o.phase.transition(PhaseInitializing, PhaseFailed)
		o.logger.Errorf("Environment setup failed: %v", err)
		return errors.Join(fmt.Errorf("%w: %w", ErrSetupFailed, err), cleanupErr)
	}

	o.phase.transition(PhaseInitializing, PhaseReady)
	o.logger.Noticef("Environment ready in %s", time.Since(started).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) setup(init InitFunc, postInit PostInitFunc) error {
	if o.bridge == nil {
		o.bridge = NewBridge(o.workers, o.logger)
		o.ownBridge = true
	}
	if o.engine == nil {
		client, err := o.dial(o.engineHost)
		if err != nil {
			return newProvisionError(ProvisionEngineUnavailable, "engine", err)
		}
		o.engine = client
		o.ownEngine = true
	}
	if o.auth == nil {
		o.auth = dockeradapter.NewConfigAuthProvider(o.logger)
	}

	opts := append([]ProvisionerOption{
		WithSession(o.session),
		WithAuthProvider(o.auth),
		WithProvisionMetrics(o.metrics),
	}, o.provisionerOpts...)
	prov := NewProvisioner(o.engine, o.stops, o.logger, opts...)

	type initResult struct {
		handles  []*ContainerHandle
		settings *config.Settings
	}
	res, err := Run(o.bridge, func(ctx context.Context) (initResult, error) {
		handles, settings, err := init(ctx, prov)
		return initResult{handles: handles, settings: settings}, err
	})
	if err != nil {
		return err
	}

	published, err := o.publish(res.handles, res.settings)
	if err != nil {
		return err
	}

	if postInit != nil {
		if _, err := Run(o.bridge, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, postInit(ctx, published)
		}); err != nil {
			return fmt.Errorf("post-init: %w", err)
		}
	}

	if err := o.registry.Seal(); err != nil {
		return err
	}

	// The supervisor must hold the stop capabilities before anyone can
	// observe PhaseReady.
	supervisor := o.bridge.Submit(o.supervise)
	select {
	case <-supervisor.Done():
		_, err := supervisor.Wait()
		return fmt.Errorf("start supervisor: %w", err)
	default:
	}
	return nil
}

func (o *Orchestrator) publish(handles []*ContainerHandle, settings *config.Settings) (*Published, error) {
	if settings == nil {
		return nil, newProvisionError(ProvisionConfigInvalid, "settings", errors.New("init returned no settings"))
	}
	frozen := settings.Clone()
	o.adoptTeardownTimeout(frozen.Teardown.Timeout)
	byKind := make(map[ServiceKind]*ContainerHandle, len(handles))

	if err := o.registry.Set(KeySettings, frozen); err != nil {
		return nil, err
	}
	for _, h := range handles {
		if h == nil {
			return nil, errors.New("init returned a nil container handle")
		}
		if _, dup := byKind[h.Kind]; dup {
			return nil, fmt.Errorf("init returned two %s handles", h.Kind)
		}
		byKind[h.Kind] = h
		if err := o.registry.Set(ContainerKey(h.Kind), h); err != nil {
			return nil, err
		}
	}
	if err := o.registry.Set(KeyToken, ""); err != nil {
		return nil, err
	}
	return &Published{settings: frozen, handles: byKind, registry: o.registry}, nil
}

// supervise owns the environment's stop capabilities until the stop
// command arrives, then runs them and confirms exactly once.
func (o *Orchestrator) supervise(ctx context.Context) (any, error) {
	<-o.stopCmd
	err := o.stops.StopAll(ctx)
	o.confirm <- err
	return nil, err
}

// abort cleans up after a failed setup.
func (o *Orchestrator) abort() error {
	o.logger.Warningf("Removing %d resource(s) after failed setup", o.stops.Len())
	err := ErrBridgeClosed
	if o.bridge != nil {
		_, err = o.bridge.RunBlocking(func(ctx context.Context) (any, error) {
			return nil, o.stops.StopAll(ctx)
		})
	}
	if errors.Is(err, ErrBridgeClosed) {
		err = o.stops.StopAll(context.Background())
	}
	o.registry.Clear()
	o.release()
	return err
}

func (o *Orchestrator) release() {
	if o.ownBridge && o.bridge != nil {
		o.bridge.Shutdown()
	}
	if o.ownEngine && o.engine != nil {
		if err := o.engine.Close(); err != nil {
			o.logger.Warningf("Closing engine client: %v", err)
		}
	}
}

// WaitReady blocks until setup finished. It returns ErrSetupFailed if
// setup failed.
func (o *Orchestrator) WaitReady(ctx context.Context) error {
	select {
	case <-o.setupDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	if o.phase.get() == PhaseFailed {
		return ErrSetupFailed
	}
	return nil
}

// Teardown stops every container exactly once and clears the registry.
// Before setup, after a failed setup and after a completed teardown it is
// a no-op returning nil. Concurrent callers share one teardown and its
// result.
func (o *Orchestrator) Teardown() error {
	switch o.phase.get() {
	case PhaseUninitialized, PhaseFailed, PhaseStopped:
		return nil
	case PhaseInitializing:
		<-o.setupDone
		if o.phase.get() != PhaseReady {
			return nil
		}
	}

	o.teardownOnce.Do(func() {
		o.teardownErr = o.teardown()
	})
	return o.teardownErr
}

func (o *Orchestrator) teardown() error {
	if !o.phase.transition(PhaseReady, PhaseTearingDown) {
		return nil
	}
	o.logger.Noticef("Tearing down environment %s", o.session)

	o.stopCmd <- struct{}{}

	var (
		err      error
		timedOut bool
	)
	if o.teardownTimeout > 0 {
		timer := time.NewTimer(o.teardownTimeout)
		select {
		case err = <-o.confirm:
		case <-timer.C:
			err = fmt.Errorf("%w after %s", ErrTeardownTimeout, o.teardownTimeout)
			timedOut = true
		}
		timer.Stop()
	} else {
		err = <-o.confirm
	}

	o.registry.Clear()
	o.phase.transition(PhaseTearingDown, PhaseStopped)

	if timedOut {
		// The supervisor still holds a worker; release once it is done.
		go o.release()
	} else {
		o.release()
	}

	if err != nil {
		o.logger.Errorf("Teardown finished with errors: %v", err)
		return err
	}
	o.logger.Noticef("Environment %s torn down", o.session)
	return nil
}

// ListenForSignals tears the environment down on SIGINT, SIGTERM or
// SIGQUIT and exits with status 130. The returned function stops listening.
func (o *Orchestrator) ListenForSignals() (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			o.logger.Warningf("Received signal %v, tearing down", sig)
			if err := o.Teardown(); err != nil {
				o.logger.Errorf("Teardown after signal: %v", err)
			}
			o.exit(130)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
		})
	}
}
