package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/core/ports"
	"github.com/netresearch/testenv/logging"
	"github.com/netresearch/testenv/metrics"
	"github.com/netresearch/testenv/web"
)

var _ core.MetricsRecorder = (*metrics.MetricsCollector)(nil)

const statusShutdownTimeout = 5 * time.Second

// UpCommand provisions the environment, prints its endpoints and keeps it
// running until SIGINT or SIGTERM, then tears it down.
type UpCommand struct {
	SettingsOptions
	LogLevel        string        `long:"log-level" env:"TESTENV_LOG_LEVEL" description:"Set log level (overrides settings)"`
	MetricsAddr     string        `long:"metrics-addr" env:"TESTENV_METRICS_ADDR" description:"serve metrics, health and endpoints on this address while up"`
	TeardownTimeout time.Duration `long:"teardown-timeout" env:"TESTENV_TEARDOWN_TIMEOUT" description:"stop waiting for teardown after this long (default from settings, 0 waits forever)"`
	Logger          core.Logger
	Engine          ports.DockerClient

	provisionerOpts []core.ProvisionerOption
	// hold blocks while the environment is up.
	hold func(ctx context.Context, o *core.Orchestrator)
}

// Execute runs the up command
func (c *UpCommand) Execute(_ []string) error {
	ApplyLogLevel(c.Logger, c.LogLevel)

	settings, err := c.Load()
	if err != nil {
		return err
	}
	if c.LogLevel == "" {
		ApplyLogLevel(c.Logger, settings.Log.Level)
	}

	engine, closeEngine, err := engineFor(c.Engine, settings.Docker.Host, c.Logger)
	if err != nil {
		return fmt.Errorf("connect to container engine: %w", err)
	}
	defer closeEngine()

	timeout := settings.Teardown.Timeout
	if c.TeardownTimeout > 0 {
		timeout = c.TeardownTimeout
	}

	collector := metrics.NewMetricsCollector()
	o := core.NewOrchestrator(c.Logger,
		core.WithEngine(engine),
		core.WithRegistry(core.NewRegistry()),
		core.WithMetrics(collector),
		core.WithTeardownTimeout(timeout),
		core.WithProvisionerOptions(c.provisionerOpts...),
	)

	if c.MetricsAddr != "" {
		stop, err := c.serveStatus(o, engine, collector)
		if err != nil {
			return err
		}
		defer stop()
	}

	spinner := NewSpinner(c.Logger, "Starting test environment")
	spinner.Start()
	// An interrupt during setup still removes what was created so far.
	stopSignals := o.ListenForSignals()
	err = o.Setup(
		core.DefaultInit(func() (*config.Settings, error) { return settings, nil }),
		core.TokenPostInit(&http.Client{Timeout: 30 * time.Second}, c.Logger),
	)
	stopSignals()
	if err != nil {
		spinner.Stop(false, "Test environment setup failed")
		return err
	}
	spinner.Stop(true, fmt.Sprintf("Test environment up (session %s)", o.Session()))

	logging.WriteBanner(os.Stdout, c.summary(o)...)

	hold := c.hold
	if hold == nil {
		hold = waitForSignal
	}
	hold(context.Background(), o)

	c.Logger.Noticef("Tearing down test environment")
	if err := o.Teardown(); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}
	c.Logger.Noticef("Test environment stopped")
	return nil
}

func (c *UpCommand) summary(o *core.Orchestrator) []string {
	reg := o.Registry()
	lines := []string{"Test environment " + o.Session()}
	for _, kind := range []core.ServiceKind{core.ServicePostgres, core.ServiceRedis, core.ServiceKeycloak} {
		if uri, err := reg.ContainerURI(kind); err == nil {
			lines = append(lines, fmt.Sprintf("%-9s %s", kind, uri))
		}
	}
	if token, err := reg.Token(); err == nil && token != "" {
		lines = append(lines, "token     acquired")
	}
	if c.MetricsAddr != "" {
		lines = append(lines, "metrics   http://"+c.MetricsAddr+"/metrics")
	}
	return lines
}

func (c *UpCommand) serveStatus(o *core.Orchestrator, engine ports.DockerClient, collector *metrics.MetricsCollector) (func(), error) {
	hc := web.NewHealthChecker(engine, o, "")
	srv := web.NewServer(c.MetricsAddr, hc, o, collector.Handler(), c.Logger)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	c.Logger.Noticef("Serving metrics and health on %s", srv.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			c.Logger.Warningf("Status server shutdown: %v", err)
		}
	}, nil
}

func waitForSignal(ctx context.Context, _ *core.Orchestrator) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
