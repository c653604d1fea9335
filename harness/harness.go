// Package harness is the entry point for test binaries: it owns the
// process-wide environment and exposes its published values.
//
//	func TestMain(m *testing.M) {
//		os.Exit(harness.Run(m, harness.Init(config.LoadOptions{}), nil))
//	}
package harness

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/kelseyhightower/envconfig"

	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/logging"
)

// M is the part of *testing.M that Run needs.
type M interface {
	Run() int
}

type logEnv struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"text"`
}

var (
	mu          sync.Mutex
	current     *core.Orchestrator
	logger      core.Logger
	ownLogger   bool
	stopSignals func()
)

// Default returns the process-wide orchestrator, creating it on first use.
// Its logger honours TESTENV_LOG_LEVEL and TESTENV_LOG_FORMAT.
func Default() *core.Orchestrator {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		logger = newLogger()
		ownLogger = true
		current = core.NewOrchestrator(logger)
	}
	return current
}

// Use installs o as the process-wide orchestrator. It must be called
// before Setup.
func Use(o *core.Orchestrator, l core.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = o
	logger = l
	ownLogger = false
}

func newLogger() core.Logger {
	var env logEnv
	if err := envconfig.Process("TESTENV_LOG", &env); err != nil {
		env = logEnv{Level: "info", Format: "text"}
	}
	return core.NewLogrusAdapter(logging.New(env.Level, env.Format, os.Stderr))
}

func currentLogger() core.Logger {
	Default()
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Init loads settings with opts, applies them to the process-wide
// environment with Configure and returns an InitFunc that starts every
// enabled service. A load error is reported by the returned InitFunc.
func Init(opts config.LoadOptions) core.InitFunc {
	settings, err := config.Load(opts)
	if err == nil {
		err = Configure(settings)
	}
	if err != nil {
		return core.DefaultInit(func() (*config.Settings, error) { return nil, err })
	}
	return core.DefaultInit(func() (*config.Settings, error) { return settings.Clone(), nil })
}

// Configure applies the engine host and teardown timeout of s to the
// process-wide environment. The harness' own logger also takes the level
// and format of s; a logger installed with Use is left alone.
func Configure(s *config.Settings) error {
	o := Default()
	if err := o.ApplySettings(s); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if adapter, ok := logger.(*core.LogrusAdapter); ok && ownLogger {
		configured := logging.New(s.Log.Level, s.Log.Format, os.Stderr)
		adapter.SetLevel(configured.GetLevel())
		adapter.SetFormatter(configured.Formatter)
	}
	return nil
}

// Setup provisions the process-wide environment. From the start of setup
// until Teardown, SIGINT and SIGTERM tear it down before the process exits;
// a signal during setup takes effect once setup has finished.
func Setup(init core.InitFunc, postInit core.PostInitFunc) error {
	o := Default()

	mu.Lock()
	if stopSignals == nil {
		stopSignals = o.ListenForSignals()
	}
	mu.Unlock()

	return o.Setup(init, postInit)
}

// Teardown stops the process-wide environment. It is safe to call more
// than once and before Setup.
func Teardown() error {
	err := Default().Teardown()

	mu.Lock()
	if stopSignals != nil {
		stopSignals()
		stopSignals = nil
	}
	mu.Unlock()
	return err
}

// Run sets the environment up, runs the tests and tears it down. A failed
// setup returns exit code 1 without running tests. A failed teardown is
// logged but does not change the tests' exit code.
func Run(m M, init core.InitFunc, postInit core.PostInitFunc) int {
	log := currentLogger()

	if err := Setup(init, postInit); err != nil {
		log.Criticalf("Test environment setup failed: %v", err)
		_ = Teardown()
		return 1
	}
	writeBanner()

	code := m.Run()

	if err := Teardown(); err != nil {
		log.Errorf("Test environment teardown failed, containers may be left behind: %v", err)
	}
	return code
}

func writeBanner() {
	reg := Default().Registry()
	lines := []string{"Test environment ready"}
	for _, kind := range []core.ServiceKind{core.ServicePostgres, core.ServiceRedis, core.ServiceKeycloak} {
		if uri, err := reg.ContainerURI(kind); err == nil {
			lines = append(lines, fmt.Sprintf("%-9s %s", kind, uri))
		}
	}
	logging.WriteBanner(os.Stderr, lines...)
}

// Token returns the access token published at setup ("" when none).
func Token() (string, error) {
	return Default().Registry().Token()
}

// ContainerURI returns the connection URI of the service of kind.
func ContainerURI(kind core.ServiceKind) (string, error) {
	return Default().Registry().ContainerURI(kind)
}

// Settings returns a copy of the published settings.
func Settings() (*config.Settings, error) {
	return Default().Registry().Settings()
}

// MustToken is Token for tests; it fails tb on error.
func MustToken(tb testing.TB) string {
	tb.Helper()
	token, err := Token()
	if err != nil {
		tb.Fatalf("test environment token: %v", err)
	}
	return token
}

// MustContainerURI is ContainerURI for tests; it fails tb on error.
func MustContainerURI(tb testing.TB, kind core.ServiceKind) string {
	tb.Helper()
	uri, err := ContainerURI(kind)
	if err != nil {
		tb.Fatalf("test environment %s uri: %v", kind, err)
	}
	return uri
}
