package harness

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/core/adapters/mock"
	"github.com/netresearch/testenv/core/domain"
	"github.com/netresearch/testenv/core/ports"
	"github.com/netresearch/testenv/test"
)

type fakeM struct {
	code int
	ran  bool
	// check runs inside the test phase.
	check func()
}

func (m *fakeM) Run() int {
	m.ran = true
	if m.check != nil {
		m.check()
	}
	return m.code
}

var ready = core.WaitFunc(func(context.Context, core.WaitTarget) error { return nil })

func install(t *testing.T) (*mock.DockerClient, *test.Logger) {
	t.Helper()
	engine := mock.NewDockerClient()
	logger := test.NewTestLogger()
	o := core.NewOrchestrator(logger,
		core.WithEngine(engine),
		core.WithRegistry(core.NewRegistry()),
		core.WithProvisionerOptions(
			core.WithWaitStrategy(core.ServicePostgres, ready),
			core.WithWaitStrategy(core.ServiceRedis, ready),
			core.WithWaitStrategy(core.ServiceKeycloak, ready),
		),
	)
	Use(o, logger)
	t.Cleanup(func() {
		_ = Teardown()
		Use(nil, nil)
	})
	return engine, logger
}

func postgresInit() core.InitFunc {
	return core.DefaultInit(func() (*config.Settings, error) {
		s := config.NewSettings()
		s.Keycloak.Enabled = false
		return s, nil
	})
}

func TestRunExposesEnvironmentToTests(t *testing.T) {
	engine, _ := install(t)

	m := &fakeM{code: 0}
	m.check = func() {
		uri, err := ContainerURI(core.ServicePostgres)
		require.NoError(t, err)
		assert.Contains(t, uri, "postgres://")
		assert.Equal(t, uri, MustContainerURI(t, core.ServicePostgres))

		token, err := Token()
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Empty(t, MustToken(t))

		s, err := Settings()
		require.NoError(t, err)
		assert.Equal(t, uri, s.Postgres.URL)
	}

	code := Run(m, postgresInit(), nil)
	assert.Zero(t, code)
	assert.True(t, m.ran)
	assert.Zero(t, engine.Containers().(*mock.ContainerService).Count())

	_, err := Token()
	require.ErrorIs(t, err, core.ErrRegistryUsage)
}

func TestRunKeepsTestExitCode(t *testing.T) {
	install(t)

	code := Run(&fakeM{code: 3}, postgresInit(), nil)
	assert.Equal(t, 3, code)
}

func TestRunSetupFailureSkipsTests(t *testing.T) {
	_, logger := install(t)

	m := &fakeM{}
	code := Run(m, postgresInit(), func(context.Context, *core.Published) error {
		return errors.New("identity provider rejected user")
	})

	assert.Equal(t, 1, code)
	assert.False(t, m.ran)
	assert.True(t, logger.HasMessage("identity provider rejected user"))
}

func TestTeardownFailureDoesNotChangeExitCode(t *testing.T) {
	engine, logger := install(t)
	engine.Containers().(*mock.ContainerService).OnRemove = func(context.Context, string, domain.RemoveOptions) error {
		return errors.New("engine refused")
	}

	code := Run(&fakeM{code: 0}, postgresInit(), nil)
	assert.Zero(t, code)
	assert.True(t, logger.HasError("containers may be left behind"))
}

func TestReadsBeforeSetupFail(t *testing.T) {
	install(t)

	_, err := ContainerURI(core.ServiceRedis)
	require.ErrorIs(t, err, core.ErrRegistryUsage)
	require.NoError(t, Teardown())
}

func inlineSettings(yaml string) config.LoadOptions {
	return config.LoadOptions{
		Inline:  base64.StdEncoding.EncodeToString([]byte(yaml)),
		SkipEnv: true,
	}
}

func TestInitAppliesTeardownTimeout(t *testing.T) {
	engine, _ := install(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	engine.Containers().(*mock.ContainerService).OnRemove = func(context.Context, string, domain.RemoveOptions) error {
		<-release
		return nil
	}

	init := Init(inlineSettings("keycloak:\n  enabled: false\nteardown:\n  timeout: 50ms\n"))
	require.NoError(t, Setup(init, nil))

	done := make(chan error, 1)
	go func() { done <- Teardown() }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, core.ErrTeardownTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("teardown ignored teardown.timeout from the settings")
	}
}

func TestInitDialsConfiguredEngineHost(t *testing.T) {
	engine := mock.NewDockerClient()
	logger := test.NewTestLogger()
	var dialed []string
	o := core.NewOrchestrator(logger,
		core.WithRegistry(core.NewRegistry()),
		core.WithEngineDialer(func(host string) (ports.DockerClient, error) {
			dialed = append(dialed, host)
			return engine, nil
		}),
		core.WithProvisionerOptions(core.WithWaitStrategy(core.ServicePostgres, ready)),
	)
	Use(o, logger)
	t.Cleanup(func() {
		_ = Teardown()
		Use(nil, nil)
	})

	init := Init(inlineSettings("docker:\n  host: tcp://10.1.2.3:2375\nkeycloak:\n  enabled: false\n"))
	code := Run(&fakeM{}, init, nil)

	assert.Zero(t, code)
	assert.Equal(t, []string{"tcp://10.1.2.3:2375"}, dialed)
	assert.True(t, engine.IsClosed())
}

func TestInitReportsInvalidSettingsAtSetup(t *testing.T) {
	engine, logger := install(t)

	m := &fakeM{}
	code := Run(m, Init(inlineSettings("docker:\n  pull-policy: sometimes\n")), nil)

	assert.Equal(t, 1, code)
	assert.False(t, m.ran)
	assert.Zero(t, engine.Containers().(*mock.ContainerService).Count())
	assert.True(t, logger.HasCritical("setup failed"))
}

func TestConfigureAppliesLogSettingsToOwnLogger(t *testing.T) {
	Use(nil, nil)
	t.Cleanup(func() { Use(nil, nil) })

	s := config.NewSettings()
	s.Log.Level = "debug"
	s.Log.Format = "json"
	require.NoError(t, Configure(s))

	adapter, ok := currentLogger().(*core.LogrusAdapter)
	require.True(t, ok)
	assert.Equal(t, logrus.DebugLevel, adapter.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, adapter.Formatter)
}

func TestConfigureKeepsInstalledLogger(t *testing.T) {
	_, logger := install(t)

	s := config.NewSettings()
	s.Log.Level = "error"
	require.NoError(t, Configure(s))
	assert.Same(t, logger, currentLogger())
}

func TestConfigureAfterSetupFails(t *testing.T) {
	install(t)
	require.NoError(t, Setup(postgresInit(), nil))

	require.ErrorIs(t, Configure(config.NewSettings()), core.ErrAlreadyInitialized)
}
