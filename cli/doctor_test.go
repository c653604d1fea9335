package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/core/adapters/mock"
	"github.com/netresearch/testenv/test"
)

func runDoctor(t *testing.T, engine *mock.DockerClient, settings string) (*DoctorReport, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &DoctorCommand{
		SettingsOptions: SettingsOptions{Inline: inline(settings)},
		JSON:            true,
		Logger:          test.NewTestLogger(),
		Engine:          engine,
		out:             &out,
	}
	err := cmd.Execute(nil)

	var report DoctorReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	return &report, err
}

func findCheck(report *DoctorReport, category, name string) (CheckResult, bool) {
	for _, c := range report.Checks {
		if c.Category == category && c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

func TestDoctorHealthy(t *testing.T) {
	t.Parallel()

	report, err := runDoctor(t, mock.NewDockerClient(), "redis:\n  enabled: true\n")
	require.NoError(t, err)
	assert.True(t, report.Healthy)

	settings, ok := findCheck(report, categorySettings, "Valid")
	require.True(t, ok)
	assert.Equal(t, "3 service(s) enabled", settings.Message)

	engine, ok := findCheck(report, categoryEngine, "Connectivity")
	require.True(t, ok)
	assert.Equal(t, statusPass, engine.Status)
	assert.Contains(t, engine.Message, "28.5.2")

	for _, kind := range []core.ServiceKind{core.ServicePostgres, core.ServiceRedis, core.ServiceKeycloak} {
		img, ok := findCheck(report, categoryImages, string(kind)+" image")
		require.True(t, ok, kind)
		assert.Equal(t, statusPass, img.Status)
	}

	network, ok := findCheck(report, categoryNetwork, "test_network")
	require.True(t, ok)
	assert.Equal(t, "Will be created on setup", network.Message)

	leftovers, ok := findCheck(report, categoryLeftover, "Containers")
	require.True(t, ok)
	assert.Equal(t, statusPass, leftovers.Status)
}

func TestDoctorEngineDown(t *testing.T) {
	t.Parallel()

	engine := mock.NewDockerClient()
	engine.System().(*mock.SystemService).SetPingError(errors.New("connection refused"))

	report, err := runDoctor(t, engine, "keycloak:\n  enabled: false\n")
	require.ErrorIs(t, err, ErrHealthCheckFailed)
	assert.False(t, report.Healthy)

	check, ok := findCheck(report, categoryEngine, "Connectivity")
	require.True(t, ok)
	assert.Equal(t, statusFail, check.Status)
	assert.NotEmpty(t, check.Hints)

	skipped, ok := findCheck(report, categoryImages, "Image Availability")
	require.True(t, ok)
	assert.Equal(t, statusSkip, skipped.Status)
	_, ok = findCheck(report, categoryLeftover, "Containers")
	assert.False(t, ok)
}

func TestDoctorMissingImages(t *testing.T) {
	t.Parallel()

	engine := mock.NewDockerClient()
	engine.Images().(*mock.ImageService).SetExistsResult(false)

	report, err := runDoctor(t, engine, "keycloak:\n  enabled: false\n")
	require.NoError(t, err, "missing images are pulled on first run")
	img, ok := findCheck(report, categoryImages, "postgres image")
	require.True(t, ok)
	assert.Equal(t, statusSkip, img.Status)

	report, err = runDoctor(t, engine, "keycloak:\n  enabled: false\ndocker:\n  pull-policy: never\n")
	require.ErrorIs(t, err, ErrHealthCheckFailed)
	img, ok = findCheck(report, categoryImages, "postgres image")
	require.True(t, ok)
	assert.Equal(t, statusFail, img.Status)
	assert.Equal(t, []string{"Pull it with: docker pull postgres:17-alpine"}, img.Hints)
}

func TestDoctorNetwork(t *testing.T) {
	t.Parallel()

	engine := mock.NewDockerClient()
	report, err := runDoctor(t, engine, "keycloak:\n  enabled: false\nnetwork:\n  create: false\n")
	require.ErrorIs(t, err, ErrHealthCheckFailed)
	check, ok := findCheck(report, categoryNetwork, "test_network")
	require.True(t, ok)
	assert.Equal(t, statusFail, check.Status)

	leftoverNetwork(t, engine, "test_network", "")
	report, err = runDoctor(t, engine, "keycloak:\n  enabled: false\nnetwork:\n  create: false\n")
	require.NoError(t, err)
	check, ok = findCheck(report, categoryNetwork, "test_network")
	require.True(t, ok)
	assert.Equal(t, "Exists and will be reused", check.Message)
}

func TestDoctorReportsLeftoversWithoutFailing(t *testing.T) {
	t.Parallel()

	engine := mock.NewDockerClient()
	leftover(t, engine, "aaaaaaaaaaaa", core.ServicePostgres)
	leftover(t, engine, "aaaaaaaaaaaa", core.ServiceRedis)
	leftover(t, engine, "bbbbbbbbbbbb", core.ServicePostgres)

	report, err := runDoctor(t, engine, "keycloak:\n  enabled: false\n")
	require.NoError(t, err)
	assert.True(t, report.Healthy)

	check, ok := findCheck(report, categoryLeftover, "Containers")
	require.True(t, ok)
	assert.Equal(t, statusFail, check.Status)
	assert.Equal(t, "3 container(s) from 2 earlier session(s)", check.Message)
	assert.Equal(t, []string{"Remove them with: testenv prune"}, check.Hints)
}

func TestDoctorInvalidSettings(t *testing.T) {
	t.Parallel()

	report, err := runDoctor(t, mock.NewDockerClient(), "docker:\n  pull-policy: sometimes\n")
	require.ErrorIs(t, err, ErrHealthCheckFailed)

	check, ok := findCheck(report, categorySettings, "Valid")
	require.True(t, ok)
	assert.Equal(t, statusFail, check.Status)
	assert.Contains(t, check.Message, "sometimes")

	engine, ok := findCheck(report, categoryEngine, "Connectivity")
	require.True(t, ok, "engine is still checked")
	assert.Equal(t, statusPass, engine.Status)
}

func TestDoctorMissingSettingsFile(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := &DoctorCommand{
		SettingsOptions: SettingsOptions{ConfigFile: filepath.Join(t.TempDir(), "testenv.yaml")},
		JSON:            true,
		Logger:          test.NewTestLogger(),
		Engine:          mock.NewDockerClient(),
		out:             &out,
	}
	require.ErrorIs(t, cmd.Execute(nil), ErrHealthCheckFailed)
	assert.Contains(t, out.String(), "Cannot read settings file")
}

func TestDoctorHumanOutput(t *testing.T) {
	t.Parallel()

	logger := test.NewTestLogger()
	cmd := &DoctorCommand{
		SettingsOptions: SettingsOptions{Inline: inline("keycloak:\n  enabled: false\n")},
		Logger:          logger,
		Engine:          mock.NewDockerClient(),
	}
	require.NoError(t, cmd.Execute(nil))
	assert.True(t, logger.HasMessage("Summary: All checks passed"))
	assert.True(t, logger.HasMessage("Container Engine"))
}
