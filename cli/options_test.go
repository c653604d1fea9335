package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/logging"
	"github.com/netresearch/testenv/test"
)

func TestSettingsOptionsLoadOptions(t *testing.T) {
	t.Parallel()

	opts := SettingsOptions{ConfigFile: "testenv.yaml", EnvFile: ".env.test", Inline: "e30="}.LoadOptions()
	assert.Equal(t, "testenv.yaml", opts.File)
	assert.Equal(t, ".env.test", opts.EnvFile)
	assert.Equal(t, "e30=", opts.Inline)
	assert.False(t, opts.SkipEnv)
}

func TestSettingsOptionsLoadInline(t *testing.T) {
	t.Parallel()

	s, err := SettingsOptions{Inline: inline("postgres:\n  database: billing\n")}.Load()
	require.NoError(t, err)
	assert.Equal(t, "billing", s.Postgres.Database)
}

func TestApplyLogLevel(t *testing.T) {
	t.Parallel()

	adapter := core.NewLogrusAdapter(logging.New("info", "text", nil))
	ApplyLogLevel(adapter, "debug")
	assert.Equal(t, "debug", adapter.GetLevel().String())

	ApplyLogLevel(adapter, "")
	assert.Equal(t, "debug", adapter.GetLevel().String())

	// Loggers that are not backed by logrus are left alone.
	ApplyLogLevel(test.NewTestLogger(), "debug")
}
