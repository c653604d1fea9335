package cli

import (
	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/core/ports"

	dockeradapter "github.com/netresearch/testenv/core/adapters/docker"
)

// SettingsOptions are the flags shared by every command that reads
// settings.
type SettingsOptions struct {
	ConfigFile string `long:"config" short:"c" env:"TESTENV_CONFIG" description:"settings file (YAML or INI)"`
	EnvFile    string `long:"env-file" env:"TESTENV_ENV_FILE" description:"dotenv file loaded before environment overrides"`
	Inline     string `long:"inline" env:"TESTENV_INLINE" description:"base64 encoded YAML settings applied after --config"`
}

// LoadOptions converts the flags into loader options.
func (o SettingsOptions) LoadOptions() config.LoadOptions {
	return config.LoadOptions{
		File:    o.ConfigFile,
		Inline:  o.Inline,
		EnvFile: o.EnvFile,
	}
}

// Load reads and validates the settings selected by the flags.
func (o SettingsOptions) Load() (*config.Settings, error) {
	return config.Load(o.LoadOptions())
}

// dialEngine connects to the engine at host, or DOCKER_HOST when empty.
func dialEngine(host string) (ports.DockerClient, error) {
	cfg := dockeradapter.DefaultConfig()
	cfg.Host = host
	return dockeradapter.NewClientWithConfig(cfg)
}

// engineFor returns engine when set, otherwise a new connection and a
// function closing it.
func engineFor(engine ports.DockerClient, host string, logger core.Logger) (ports.DockerClient, func(), error) {
	if engine != nil {
		return engine, func() {}, nil
	}
	client, err := dialEngine(host)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warningf("Closing engine client: %v", err)
		}
	}, nil
}
