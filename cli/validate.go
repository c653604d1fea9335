package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netresearch/testenv/core"
)

// ValidateCommand loads the settings, validates them and prints the
// effective result as YAML.
type ValidateCommand struct {
	SettingsOptions
	LogLevel string `long:"log-level" env:"TESTENV_LOG_LEVEL" description:"Set log level"`
	Logger   core.Logger

	out io.Writer
}

// Execute runs the validation command
func (c *ValidateCommand) Execute(_ []string) error {
	ApplyLogLevel(c.Logger, c.LogLevel)
	c.Logger.Debugf("Validating settings from %q", c.ConfigFile)

	settings, err := c.Load()
	if err != nil {
		c.Logger.Errorf("Invalid settings: %v", err)
		return err
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	c.Logger.Debugf("OK")
	return nil
}
