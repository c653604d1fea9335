package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/netresearch/testenv/cli"
	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/logging"
)

var version string
var build string

func buildLogger(level, format string) *core.LogrusAdapter {
	return core.NewLogrusAdapter(logging.New(level, format, os.Stdout))
}

// globalOptions are accepted before the command name.
type globalOptions struct {
	LogFormat string `long:"log-format" env:"TESTENV_LOG_FORMAT" description:"log output format (text or json)" default:"text"`
}

func newParser(logger core.Logger, logLevel string) *flags.Parser {
	parser := flags.NewNamedParser("testenv", flags.Default)
	parser.LongDescription = "Starts and inspects the containers integration tests run against."
	_, _ = parser.AddGroup("Global Options", "", &globalOptions{})

	_, _ = parser.AddCommand(
		"up",
		"start the environment and keep it running",
		"Provisions every enabled service, prints its endpoints and tears everything down on SIGINT or SIGTERM.",
		&cli.UpCommand{Logger: logger, LogLevel: logLevel},
	)
	_, _ = parser.AddCommand(
		"validate",
		"validates the settings",
		"Loads the settings from every source and prints the effective result.",
		&cli.ValidateCommand{Logger: logger, LogLevel: logLevel},
	)
	_, _ = parser.AddCommand(
		"doctor",
		"checks the settings and the container engine",
		"",
		&cli.DoctorCommand{Logger: logger, LogLevel: logLevel},
	)
	_, _ = parser.AddCommand(
		"prune",
		"removes containers left by interrupted runs",
		"",
		&cli.PruneCommand{Logger: logger, LogLevel: logLevel},
	)
	return parser
}

func main() {
	// Pre-parse logging flags to configure the logger before commands run
	var pre struct {
		LogLevel  string `long:"log-level" env:"TESTENV_LOG_LEVEL"`
		LogFormat string `long:"log-format" env:"TESTENV_LOG_FORMAT" default:"text"`
	}
	args := os.Args[1:]
	preParser := flags.NewParser(&pre, flags.IgnoreUnknown)
	_, _ = preParser.ParseArgs(args)

	logger := buildLogger(pre.LogLevel, pre.LogFormat)
	parser := newParser(logger, pre.LogLevel)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) {
			if flagErr.Type == flags.ErrHelp {
				return
			}
			parser.WriteHelp(os.Stdout)
			fmt.Printf("\nBuild information\n  commit: %s\n  date:%s\n", version, build)
		}
		os.Exit(1)
	}
}
