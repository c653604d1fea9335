// Package logging builds the logrus loggers used by the test environment.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	textTimestampFormat = "2006-01-02 15:04:05"
	jsonTimestampFormat = "2006-01-02T15:04:05.000Z07:00"
)

// New creates a logrus logger writing to out (stdout when nil). Unknown
// levels fall back to info, unknown formats to text.
func New(level, format string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetReportCaller(true)
	logger.SetLevel(ParseLevel(level))

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: jsonTimestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
			CallerPrettyfier: prettyCaller,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			ForceColors:      colorEnabled(out),
			DisableQuote:     true,
			TimestampFormat:  textTimestampFormat,
			CallerPrettyfier: prettyCaller,
		})
	}

	return logger
}

// ParseLevel maps a level name to a logrus level. "notice" is an alias of
// info and "warning" of warn.
func ParseLevel(level string) logrus.Level {
	switch l := strings.ToLower(level); l {
	case "notice":
		return logrus.InfoLevel
	default:
		lvl, err := logrus.ParseLevel(l)
		if err != nil {
			return logrus.InfoLevel
		}
		return lvl
	}
}

func prettyCaller(frame *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}

// colorEnabled reports whether out is an interactive terminal that accepts
// ANSI colours.
func colorEnabled(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

const banner = `
 _            _
| |_ ___  ___| |_ ___ _ ____   __
| __/ _ \/ __| __/ _ \ '_ \ \ / /
| ||  __/\__ \ ||  __/ | | \ V /
 \__\___||___/\__\___|_| |_|\_/
`

// WriteBanner prints the startup banner followed by the given service
// summary lines. Colour is used only on terminals.
func WriteBanner(out io.Writer, lines ...string) {
	color := colorEnabled(out)
	if color {
		_, _ = fmt.Fprint(out, "\x1b[36m")
	}
	_, _ = fmt.Fprint(out, banner)
	if color {
		_, _ = fmt.Fprint(out, "\x1b[0m")
	}
	for _, line := range lines {
		_, _ = fmt.Fprintf(out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(out)
}
