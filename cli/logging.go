package cli

import (
	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/logging"
)

// ApplyLogLevel sets the level of logger when it is backed by logrus and
// level is not empty. Unknown levels fall back to info.
func ApplyLogLevel(logger core.Logger, level string) {
	if level == "" {
		return
	}
	if l, ok := logger.(*core.LogrusAdapter); ok {
		l.SetLevel(logging.ParseLevel(level))
	}
}
