package core

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface used by every component.
type Logger interface {
	Criticalf(format string, args ...any)
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
	Noticef(format string, args ...any)
	Warningf(format string, args ...any)
}

// LogrusAdapter wraps a logrus.Logger to satisfy the Logger interface.
// Criticalf logs at error level with a critical field and does not exit.
type LogrusAdapter struct {
	*logrus.Logger
	mu sync.Mutex // Protects ReportCaller modifications
}

var _ Logger = (*LogrusAdapter)(nil)

// NewLogrusAdapter wraps l.
func NewLogrusAdapter(l *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{Logger: l}
}

// logf reports the adapter's caller as a "caller" field. logrus would
// otherwise resolve the frame inside the adapter.
func (l *LogrusAdapter) logf(level logrus.Level, fields logrus.Fields, format string, args ...any) {
	_, file, line, ok := runtime.Caller(2)

	l.mu.Lock()
	prev := l.Logger.ReportCaller
	l.Logger.ReportCaller = false
	defer func() {
		l.Logger.ReportCaller = prev
		l.mu.Unlock()
	}()

	entry := logrus.NewEntry(l.Logger).WithFields(fields)
	if prev && ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Logf(level, format, args...)
}

func (l *LogrusAdapter) Criticalf(format string, args ...any) {
	l.logf(logrus.ErrorLevel, logrus.Fields{"critical": true}, format, args...)
}

func (l *LogrusAdapter) Debugf(format string, args ...any) {
	l.logf(logrus.DebugLevel, nil, format, args...)
}

func (l *LogrusAdapter) Errorf(format string, args ...any) {
	l.logf(logrus.ErrorLevel, nil, format, args...)
}

func (l *LogrusAdapter) Noticef(format string, args ...any) {
	l.logf(logrus.InfoLevel, nil, format, args...)
}

func (l *LogrusAdapter) Warningf(format string, args ...any) {
	l.logf(logrus.WarnLevel, nil, format, args...)
}
