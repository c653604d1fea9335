package test

import (
	"fmt"
	"strings"
	"sync"
)

// Logger records every message in memory so tests can assert on what an
// orchestrator or provisioner reported. It satisfies core.Logger.
type Logger struct {
	mu       sync.RWMutex
	messages []LogEntry
}

// LogEntry represents a single log message with its level
type LogEntry struct {
	Level   string
	Message string
}

// NewTestLogger creates an empty recording logger.
func NewTestLogger() *Logger {
	return &Logger{messages: make([]LogEntry, 0)}
}

// Criticalf logs a critical message
func (l *Logger) Criticalf(s string, v ...any) {
	l.log("CRITICAL", s, v...)
}

// Errorf logs an error message
func (l *Logger) Errorf(s string, v ...any) {
	l.log("ERROR", s, v...)
}

// Warningf logs a warning message
func (l *Logger) Warningf(s string, v ...any) {
	l.log("WARN", s, v...)
}

// Noticef logs a notice message
func (l *Logger) Noticef(s string, v ...any) {
	l.log("NOTICE", s, v...)
}

// Debugf logs a debug message
func (l *Logger) Debugf(s string, v ...any) {
	l.log("DEBUG", s, v...)
}

func (l *Logger) log(level, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)

	l.mu.Lock()
	l.messages = append(l.messages, LogEntry{
		Level:   level,
		Message: msg,
	})
	l.mu.Unlock()
}

// GetMessages returns all logged messages
func (l *Logger) GetMessages() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]LogEntry, len(l.messages))
	copy(result, l.messages)
	return result
}

// HasMessage checks if a message containing the substring was logged
func (l *Logger) HasMessage(substr string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, entry := range l.messages {
		if strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

// HasError checks if an error containing the substring was logged
func (l *Logger) HasError(substr string) bool {
	return l.has("ERROR", substr)
}

// HasCritical checks if a critical message containing the substring was logged
func (l *Logger) HasCritical(substr string) bool {
	return l.has("CRITICAL", substr)
}

// HasWarning checks if a warning containing the substring was logged
func (l *Logger) HasWarning(substr string) bool {
	return l.has("WARN", substr)
}

func (l *Logger) has(level, substr string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, entry := range l.messages {
		if entry.Level == level && strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

// Clear clears all logged messages
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

// MessageCount returns the number of logged messages
func (l *Logger) MessageCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// ErrorCount returns the number of error messages
func (l *Logger) ErrorCount() int {
	return l.count("ERROR")
}

// WarningCount returns the number of warning messages
func (l *Logger) WarningCount() int {
	return l.count("WARN")
}

func (l *Logger) count(level string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, entry := range l.messages {
		if entry.Level == level {
			n++
		}
	}
	return n
}
