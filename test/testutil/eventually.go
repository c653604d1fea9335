// Package testutil provides polling and channel helpers for asynchronous tests.
package testutil

import (
	"testing"
	"time"
)

// Defaults used when no Option overrides them.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 50 * time.Millisecond
)

type config struct {
	timeout  time.Duration
	interval time.Duration
	message  string
}

// Option configures Eventually and Never.
type Option func(*config)

// WithTimeout sets the maximum time to wait.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithMessage sets the message reported on failure.
func WithMessage(msg string) Option {
	return func(c *config) { c.message = msg }
}

func newConfig(message string, opts []Option) config {
	cfg := config{timeout: DefaultTimeout, interval: DefaultInterval, message: message}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// poll evaluates condition immediately and then every interval until it
// holds or the timeout passes. It reports whether the condition held.
func poll(cfg config, condition func() bool) bool {
	if condition() {
		return true
	}

	deadline := time.NewTimer(cfg.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return false
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// Eventually waits until condition returns true and fails t on timeout.
//
//	testutil.Eventually(t, func() bool {
//	    return orch.Phase() == core.PhaseReady
//	}, testutil.WithTimeout(2*time.Second))
func Eventually(t testing.TB, condition func() bool, opts ...Option) bool {
	t.Helper()
	cfg := newConfig("condition was not satisfied", opts)
	if poll(cfg, condition) {
		return true
	}
	t.Errorf("Eventually timed out after %v: %s", cfg.timeout, cfg.message)
	return false
}

// Never fails t if condition becomes true before the timeout passes.
func Never(t testing.TB, condition func() bool, opts ...Option) bool {
	t.Helper()
	cfg := newConfig("condition became true unexpectedly", opts)
	if poll(cfg, condition) {
		t.Errorf("Never: %s", cfg.message)
		return false
	}
	return true
}

// WaitForChan receives one value from ch. A closed channel counts as
// received and yields the zero value. It fails t on timeout.
func WaitForChan[T any](t testing.TB, ch <-chan T, timeout time.Duration) (T, bool) {
	t.Helper()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, true
	case <-timer.C:
		t.Errorf("WaitForChan timed out after %v", timeout)
		var zero T
		return zero, false
	}
}

// WaitForClose waits for ch to be closed. Receiving a value instead
// returns false without failing t.
func WaitForClose[T any](t testing.TB, ch <-chan T, timeout time.Duration) bool {
	t.Helper()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case _, ok := <-ch:
		return !ok
	case <-timer.C:
		t.Errorf("WaitForClose timed out after %v", timeout)
		return false
	}
}
