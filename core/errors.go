package core

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used across the package
var (
	// Lifecycle errors
	ErrAlreadyInitialized = errors.New("environment already initialized")
	ErrSetupFailed        = errors.New("environment setup failed")
	ErrTeardownTimeout    = errors.New("teardown timed out waiting for confirmation")

	// Bridge errors
	ErrBridgeClosed = errors.New("runtime bridge is shut down")
	ErrTaskPanicked = errors.New("task panicked")

	// Registry errors
	ErrRegistryUsage = errors.New("registry used outside its ready window")
	ErrEntryNotFound = errors.New("registry entry not found")

	// Provisioning errors
	ErrNoPublishedPort = errors.New("container port is not published")
	ErrNotProvisioned  = errors.New("service not provisioned")
)

// ProvisionKind classifies provisioning failures.
type ProvisionKind int

const (
	// ProvisionTimeout means the service did not become ready in time.
	ProvisionTimeout ProvisionKind = iota + 1
	// ProvisionEngineUnavailable means the container engine is unreachable.
	ProvisionEngineUnavailable
	// ProvisionConfigInvalid means the settings cannot describe a container.
	ProvisionConfigInvalid
	// ProvisionStartFailed means the engine refused to pull, create or start.
	ProvisionStartFailed
)

func (k ProvisionKind) String() string {
	switch k {
	case ProvisionTimeout:
		return "timeout"
	case ProvisionEngineUnavailable:
		return "engine unavailable"
	case ProvisionConfigInvalid:
		return "invalid configuration"
	case ProvisionStartFailed:
		return "start failed"
	default:
		return "unknown"
	}
}

// ProvisionError reports why a service could not be provisioned.
type ProvisionError struct {
	Kind    ProvisionKind
	Service string
	// LogTail holds the last container output for timeouts, when available.
	LogTail string
	Err     error
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("provision %s: %s", e.Service, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.LogTail != "" {
		msg += "\n--- container log tail ---\n" + e.LogTail
	}
	return msg
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Is matches another *ProvisionError of the same kind, so callers can write
// errors.Is(err, &ProvisionError{Kind: ProvisionTimeout}).
func (e *ProvisionError) Is(target error) bool {
	t, ok := target.(*ProvisionError)
	return ok && t.Kind == e.Kind && (t.Service == "" || t.Service == e.Service)
}

// IsProvisionKind reports whether err carries a ProvisionError of kind.
func IsProvisionKind(err error, kind ProvisionKind) bool {
	pe, ok := errors.AsType[*ProvisionError](err)
	return ok && pe.Kind == kind
}

func newProvisionError(kind ProvisionKind, service string, err error) *ProvisionError {
	return &ProvisionError{Kind: kind, Service: service, Err: err}
}

// StopFailure is one stop capability that failed during teardown.
type StopFailure struct {
	Name string
	Err  error
}

// TeardownError lists every stop capability that failed. Teardown keeps
// going after a failure, so all of them are attempted.
type TeardownError struct {
	Failures []StopFailure
}

func (e *TeardownError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	return fmt.Sprintf("teardown: %d stop(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures to errors.Is/As.
func (e *TeardownError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// RegistryUsageError is returned when the registry is read before it is
// ready, after teardown cleared it, or written after it was sealed.
type RegistryUsageError struct {
	Op    string
	Key   string
	State string
}

func (e *RegistryUsageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("registry %s while %s", e.Op, e.State)
	}
	return fmt.Sprintf("registry %s %q while %s", e.Op, e.Key, e.State)
}

// Is makes RegistryUsageError match ErrRegistryUsage.
func (e *RegistryUsageError) Is(target error) bool {
	return target == ErrRegistryUsage
}

// WrapContainerError wraps a container-related error with context
func WrapContainerError(op string, containerID string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s container %q: %w", op, containerID, err)
}

// WrapImageError wraps an image-related error with context
func WrapImageError(op string, image string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s image %q: %w", op, image, err)
}
