package cli

import "errors"

// ErrHealthCheckFailed is returned by doctor when a check failed.
var ErrHealthCheckFailed = errors.New("health check failed")
