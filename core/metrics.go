package core

import "time"

// MetricsRecorder receives lifecycle measurements. The metrics package
// provides a Prometheus implementation.
type MetricsRecorder interface {
	ContainerStarted(service string, took time.Duration)
	ProvisionFailed(service, reason string)
	StopFailed(hook string)
	PhaseChanged(phase string)
}

type noopMetrics struct{}

func (noopMetrics) ContainerStarted(string, time.Duration) {}
func (noopMetrics) ProvisionFailed(string, string)         {}
func (noopMetrics) StopFailed(string)                      {}
func (noopMetrics) PhaseChanged(string)                    {}
