package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/core/ports"
)

const checkTimeout = 5 * time.Second

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// Environment is the view of a running environment the checks need.
// *core.Orchestrator implements it.
type Environment interface {
	Phase() core.Phase
	Session() string
	Registry() *core.Registry
}

var _ Environment = (*core.Orchestrator)(nil)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Phase     string                 `json:"phase"`
	Session   string                 `json:"session"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    float64                `json:"uptime_seconds"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]HealthCheck `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// SystemInfo contains process-level information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"goroutines"`
	MemoryAlloc  uint64 `json:"memory_alloc_bytes"`
}

// HealthChecker checks the engine and every provisioned container on
// request.
type HealthChecker struct {
	startTime time.Time
	engine    ports.DockerClient
	env       Environment
	version   string
}

// NewHealthChecker creates a health checker for env running on engine.
func NewHealthChecker(engine ports.DockerClient, env Environment, version string) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		engine:    engine,
		env:       env,
		version:   version,
	}
}

// GetHealth runs every check and returns the aggregated result.
func (hc *HealthChecker) GetHealth(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := make(map[string]HealthCheck)
	engine := hc.checkEngine(ctx)
	checks[engine.Name] = engine

	phase := hc.env.Phase()
	if phase == core.PhaseReady {
		for _, c := range hc.checkContainers(ctx) {
			checks[c.Name] = c
		}
	}

	status := HealthStatusHealthy
	if phase != core.PhaseReady {
		status = HealthStatusUnhealthy
	}
	for _, check := range checks {
		if check.Status == HealthStatusUnhealthy {
			status = HealthStatusUnhealthy
			break
		}
		if check.Status == HealthStatusDegraded {
			status = HealthStatusDegraded
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return HealthResponse{
		Status:    status,
		Phase:     phase.String(),
		Session:   hc.env.Session(),
		Timestamp: time.Now(),
		Uptime:    time.Since(hc.startTime).Seconds(),
		Version:   hc.version,
		Checks:    checks,
		System: SystemInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			MemoryAlloc:  m.Alloc,
		},
	}
}

func (hc *HealthChecker) checkEngine(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Name: "engine", LastChecked: start}

	switch {
	case hc.engine == nil:
		check.Status = HealthStatusUnhealthy
		check.Message = "Engine client not initialized"
	default:
		if _, err := hc.engine.System().Ping(ctx); err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = "Engine unreachable: " + err.Error()
			break
		}
		v, err := hc.engine.System().Version(ctx)
		if err != nil || v == nil {
			check.Status = HealthStatusDegraded
			check.Message = fmt.Sprintf("Could not get engine version: %v", err)
			break
		}
		check.Status = HealthStatusHealthy
		check.Message = "Engine " + v.Version
	}

	check.Duration = time.Since(start)
	return check
}

func (hc *HealthChecker) checkContainers(ctx context.Context) []HealthCheck {
	reg := hc.env.Registry()
	var checks []HealthCheck
	for _, kind := range []core.ServiceKind{core.ServicePostgres, core.ServiceRedis, core.ServiceKeycloak} {
		h, err := reg.Handle(kind)
		if err != nil {
			continue
		}
		start := time.Now()
		check := HealthCheck{Name: string(kind), LastChecked: start}

		ctr, err := hc.engine.Containers().Inspect(ctx, h.ContainerID)
		switch {
		case err != nil:
			check.Status = HealthStatusUnhealthy
			check.Message = "Inspect failed: " + err.Error()
		case !ctr.State.Running:
			check.Status = HealthStatusUnhealthy
			check.Message = fmt.Sprintf("Container %s is %s", h.Name, ctr.State.Status)
		default:
			check.Status = HealthStatusHealthy
			check.Message = h.URI
		}
		check.Duration = time.Since(start)
		checks = append(checks, check)
	}
	return checks
}

// LivenessHandler returns a simple liveness check
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler answers 503 until the environment is ready and every
// container runs.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hc.GetHealth(r.Context())

		statusCode := http.StatusOK
		if health.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, health)
	}
}

// HealthHandler returns detailed health information. It always answers 200.
func (hc *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hc.GetHealth(r.Context()))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
