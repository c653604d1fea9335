package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core"
	"github.com/netresearch/testenv/core/domain"
	"github.com/netresearch/testenv/core/ports"
)

const doctorTimeout = 30 * time.Second

// Status constants for health check results.
const (
	statusPass = "pass"
	statusFail = "fail"
	statusSkip = "skip"
)

// Check categories in report order.
const (
	categorySettings = "Settings"
	categoryEngine   = "Container Engine"
	categoryImages   = "Images"
	categoryNetwork  = "Network"
	categoryLeftover = "Leftovers"
)

var categoryOrder = []string{categorySettings, categoryEngine, categoryImages, categoryNetwork, categoryLeftover}

// DoctorCommand checks that the settings load and that the container engine
// can run the environment they describe.
type DoctorCommand struct {
	SettingsOptions
	LogLevel string `long:"log-level" env:"TESTENV_LOG_LEVEL" description:"Set log level"`
	JSON     bool   `long:"json" description:"Output results as JSON"`
	Logger   core.Logger
	Engine   ports.DockerClient

	out io.Writer
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Hints    []string `json:"hints,omitempty"`
}

// DoctorReport contains all health check results
type DoctorReport struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

func (r *DoctorReport) add(c CheckResult) {
	if c.Status == statusFail {
		r.Healthy = false
	}
	r.Checks = append(r.Checks, c)
}

// warn records a failed check that does not make the report unhealthy.
func (r *DoctorReport) warn(c CheckResult) {
	c.Status = statusFail
	r.Checks = append(r.Checks, c)
}

// Execute runs all health checks
func (c *DoctorCommand) Execute(_ []string) error {
	ApplyLogLevel(c.Logger, c.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	report := &DoctorReport{Healthy: true, Checks: []CheckResult{}}

	var steps *StepReporter
	if !c.JSON {
		c.Logger.Noticef("🏥 Running test environment diagnostics...")
		steps = NewStepReporter(c.Logger, len(categoryOrder))
	}
	step := func(msg string) {
		if steps != nil {
			steps.Step(msg)
		}
	}

	step("Checking settings...")
	settings := c.checkSettings(report)

	step("Checking container engine...")
	engine, closeEngine := c.checkEngine(ctx, report, settings)
	if closeEngine != nil {
		defer closeEngine()
	}

	ready := engine != nil && settings != nil

	step("Checking images...")
	if ready {
		c.checkImages(ctx, report, engine, settings)
	} else {
		report.add(CheckResult{
			Category: categoryImages,
			Name:     "Image Availability",
			Status:   statusSkip,
			Message:  "Skipped (settings and engine required)",
		})
	}

	step("Checking network...")
	if ready {
		c.checkNetwork(ctx, report, engine, settings)
	}

	step("Looking for leftover containers...")
	if engine != nil {
		c.checkLeftovers(ctx, report, engine)
	}

	if steps != nil {
		steps.Complete("Diagnostics complete")
	}

	if c.JSON {
		return c.outputJSON(report)
	}
	return c.outputHuman(report)
}

func (c *DoctorCommand) checkSettings(report *DoctorReport) *config.Settings {
	if c.ConfigFile != "" {
		if _, err := os.Stat(c.ConfigFile); err != nil {
			report.add(CheckResult{
				Category: categorySettings,
				Name:     "File Exists",
				Status:   statusFail,
				Message:  fmt.Sprintf("Cannot read settings file: %v", err),
				Hints:    []string{"Specify the path with: --config=/path/to/testenv.yaml"},
			})
			return nil
		}
		report.add(CheckResult{
			Category: categorySettings,
			Name:     "File Exists",
			Status:   statusPass,
			Message:  c.ConfigFile,
		})
	}

	settings, err := c.Load()
	if err != nil {
		report.add(CheckResult{
			Category: categorySettings,
			Name:     "Valid",
			Status:   statusFail,
			Message:  err.Error(),
			Hints:    []string{"Show the effective settings with: testenv validate"},
		})
		return nil
	}

	enabled := 0
	for _, on := range []bool{settings.Postgres.Enabled, settings.Redis.Enabled, settings.Keycloak.Enabled} {
		if on {
			enabled++
		}
	}
	report.add(CheckResult{
		Category: categorySettings,
		Name:     "Valid",
		Status:   statusPass,
		Message:  fmt.Sprintf("%d service(s) enabled", enabled),
	})
	return settings
}

func (c *DoctorCommand) checkEngine(ctx context.Context, report *DoctorReport, settings *config.Settings) (ports.DockerClient, func()) {
	host := ""
	if settings != nil {
		host = settings.Docker.Host
	}

	engine, closeEngine, err := engineFor(c.Engine, host, c.Logger)
	if err != nil {
		report.add(CheckResult{
			Category: categoryEngine,
			Name:     "Client",
			Status:   statusFail,
			Message:  fmt.Sprintf("Cannot create engine client: %v", err),
			Hints:    []string{"Check DOCKER_HOST or docker.host in the settings"},
		})
		return nil, nil
	}

	if _, err := engine.System().Ping(ctx); err != nil {
		report.add(CheckResult{
			Category: categoryEngine,
			Name:     "Connectivity",
			Status:   statusFail,
			Message:  fmt.Sprintf("Engine ping failed: %v", err),
			Hints: []string{
				"Check the daemon: docker info",
				"Check socket permissions: ls -l /var/run/docker.sock",
			},
		})
		closeEngine()
		return nil, nil
	}

	msg := "Engine responding"
	if v, err := engine.System().Version(ctx); err == nil && v != nil {
		msg = fmt.Sprintf("Engine %s (API %s, %s/%s)", v.Version, v.APIVersion, v.Os, v.Arch)
	}
	report.add(CheckResult{
		Category: categoryEngine,
		Name:     "Connectivity",
		Status:   statusPass,
		Message:  msg,
	})
	return engine, closeEngine
}

func (c *DoctorCommand) checkImages(ctx context.Context, report *DoctorReport, engine ports.DockerClient, s *config.Settings) {
	images := []struct {
		kind    core.ServiceKind
		enabled bool
		ref     string
	}{
		{core.ServicePostgres, s.Postgres.Enabled, s.Postgres.ImageRef()},
		{core.ServiceRedis, s.Redis.Enabled, s.Redis.ImageRef()},
		{core.ServiceKeycloak, s.Keycloak.Enabled, s.Keycloak.ImageRef()},
	}

	for _, img := range images {
		if !img.enabled {
			continue
		}
		name := string(img.kind) + " image"

		exists, err := engine.Images().Exists(ctx, img.ref)
		switch {
		case err != nil:
			report.add(CheckResult{
				Category: categoryImages,
				Name:     name,
				Status:   statusFail,
				Message:  fmt.Sprintf("Cannot inspect %s: %v", img.ref, err),
			})
		case exists:
			report.add(CheckResult{
				Category: categoryImages,
				Name:     name,
				Status:   statusPass,
				Message:  img.ref,
			})
		case s.Docker.PullPolicy == config.PullNever:
			report.add(CheckResult{
				Category: categoryImages,
				Name:     name,
				Status:   statusFail,
				Message:  fmt.Sprintf("%s is not available locally and pull-policy is never", img.ref),
				Hints:    []string{"Pull it with: docker pull " + img.ref},
			})
		default:
			report.add(CheckResult{
				Category: categoryImages,
				Name:     name,
				Status:   statusSkip,
				Message:  fmt.Sprintf("%s will be pulled on first run", img.ref),
			})
		}
	}
}

func (c *DoctorCommand) checkNetwork(ctx context.Context, report *DoctorReport, engine ports.DockerClient, s *config.Settings) {
	networks, err := engine.Networks().List(ctx, domain.NetworkListOptions{
		Filters: map[string][]string{"name": {s.Network.Name}},
	})
	if err != nil {
		report.add(CheckResult{
			Category: categoryNetwork,
			Name:     s.Network.Name,
			Status:   statusFail,
			Message:  fmt.Sprintf("Cannot list networks: %v", err),
		})
		return
	}

	for _, n := range networks {
		if n.Name == s.Network.Name {
			report.add(CheckResult{
				Category: categoryNetwork,
				Name:     s.Network.Name,
				Status:   statusPass,
				Message:  "Exists and will be reused",
			})
			return
		}
	}

	if !s.Network.Create {
		report.add(CheckResult{
			Category: categoryNetwork,
			Name:     s.Network.Name,
			Status:   statusFail,
			Message:  "Network does not exist and network.create is false",
			Hints:    []string{"Create it with: docker network create " + s.Network.Name},
		})
		return
	}
	report.add(CheckResult{
		Category: categoryNetwork,
		Name:     s.Network.Name,
		Status:   statusPass,
		Message:  "Will be created on setup",
	})
}

func (c *DoctorCommand) checkLeftovers(ctx context.Context, report *DoctorReport, engine ports.DockerClient) {
	containers, err := engine.Containers().List(ctx, domain.ListOptions{
		All:     true,
		Filters: map[string][]string{"label": {core.LabelSession}},
	})
	if err != nil {
		report.add(CheckResult{
			Category: categoryLeftover,
			Name:     "Containers",
			Status:   statusSkip,
			Message:  fmt.Sprintf("Cannot list containers: %v", err),
		})
		return
	}
	if len(containers) == 0 {
		report.add(CheckResult{
			Category: categoryLeftover,
			Name:     "Containers",
			Status:   statusPass,
			Message:  "No containers left from earlier runs",
		})
		return
	}

	sessions := make(map[string]struct{})
	for _, ctr := range containers {
		sessions[ctr.Labels[core.LabelSession]] = struct{}{}
	}
	// Leftovers do not block a new run.
	report.warn(CheckResult{
		Category: categoryLeftover,
		Name:     "Containers",
		Message:  fmt.Sprintf("%d container(s) from %d earlier session(s)", len(containers), len(sessions)),
		Hints:    []string{"Remove them with: testenv prune"},
	})
}

func (c *DoctorCommand) writer() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

func (c *DoctorCommand) outputJSON(report *DoctorReport) error {
	enc := json.NewEncoder(c.writer())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if !report.Healthy {
		return ErrHealthCheckFailed
	}
	return nil
}

func (c *DoctorCommand) outputHuman(report *DoctorReport) error {
	c.Logger.Noticef("🏥 Test Environment Health Check")

	byCategory := make(map[string][]CheckResult)
	for _, check := range report.Checks {
		byCategory[check.Category] = append(byCategory[check.Category], check)
	}

	for _, category := range categoryOrder {
		checks, ok := byCategory[category]
		if !ok {
			continue
		}
		c.Logger.Noticef("%s %s", categoryIcon(category), category)
		for _, check := range checks {
			if check.Message != "" {
				c.Logger.Noticef("  %s %s: %s", statusIcon(check.Status), check.Name, check.Message)
			} else {
				c.Logger.Noticef("  %s %s", statusIcon(check.Status), check.Name)
			}
			for _, hint := range check.Hints {
				c.Logger.Noticef("    → %s", hint)
			}
		}
	}

	failed, skipped := 0, 0
	for _, check := range report.Checks {
		switch check.Status {
		case statusFail:
			failed++
		case statusSkip:
			skipped++
		}
	}

	if report.Healthy {
		c.Logger.Noticef("Summary: All checks passed ✅")
		if skipped > 0 {
			c.Logger.Noticef("  (%d check(s) skipped)", skipped)
		}
		return nil
	}
	c.Logger.Noticef("Summary: %d issue(s) found ❌", failed)
	return ErrHealthCheckFailed
}

func categoryIcon(category string) string {
	switch category {
	case categorySettings:
		return "📋"
	case categoryEngine:
		return "🐳"
	case categoryImages:
		return "🖼️"
	case categoryNetwork:
		return "🔌"
	default:
		return "📌"
	}
}

func statusIcon(status string) string {
	switch status {
	case statusPass:
		return "✅"
	case statusFail:
		return "❌"
	case statusSkip:
		return "⚠️"
	default:
		return "❓"
	}
}
