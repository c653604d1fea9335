package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerStarted(t *testing.T) {
	t.Parallel()

	mc := NewMetricsCollector()
	mc.ContainerStarted("postgres", 2*time.Second)
	mc.ContainerStarted("postgres", time.Second)
	mc.ContainerStarted("redis", time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(mc.containersStarted.WithLabelValues("postgres")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mc.containersStarted.WithLabelValues("redis")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(mc.provisionDuration))
}

func TestFailuresAreLabelled(t *testing.T) {
	t.Parallel()

	mc := NewMetricsCollector()
	mc.ProvisionFailed("keycloak", "timeout")
	mc.StopFailed("container/testenv-redis-abc")
	mc.StopFailed("container/testenv-redis-abc")

	assert.InDelta(t, 1, testutil.ToFloat64(mc.provisionFailures.WithLabelValues("keycloak", "timeout")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(mc.stopFailures.WithLabelValues("container/testenv-redis-abc")), 0)
}

func TestPhaseGaugeIsExclusive(t *testing.T) {
	t.Parallel()

	mc := NewMetricsCollector()
	assert.InDelta(t, 1, testutil.ToFloat64(mc.phase.WithLabelValues("uninitialized")), 0)

	mc.PhaseChanged("ready")
	assert.InDelta(t, 0, testutil.ToFloat64(mc.phase.WithLabelValues("uninitialized")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mc.phase.WithLabelValues("ready")), 0)
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	mc := NewMetricsCollector()
	mc.ContainerStarted("redis", time.Second)

	srv := httptest.NewServer(mc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `testenv_containers_started_total{service="redis"} 1`)
	assert.Contains(t, string(body), `testenv_phase{phase="uninitialized"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
