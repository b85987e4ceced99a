package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Extension.SubscriptionTypeID = "8f6b8a4e-2c7d-4b8e-9a53-1f0d3c6e2b71"
	cfg.Extension.SubscriptionServiceURL = "https://subscriptions.example.com/subscriptions/add"
	cfg.Observability.ServiceName = "subext"
	cfg.Observability.Environment = "test"
	cfg.Observability.TraceSampleRate = 1
	return cfg
}

func TestManagerDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	mgr, err := NewManager(lc, testConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())

	inst := mgr.Instruments()
	require.NotNil(t, inst)
	inst.Invocation(context.Background(), "Create", "ok")
	inst.Registration(context.Background(), "registered", time.Millisecond)

	lc.RequireStart().RequireStop()
}

func TestManagerPrometheusScrape(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := testConfig()
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "prometheus"

	mgr, err := NewManager(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	require.True(t, mgr.MetricsEnabled())
	require.NotNil(t, mgr.MetricsHandler())
	lc.RequireStart()
	defer lc.RequireStop()

	ctx := context.Background()
	mgr.Instruments().Invocation(ctx, "Create", "ok")
	mgr.Instruments().Registration(ctx, "registered", 300*time.Millisecond)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `subext_extension_invocations_total{action="Create"`)
	assert.Contains(t, body, `subext_registrations_total{`)
	assert.Contains(t, body, `subext_registration_duration_seconds_bucket{`)
	assert.Contains(t, body, `le="0.25"`)
	assert.Contains(t, body, `le="8"`)
	assert.Contains(t, body, `subext_subscription_host="subscriptions.example.com"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestManagersDoNotShareRegistry(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "prometheus"

	for i := 0; i < 2; i++ {
		lc := fxtest.NewLifecycle(t)
		_, err := NewManager(lc, cfg, zap.NewNop())
		require.NoError(t, err)
		lc.RequireStart().RequireStop()
	}
}

func TestManagerStdoutExporters(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := testConfig()
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "stdout"
	cfg.Observability.EnableTracing = true
	cfg.Observability.TraceExporter = "stdout"

	mgr, err := NewManager(lc, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, mgr.MetricsEnabled())
	assert.True(t, mgr.TracingEnabled())
	assert.Nil(t, mgr.MetricsHandler())

	lc.RequireStart().RequireStop()
}

func TestManagerUnknownExporters(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "statsd"
	cfg.Observability.EnableTracing = true
	cfg.Observability.TraceExporter = "zipkin"

	mgr, err := NewManager(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())
	assert.NotNil(t, mgr.Instruments())
}

func TestNilInstrumentsAreSafe(t *testing.T) {
	var mgr *Manager
	inst := mgr.Instruments()
	inst.Invocation(context.Background(), "Create", "ok")
	inst.Registration(context.Background(), "failed", time.Second)
}
