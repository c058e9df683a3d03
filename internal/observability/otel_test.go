package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledManagerIsNoop(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "skillpulse"}, nil)
	require.NoError(t, err)

	m := om.GetMetrics()
	require.NotNil(t, m)
	assert.Nil(t, m.StageDuration)

	// recording on empty metrics must not panic
	m.RecordFetch(context.Background(), "gb", "data analyst", errors.New("boom"))
	m.RecordForecastSeries(context.Background(), "skipped", 2)
	m.RecordRateLimitHit(context.Background())

	assert.Equal(t, http.DefaultTransport, om.HTTPTransport(nil))
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestTrackStage(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "skillpulse", Enabled: true, SampleRate: 1}, nil)
	require.NoError(t, err)
	defer om.Shutdown(context.Background())

	m := om.GetMetrics()
	require.NotNil(t, m.StageDuration)

	want := StageOutcome{Status: "failed", Rows: 3, Failures: 1, Err: errors.New("fit failed")}
	got := m.TrackStage(context.Background(), "forecast", func(ctx context.Context) StageOutcome {
		return want
	}, om)
	assert.Equal(t, want, got)
}

func TestObservabilityMiddlewarePassesThrough(t *testing.T) {
	called := false
	h := ObservabilityMiddleware(nil, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetObservabilityConfigDefaults(t *testing.T) {
	cfg := GetObservabilityConfig(nil, "1.2.3")
	assert.Equal(t, "skillpulse", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.False(t, cfg.Prometheus.Enabled)
}

func TestPrometheusServerServesAndStops(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("skillpulse_up 1\n"))
	})

	server, err := StartPrometheusServer(mux, "0", nil)
	require.NoError(t, err)
	require.NotNil(t, server)
	_, port, err := net.SplitHostPort(server.Addr)
	require.NoError(t, err)
	url := "http://127.0.0.1:" + port + "/metrics"

	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "skillpulse_up 1\n", string(body))

	require.NoError(t, shutdownPrometheusServer(server)(context.Background()))
	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestStartPrometheusServerWithoutMux(t *testing.T) {
	server, err := StartPrometheusServer(nil, "0", nil)
	assert.NoError(t, err)
	assert.Nil(t, server)
}
