package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	Enabled  bool
	Endpoint string
	Port     string
}

// SetupPrometheusExporter creates the OTel Prometheus reader and a mux serving it on config.Endpoint
func SetupPrometheusExporter(config PrometheusConfig) (metric.Reader, *http.ServeMux, error) {
	if !config.Enabled {
		return nil, nil, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// the exporter registers with the default registry that promhttp serves
	mux := http.NewServeMux()
	mux.Handle(config.Endpoint, promhttp.Handler())

	return exporter, mux, nil
}

// StartPrometheusServer binds port and serves mux in the background. The returned
// server is nil when mux is nil.
func StartPrometheusServer(mux *http.ServeMux, port string, logger *errors.Logger) (*http.Server, error) {
	if mux == nil {
		return nil, nil
	}

	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on port %s: %w", port, err)
	}

	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if logger != nil {
		logger.Info("Prometheus metrics server started", "address", ln.Addr().String())
	}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed && logger != nil {
			logger.LogError(err, "Prometheus server stopped")
		}
	}()

	return server, nil
}

// shutdownPrometheusServer returns the shutdown hook of a started metrics server
func shutdownPrometheusServer(server *http.Server) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop Prometheus server: %w", err)
		}
		return nil
	}
}

// GetPrometheusConfig reads the Prometheus section of cfg. Without a config the exporter is off.
func GetPrometheusConfig(cfg *config.Config) PrometheusConfig {
	if cfg != nil {
		return PrometheusConfig{
			Enabled:  cfg.Observability.Prometheus.Enabled,
			Endpoint: cfg.Observability.Prometheus.Endpoint,
			Port:     cfg.Observability.Prometheus.Port,
		}
	}

	return PrometheusConfig{
		Enabled:  false,
		Endpoint: "/metrics",
		Port:     "9090",
	}
}
