package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// Metrics holds all custom metrics for skillpulse
type Metrics struct {
	// Pipeline stage metrics
	StageDuration metric.Float64Histogram
	StageRows     metric.Int64Counter
	StageFailures metric.Int64Counter

	// Job source metrics
	FetchRequests metric.Int64Counter
	FetchErrors   metric.Int64Counter

	ForecastSeries metric.Int64Counter

	RateLimitHits metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config           ObservabilityConfig
	fullConfig       *config.Config
	resource         *resource.Resource
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.Server
	logger           *errors.Logger
}

// ManagerOption configures an ObservabilityManager
type ManagerOption func(*ObservabilityManager)

// WithLogger sets the logger used for exporter and metrics server messages
func WithLogger(logger *errors.Logger) ManagerOption {
	return func(om *ObservabilityManager) {
		om.logger = logger
	}
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config, opts ...ManagerOption) (*ObservabilityManager, error) {
	om := &ObservabilityManager{
		config:        obsConfig,
		fullConfig:    fullConfig,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}
	for _, opt := range opts {
		opt(om)
	}
	if !obsConfig.Enabled {
		return om, nil
	}

	if err := om.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

func (om *ObservabilityManager) initResource() error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.getServiceInstanceID()),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	om.resource = res
	return nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	if om.config.ConsoleOutput {
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	} else if om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled {
		exporter, err = om.createOTLPExporter()
	} else {
		exporter = &noOpSpanExporter{}
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.resource),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	meterProviderOptions := []sdkmetric.Option{
		sdkmetric.WithResource(om.resource),
	}
	for _, reader := range readers {
		meterProviderOptions = append(meterProviderOptions, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(meterProviderOptions...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initCustomMetrics()
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if err := om.setupConsoleReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupOTLPReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupPrometheusReader(&readers); err != nil {
		return nil, err
	}

	// If no readers configured, use manual reader as fallback
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

func (om *ObservabilityManager) setupConsoleReader(readers *[]sdkmetric.Reader) error {
	if !om.config.ConsoleOutput {
		return nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("failed to create console metric exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	*readers = append(*readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	return nil
}

func (om *ObservabilityManager) setupOTLPReader(readers *[]sdkmetric.Reader) error {
	if om.fullConfig == nil || !om.fullConfig.Observability.OTLP.Enabled {
		return nil
	}

	otlpReader, err := om.createOTLPMetricsReader()
	if err != nil {
		return fmt.Errorf("failed to create OTLP metrics reader: %w", err)
	}
	if otlpReader != nil {
		*readers = append(*readers, otlpReader)
	}
	return nil
}

func (om *ObservabilityManager) setupPrometheusReader(readers *[]sdkmetric.Reader) error {
	if !om.config.Prometheus.Enabled {
		return nil
	}

	prometheusReader, prometheusMux, err := SetupPrometheusExporter(om.config.Prometheus)
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	if prometheusReader != nil {
		*readers = append(*readers, prometheusReader)

		server, err := StartPrometheusServer(prometheusMux, om.config.Prometheus.Port, om.logger)
		if err != nil {
			return fmt.Errorf("failed to start Prometheus server: %w", err)
		}
		om.prometheusServer = server
		om.shutdownFuncs = append(om.shutdownFuncs, shutdownPrometheusServer(server))
	}
	return nil
}

// initCustomMetrics creates all custom metrics for skillpulse
func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	om.metrics = &Metrics{}

	if err := om.createStageMetrics(meter); err != nil {
		return err
	}

	if err := om.createSourceMetrics(meter); err != nil {
		return err
	}

	return om.createRateLimitMetrics(meter)
}

func (om *ObservabilityManager) createStageMetrics(meter metric.Meter) error {
	var err error

	om.metrics.StageDuration, err = meter.Float64Histogram(
		"skillpulse_stage_duration_seconds",
		metric.WithDescription("Time spent running a pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage duration metric: %w", err)
	}

	om.metrics.StageRows, err = meter.Int64Counter(
		"skillpulse_stage_rows_total",
		metric.WithDescription("Rows written by pipeline stages"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage rows metric: %w", err)
	}

	om.metrics.StageFailures, err = meter.Int64Counter(
		"skillpulse_stage_failures_total",
		metric.WithDescription("Failed stages and failed slices within stages"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage failures metric: %w", err)
	}

	om.metrics.ForecastSeries, err = meter.Int64Counter(
		"skillpulse_forecast_series_total",
		metric.WithDescription("Forecast series by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create forecast series metric: %w", err)
	}

	return nil
}

func (om *ObservabilityManager) createSourceMetrics(meter metric.Meter) error {
	var err error

	om.metrics.FetchRequests, err = meter.Int64Counter(
		"skillpulse_fetch_requests_total",
		metric.WithDescription("Total number of job source page requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetch request metric: %w", err)
	}

	om.metrics.FetchErrors, err = meter.Int64Counter(
		"skillpulse_fetch_errors_total",
		metric.WithDescription("Total number of failed job source page requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetch error metric: %w", err)
	}

	return nil
}

func (om *ObservabilityManager) createRateLimitMetrics(meter metric.Meter) error {
	var err error

	om.metrics.RateLimitHits, err = meter.Int64Counter(
		"skillpulse_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om == nil || om.metrics == nil || !om.customMetricsEnabled() {
		return &Metrics{}
	}
	return om.metrics
}

func (om *ObservabilityManager) customMetricsEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.Metrics.Enabled
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if om == nil || !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// HTTPTransport wraps an outbound transport with client spans and metrics
func (om *ObservabilityManager) HTTPTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if om == nil || !om.config.Enabled {
		return base
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om == nil || !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	if om == nil {
		return nil
	}
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StageOutcome is what a traced stage reports back
type StageOutcome struct {
	Status   string
	Rows     int
	Failures int
	Err      error
}

// TrackStage runs fn inside a "stage.<name>" span and records duration, rows and failures.
func (m *Metrics) TrackStage(ctx context.Context, stage string, fn func(context.Context) StageOutcome, om *ObservabilityManager) StageOutcome {
	tracer := om.Tracer("skillpulse.pipeline")
	ctx, span := tracer.Start(ctx, "stage."+stage)
	defer span.End()

	start := time.Now()
	outcome := fn(ctx)
	m.RecordStage(ctx, stage, outcome, time.Since(start))

	span.SetAttributes(
		attribute.String("stage", stage),
		attribute.String("status", outcome.Status),
		attribute.Int("rows", outcome.Rows),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
	}
	return outcome
}

// RecordStage records the metrics of one finished stage
func (m *Metrics) RecordStage(ctx context.Context, stage string, outcome StageOutcome, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", outcome.Status),
	)
	if m.StageDuration != nil {
		m.StageDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.StageRows != nil && outcome.Rows > 0 {
		m.StageRows.Add(ctx, int64(outcome.Rows), attrs)
	}
	if m.StageFailures != nil && outcome.Failures > 0 {
		m.StageFailures.Add(ctx, int64(outcome.Failures), attrs)
	}
}

// RecordFetch records one job source page request
func (m *Metrics) RecordFetch(ctx context.Context, country, role string, err error) {
	attrs := metric.WithAttributes(
		attribute.String("country", country),
		attribute.String("role", role),
		attribute.Bool("success", err == nil),
	)
	if m.FetchRequests != nil {
		m.FetchRequests.Add(ctx, 1, attrs)
	}
	if err != nil && m.FetchErrors != nil {
		m.FetchErrors.Add(ctx, 1, attrs)
	}
}

// RecordForecastSeries records n series that ended with outcome (forecasted, skipped, failed)
func (m *Metrics) RecordForecastSeries(ctx context.Context, outcome string, n int) {
	if m.ForecastSeries == nil || n == 0 {
		return
	}
	m.ForecastSeries.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRateLimitHit records a request rejected by a rate limiter
func (m *Metrics) RecordRateLimitHit(ctx context.Context, attributes ...attribute.KeyValue) {
	if m.RateLimitHits != nil {
		m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attributes...))
	}
}

// No-op exporter used when no trace exporter is configured
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}

	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}

	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

func (om *ObservabilityManager) getServiceInstanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return "skillpulse-1"
}

func (om *ObservabilityManager) getMetricsCollectionInterval() time.Duration {
	if om.fullConfig != nil && om.fullConfig.Observability.Metrics.CollectionInterval > 0 {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
