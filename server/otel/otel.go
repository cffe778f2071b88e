package otel

import (
	"context"
	"fmt"

	otel "go.opentelemetry.io/otel"
	attribute "go.opentelemetry.io/otel/attribute"
	prometheus "go.opentelemetry.io/otel/exporters/prometheus"
	metric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	resource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	zap "go.uber.org/zap"

	config "github.com/incadev/generation-service/server/config"
)

// OpenTelemetry defines the operations for telemetry
type OpenTelemetry interface {
	// RecordRequestCount records an inbound HTTP request
	RecordRequestCount(ctx context.Context, method string)

	// RecordResponseStatus records the status code of a served request
	RecordResponseStatus(ctx context.Context, method, path string, statusCode int)

	// RecordRequestDuration records the total duration of a served request
	RecordRequestDuration(ctx context.Context, method, path string, durationMs float64)

	// RecordGeneration records the outcome of one generation dispatch
	RecordGeneration(ctx context.Context, kind string, model string, success bool)

	// RecordArtifactSaved records an artifact saved into a catalog
	RecordArtifactSaved(ctx context.Context, kind string)

	// RecordArtifactEvicted records an artifact evicted from a catalog
	RecordArtifactEvicted(ctx context.Context, kind string)

	// ShutDown the telemetry system
	ShutDown(ctx context.Context) error
}

type OpenTelemetryImpl struct {
	logger        *zap.Logger
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	// Metrics
	requestCounter           metric.Int64Counter
	responseStatusCounter    metric.Int64Counter
	requestDurationHistogram metric.Float64Histogram
	generationCounter        metric.Int64Counter
	artifactsSavedCounter    metric.Int64Counter
	artifactsEvictedCounter  metric.Int64Counter
}

// NewOpenTelemetry creates a new OpenTelemetry implementation with proper dependency injection
func NewOpenTelemetry(cfg *config.Config, logger *zap.Logger) (OpenTelemetry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	o := &OpenTelemetryImpl{
		logger: logger,
	}

	if err := o.initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize opentelemetry: %w", err)
	}

	return o, nil
}

func (o *OpenTelemetryImpl) initialize(cfg *config.Config) error {
	o.logger.Info("initializing opentelemetry",
		zap.String("service_name", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion))

	exporter, err := prometheus.New()
	if err != nil {
		o.logger.Error("failed to create prometheus exporter", zap.Error(err))
		return err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	histogramBoundaries := []float64{1, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

	latencyView := sdkmetric.NewView(
		sdkmetric.Instrument{
			Kind: sdkmetric.InstrumentKindHistogram,
		},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: histogramBoundaries,
			},
		},
	)

	o.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(latencyView),
	)
	otel.SetMeterProvider(o.meterProvider)

	o.meter = o.meterProvider.Meter(cfg.ServiceName)

	if err := o.initializeMetrics(); err != nil {
		o.logger.Error("failed to initialize metrics", zap.Error(err))
		return err
	}

	o.logger.Info("opentelemetry initialized successfully")
	return nil
}

// initializeMetrics initializes all the OpenTelemetry metrics
func (o *OpenTelemetryImpl) initializeMetrics() error {
	var err error

	o.requestCounter, err = o.meter.Int64Counter(
		"generation.requests.total",
		metric.WithDescription("Total number of generation API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request counter: %w", err)
	}

	o.responseStatusCounter, err = o.meter.Int64Counter(
		"generation.responses.total",
		metric.WithDescription("Total number of generation API responses by status code"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create response status counter: %w", err)
	}

	o.requestDurationHistogram, err = o.meter.Float64Histogram(
		"generation.request.duration",
		metric.WithDescription("Duration of generation API requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	o.generationCounter, err = o.meter.Int64Counter(
		"generation.dispatches.total",
		metric.WithDescription("Total number of upstream generation dispatches by kind and outcome"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create generation counter: %w", err)
	}

	o.artifactsSavedCounter, err = o.meter.Int64Counter(
		"generation.artifacts.saved.total",
		metric.WithDescription("Total number of artifacts saved into catalogs"),
		metric.WithUnit("{artifact}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create artifacts saved counter: %w", err)
	}

	o.artifactsEvictedCounter, err = o.meter.Int64Counter(
		"generation.artifacts.evicted.total",
		metric.WithDescription("Total number of artifacts evicted from catalogs"),
		metric.WithUnit("{artifact}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create artifacts evicted counter: %w", err)
	}

	return nil
}

func (o *OpenTelemetryImpl) RecordRequestCount(ctx context.Context, method string) {
	o.requestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request_method", method),
	))
}

func (o *OpenTelemetryImpl) RecordResponseStatus(ctx context.Context, method, path string, statusCode int) {
	o.responseStatusCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request_method", method),
		attribute.String("request_path", path),
		attribute.Int("status_code", statusCode),
	))
}

func (o *OpenTelemetryImpl) RecordRequestDuration(ctx context.Context, method, path string, durationMs float64) {
	o.requestDurationHistogram.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("request_method", method),
		attribute.String("request_path", path),
	))
}

func (o *OpenTelemetryImpl) RecordGeneration(ctx context.Context, kind string, model string, success bool) {
	attributes := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	}
	if model != "" {
		attributes = append(attributes, attribute.String("model", model))
	}

	o.generationCounter.Add(ctx, 1, metric.WithAttributes(attributes...))
}

func (o *OpenTelemetryImpl) RecordArtifactSaved(ctx context.Context, kind string) {
	o.artifactsSavedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

func (o *OpenTelemetryImpl) RecordArtifactEvicted(ctx context.Context, kind string) {
	o.artifactsEvictedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

func (o *OpenTelemetryImpl) ShutDown(ctx context.Context) error {
	return o.meterProvider.Shutdown(ctx)
}
