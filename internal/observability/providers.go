package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
)

const (
	exporterDialTimeout  = 10 * time.Second
	stdoutMetricInterval = 30 * time.Second
)

// registrationBuckets cover calls from a fast local service up to the
// extension deadline, in seconds.
var registrationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8}

func newTracerProvider(ctx context.Context, cfg config.Observability, res *sdkresource.Resource, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.TraceExporter {
	case "", "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		if cfg.TraceEndpoint == "" {
			return nil, fmt.Errorf("OBS_OTLP_ENDPOINT must be set for otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.TraceEndpoint)}
		if cfg.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		dialCtx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
		defer cancel()
		exporter, err = otlptracegrpc.New(dialCtx, opts...)
	default:
		logger.Warn("unsupported trace exporter; tracing disabled", zap.String("exporter", cfg.TraceExporter))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", cfg.TraceExporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceSampleRate))),
	), nil
}

// newMeterProvider returns the provider and, for the prometheus exporter, a
// scrape handler over a registry private to this provider.
func newMeterProvider(cfg config.Observability, res *sdkresource.Resource, logger *zap.Logger) (*sdkmetric.MeterProvider, http.Handler, error) {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: registrationDurationName},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: registrationBuckets}},
		)),
	}

	switch cfg.MetricsExporter {
	case "prometheus":
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := promexporter.New(
			promexporter.WithRegisterer(registry),
			promexporter.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		return sdkmetric.NewMeterProvider(append(opts, sdkmetric.WithReader(exporter))...), handler, nil
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint(), stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(stdoutMetricInterval))
		return sdkmetric.NewMeterProvider(append(opts, sdkmetric.WithReader(reader))...), nil, nil
	default:
		logger.Warn("unsupported metrics exporter; metrics disabled", zap.String("exporter", cfg.MetricsExporter))
		return nil, nil, nil
	}
}
