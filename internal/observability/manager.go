package observability

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Module exposes the observability manager and the extension instruments it
// owns to Fx.
var Module = fx.Provide(NewManager, (*Manager).Instruments)

// Manager owns the trace and meter providers of the extension and the
// instruments recorded on them.
type Manager struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
	instruments    *Instruments
}

// NewManager builds the providers enabled in cfg and registers them globally
// when the application starts.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mgr := &Manager{}
	if cfg.Observability.EnableTracing {
		if mgr.tracerProvider, err = newTracerProvider(ctx, cfg.Observability, res, logger); err != nil {
			return nil, err
		}
	}
	if cfg.Observability.EnableMetrics {
		if mgr.meterProvider, mgr.metricsHandler, err = newMeterProvider(cfg.Observability, res, logger); err != nil {
			return nil, err
		}
	}

	var provider metric.MeterProvider = noop.NewMeterProvider()
	if mgr.meterProvider != nil {
		provider = mgr.meterProvider
	}
	if mgr.instruments, err = newInstruments(provider.Meter(meterName)); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if mgr.tracerProvider != nil {
				otel.SetTracerProvider(mgr.tracerProvider)
				otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
					propagation.TraceContext{},
					propagation.Baggage{},
				))
			}
			if mgr.meterProvider != nil {
				otel.SetMeterProvider(mgr.meterProvider)
			}
			logger.Info("observability ready",
				zap.Bool("tracing", mgr.TracingEnabled()),
				zap.Bool("metrics", mgr.MetricsEnabled()),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			var err error
			if mgr.tracerProvider != nil {
				err = errors.Join(err, mgr.tracerProvider.Shutdown(ctx))
			}
			if mgr.meterProvider != nil {
				err = errors.Join(err, mgr.meterProvider.Shutdown(ctx))
			}
			return err
		},
	})

	return mgr, nil
}

// TracingEnabled reports whether spans are exported.
func (m *Manager) TracingEnabled() bool {
	return m != nil && m.tracerProvider != nil
}

// MetricsEnabled reports whether instruments record into an exporter.
func (m *Manager) MetricsEnabled() bool {
	return m != nil && m.meterProvider != nil
}

// MetricsHandler serves the Prometheus scrape endpoint. It is nil unless the
// prometheus exporter is active.
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil {
		return nil
	}
	return m.metricsHandler
}

// Instruments returns the extension counters and histograms.
func (m *Manager) Instruments() *Instruments {
	if m == nil {
		return nil
	}
	return m.instruments
}

// newResource describes this process: the service identity plus the
// subscription integration it is configured for.
func newResource(ctx context.Context, cfg config.Config) (*sdkresource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.Observability.ServiceName),
		semconv.ServiceVersion(serviceVersion()),
		semconv.DeploymentEnvironment(cfg.Observability.Environment),
		attribute.String("subext.subscription.type_id", cfg.Extension.SubscriptionTypeID),
	}
	if u, err := url.Parse(cfg.Extension.SubscriptionServiceURL); err == nil && u.Host != "" {
		attrs = append(attrs, attribute.String("subext.subscription.host", u.Host))
	}

	return sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(attrs...),
	)
}

func serviceVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
