package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName                = "github.com/Additional-Code/subext"
	registrationDurationName = "subext.registration.duration"
)

// Instruments holds the counters and histograms recorded by the extension.
// A nil *Instruments records nothing.
type Instruments struct {
	invocations      metric.Int64Counter
	registrations    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*Instruments, error) {
	invocations, err := meter.Int64Counter("subext.extension.invocations",
		metric.WithDescription("Extension calls by action and outcome."))
	if err != nil {
		return nil, err
	}
	registrations, err := meter.Int64Counter("subext.registrations",
		metric.WithDescription("Subscription registrations by outcome."))
	if err != nil {
		return nil, err
	}
	dispatchDuration, err := meter.Float64Histogram(registrationDurationName,
		metric.WithDescription("Duration of subscription service calls."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		invocations:      invocations,
		registrations:    registrations,
		dispatchDuration: dispatchDuration,
	}, nil
}

// Invocation counts one extension call.
func (i *Instruments) Invocation(ctx context.Context, action, outcome string) {
	if i == nil {
		return
	}
	i.invocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

// Registration counts one line item registration attempt and its latency.
func (i *Instruments) Registration(ctx context.Context, outcome string, elapsed time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	i.registrations.Add(ctx, 1, attrs)
	if elapsed > 0 {
		i.dispatchDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
