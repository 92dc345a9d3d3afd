package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/Dev-Manje/helpdesk"

// Metrics holds the service's OpenTelemetry instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	errors          metric.Int64Counter

	transitions  metric.Int64Counter
	assignments  metric.Int64Counter
	escalations  metric.Int64Counter
	slaSignals   metric.Int64Counter
	sweeps       metric.Int64Counter
	sweepLatency metric.Float64Histogram
	lockWaits    metric.Int64Counter
}

// NewMetrics creates instruments on meter. A nil meter yields no-op
// instruments.
func NewMetrics(meter metric.Meter) *Metrics {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}
	m := &Metrics{}
	m.requests, _ = meter.Int64Counter("helpdesk.http.requests",
		metric.WithDescription("HTTP requests served"))
	m.requestDuration, _ = meter.Float64Histogram("helpdesk.http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))
	m.errors, _ = meter.Int64Counter("helpdesk.http.errors",
		metric.WithDescription("HTTP requests answered with an error code"))
	m.transitions, _ = meter.Int64Counter("helpdesk.ticket.transitions",
		metric.WithDescription("Accepted ticket lifecycle transitions"))
	m.assignments, _ = meter.Int64Counter("helpdesk.assignment.attempts",
		metric.WithDescription("Assignment attempts by method and outcome"))
	m.escalations, _ = meter.Int64Counter("helpdesk.escalations",
		metric.WithDescription("Escalations by reason"))
	m.slaSignals, _ = meter.Int64Counter("helpdesk.sla.signals",
		metric.WithDescription("SLA warnings and breaches recorded"))
	m.sweeps, _ = meter.Int64Counter("helpdesk.sla.sweeps",
		metric.WithDescription("Completed SLA sweep passes"))
	m.sweepLatency, _ = meter.Float64Histogram("helpdesk.sla.sweep.duration",
		metric.WithDescription("SLA sweep pass duration"),
		metric.WithUnit("ms"))
	m.lockWaits, _ = meter.Int64Counter("helpdesk.ticket.lock_timeouts",
		metric.WithDescription("Operations that gave up waiting for a ticket lock"))
	return m
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(ctx context.Context, route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordError counts an error response by domain code.
func (m *Metrics) RecordError(ctx context.Context, route, method, code string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.String("error.code", code),
	))
}

func (m *Metrics) Transition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *Metrics) Assignment(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	m.assignments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Escalation(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.escalations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) SLASignal(ctx context.Context, kind string, level int) {
	if m == nil {
		return
	}
	m.slaSignals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Int("urgency_level", level),
	))
}

func (m *Metrics) Sweep(ctx context.Context, duration time.Duration, failures int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("had_failures", failures > 0))
	m.sweeps.Add(ctx, 1, attrs)
	m.sweepLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *Metrics) LockTimeout(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.lockWaits.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
