package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the pipeline counters.
const MeterName = "chat-cqrs.pipeline"

// Metrics counts commands through the pipeline. A nil *Metrics is valid and records nothing.
type Metrics struct {
	published       metric.Int64Counter
	publishFailures metric.Int64Counter
	consumed        metric.Int64Counter
	retried         metric.Int64Counter
	exhausted       metric.Int64Counter
	swept           metric.Int64Counter
}

// NewMetrics registers the pipeline counters on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(MeterName)
	var (
		m   Metrics
		err error
	)
	if m.published, err = meter.Int64Counter("commands.published",
		metric.WithDescription("Commands written to a primary topic")); err != nil {
		return nil, err
	}
	if m.publishFailures, err = meter.Int64Counter("commands.publish_failures",
		metric.WithDescription("Command writes rejected by the broker")); err != nil {
		return nil, err
	}
	if m.consumed, err = meter.Int64Counter("commands.consumed",
		metric.WithDescription("Commands handled successfully")); err != nil {
		return nil, err
	}
	if m.retried, err = meter.Int64Counter("commands.retried",
		metric.WithDescription("Commands republished to a retry topic")); err != nil {
		return nil, err
	}
	if m.exhausted, err = meter.Int64Counter("commands.exhausted",
		metric.WithDescription("Commands given up after the retry ceiling")); err != nil {
		return nil, err
	}
	if m.swept, err = meter.Int64Counter("sessions.swept",
		metric.WithDescription("Expired sessions deleted by the sweeper")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) Published(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.published.Add(ctx, 1, topicAttr(topic))
}

func (m *Metrics) PublishFailed(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.publishFailures.Add(ctx, 1, topicAttr(topic))
}

func (m *Metrics) Consumed(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.consumed.Add(ctx, 1, topicAttr(topic))
}

func (m *Metrics) Retried(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.retried.Add(ctx, 1, topicAttr(topic))
}

func (m *Metrics) Exhausted(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.exhausted.Add(ctx, 1, topicAttr(topic))
}

// Swept records n deleted sessions.
func (m *Metrics) Swept(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(ctx, n)
}

func topicAttr(topic string) metric.AddOption {
	return metric.WithAttributes(attribute.String("topic", topic))
}
