package otel

import (
	"context"
	"sort"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"chat-cqrs/internal/telemetry"
)

// LoggerName is the instrumentation scope of emitted event records.
const LoggerName = "chat-cqrs.events"

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(LoggerName)}
}

// recordLogger is the subset of otellog.Logger the emitter needs.
type recordLogger interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitterWithLogger wraps an arbitrary record logger; used by tests to capture records.
func NewEventEmitterWithLogger(logger recordLogger) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, telemetry.Event) error { return nil }

type otelEmitter struct {
	logger recordLogger
}

// Emit converts the event to an OTel log record. The event name becomes the event_name attribute;
// other attributes are added in key order.
func (e *otelEmitter) Emit(ctx context.Context, event telemetry.Event) error {
	rec := otellog.Record{}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityWarn)
	if len(event.Body) > 0 {
		rec.SetBody(otellog.StringValue(string(event.Body)))
	}
	if event.Name != "" {
		rec.AddAttributes(otellog.String("event_name", event.Name))
	}
	keys := make([]string, 0, len(event.Attrs))
	for k := range event.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := event.Attrs[k]; v != "" {
			rec.AddAttributes(otellog.String(k, v))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
