// Package telemetry holds the pipeline metrics and the event emitter used for operator-facing records
// (dead letters, sweep results) that should outlive the process log.
package telemetry

import (
	"context"
	"time"
)

// Event is a structured record emitted as an OTel log record.
type Event struct {
	Name      string
	Timestamp time.Time
	Body      []byte
	Attrs     map[string]string
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event Event) error
}
