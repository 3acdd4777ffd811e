package telemetry

import (
	"context"
	"log"
	"time"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// The goroutine uses its own context so cancellation of the caller does not abort an in-flight emit.
// A nil emitter is a no-op.
func EmitAsync(emitter EventEmitter, event Event) {
	if emitter == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit %s failed: %v", event.Name, err)
		}
	}()
}
