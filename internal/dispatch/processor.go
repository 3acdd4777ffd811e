package dispatch

import (
	"context"
	"log"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/telemetry"
)

// Escalator takes over a delivery that failed. Implemented by retry.Escalator.
type Escalator interface {
	Escalate(ctx context.Context, d command.Delivery, cause error) error
}

// Processor handles deliveries of one topic family.
type Processor[E command.Envelope] struct {
	name      string
	registry  *Registry[E]
	escalator Escalator
	metrics   *telemetry.Metrics
}

// NewProcessor returns a processor that logs under name. metrics may be nil.
func NewProcessor[E command.Envelope](name string, registry *Registry[E], escalator Escalator, metrics *telemetry.Metrics) *Processor[E] {
	return &Processor[E]{name: name, registry: registry, escalator: escalator, metrics: metrics}
}

// Process decodes d, resolves its handler and executes it. Any failure in those steps goes to the escalator,
// whose result is returned: nil after a successful escalation, a terminal error after give-up.
func (p *Processor[E]) Process(ctx context.Context, d command.Delivery) error {
	if err := p.handle(ctx, d); err != nil {
		log.Printf("%s: %v (attempt %d)", p.name, err, d.Attempt)
		return p.escalator.Escalate(ctx, d, err)
	}
	p.metrics.Consumed(ctx, d.Topic)
	return nil
}

func (p *Processor[E]) handle(ctx context.Context, d command.Delivery) error {
	cmd, err := command.Decode[E](d.Topic, d.Value)
	if err != nil {
		return err
	}
	kind := cmd.CommandKind()
	h, ok := p.registry.Resolve(kind)
	if !ok {
		return &command.UnknownCommandError{Topic: d.Topic, Kind: kind}
	}
	if err := h.Handle(ctx, cmd); err != nil {
		return &command.ProcessingError{Kind: kind, Err: err}
	}
	return nil
}
