// Package dispatch routes decoded commands to their handler by kind and runs the decode, resolve, execute
// sequence for a single delivery.
package dispatch

import (
	"context"
	"sort"

	"chat-cqrs/internal/command"
)

// Handler executes one kind of command.
type Handler[E command.Envelope] interface {
	Handle(ctx context.Context, cmd E) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[E command.Envelope] func(ctx context.Context, cmd E) error

func (f HandlerFunc[E]) Handle(ctx context.Context, cmd E) error { return f(ctx, cmd) }

// Registry maps command kinds to handlers. It is immutable after construction and safe for concurrent use.
type Registry[E command.Envelope] struct {
	handlers map[command.Kind]Handler[E]
}

// NewRegistry copies handlers into a new registry. Nil handlers are skipped.
func NewRegistry[E command.Envelope](handlers map[command.Kind]Handler[E]) *Registry[E] {
	m := make(map[command.Kind]Handler[E], len(handlers))
	for k, h := range handlers {
		if h != nil {
			m[k] = h
		}
	}
	return &Registry[E]{handlers: m}
}

// Resolve returns the handler for kind, or false when none is registered.
func (r *Registry[E]) Resolve(kind command.Kind) (Handler[E], bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry[E]) Kinds() []command.Kind {
	if r == nil {
		return nil
	}
	out := make([]command.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Missing returns the kinds in want that have no handler, in the order given.
func (r *Registry[E]) Missing(want []command.Kind) []command.Kind {
	var out []command.Kind
	for _, k := range want {
		if _, ok := r.Resolve(k); !ok {
			out = append(out, k)
		}
	}
	return out
}
