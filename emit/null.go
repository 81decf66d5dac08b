package emit

import "context"

// NullEmitter discards every event. Safe for concurrent use and has zero
// overhead; the default when observability is not configured.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that discards all events.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

// Emit discards event.
func (n *NullEmitter) Emit(event Event) {}

// EmitBatch discards events.
func (n *NullEmitter) EmitBatch(ctx context.Context, events []Event) error { return nil }

// Flush is a no-op.
func (n *NullEmitter) Flush(ctx context.Context) error { return nil }
