package emit

import (
	"context"
	"sync"
)

// BufferedEmitter accumulates events in memory until Flush is called,
// which drains the buffer into an underlying Emitter. Useful in tests
// that want to assert on exactly which events were raised.
type BufferedEmitter struct {
	mu       sync.Mutex
	buffered []Event
	next     Emitter
}

// NewBufferedEmitter wraps next, buffering events until Flush.
func NewBufferedEmitter(next Emitter) *BufferedEmitter {
	return &BufferedEmitter{next: next}
}

// Emit appends event to the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffered = append(b.buffered, event)
}

// EmitBatch appends events to the buffer.
func (b *BufferedEmitter) EmitBatch(ctx context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffered = append(b.buffered, events...)
	return nil
}

// Events returns a copy of the currently buffered events without
// draining them.
func (b *BufferedEmitter) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.buffered))
	copy(out, b.buffered)
	return out
}

// Flush drains the buffer into the wrapped Emitter, in order, then
// flushes it too.
func (b *BufferedEmitter) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.buffered
	b.buffered = nil
	b.mu.Unlock()

	if err := b.next.EmitBatch(ctx, pending); err != nil {
		return err
	}
	return b.next.Flush(ctx)
}
