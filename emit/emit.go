// Package emit provides event emission and observability for the
// checkpoint, reasoning, and workflow subsystems.
package emit

import "context"

// Event is an observability event raised by checkpoint creation/deletion/
// compaction, hypothesis lifecycle transitions, or workflow task
// execution.
type Event struct {
	// Kind names the event, e.g. "checkpoint.created", "task.failed".
	Kind string

	// SessionID identifies the session the event concerns, empty for
	// workflow/reasoning events with no session scope.
	SessionID string

	// Subject identifies the entity the event is about (a checkpoint id,
	// hypothesis id, task id, ...), as text.
	Subject string

	// Meta carries event-kind-specific structured data.
	Meta map[string]any
}

// Emitter receives observability events from the checkpoint service,
// hypothesis board, and workflow executor. Implementations must not
// block the caller for long and must not panic.
type Emitter interface {
	Emit(event Event)
	EmitBatch(ctx context.Context, events []Event) error
	Flush(ctx context.Context) error
}
