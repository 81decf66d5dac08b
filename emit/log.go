package emit

import (
	"context"
	"log/slog"
)

// LogEmitter implements Emitter via structured logging (log/slog),
// matching the forge codebase's default observability path when no
// tracing backend is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps logger (or slog.Default() if nil) as an Emitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit logs event at Info level with its kind as the message and its
// session, subject, and Meta entries as structured fields.
func (l *LogEmitter) Emit(event Event) {
	args := []any{"session_id", event.SessionID, "subject", event.Subject}
	for k, v := range event.Meta {
		args = append(args, k, v)
	}
	l.logger.Info(event.Kind, args...)
}

// EmitBatch logs each event in order.
func (l *LogEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

// Flush is a no-op; slog writes synchronously.
func (l *LogEmitter) Flush(ctx context.Context) error { return nil }
