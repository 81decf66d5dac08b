// Package store provides persistence implementations for checkpoints.
package store

import (
	"context"
	"errors"

	"github.com/oldnordic/forge/checkpoint"
)

// ErrNotFound is returned when a requested checkpoint id does not exist.
var ErrNotFound = errors.New("checkpoint: not found")

// Store persists checkpoints and supports the queries the manager and
// service layers need: lookup by id, latest-for-session, listing by
// session or tag, deletion, and the global sequence counter that backs
// checkpoint.New's SequenceNumber assignment.
//
// Implementations must be atomic-on-success: a failed Store call must
// leave prior state untouched.
type Store interface {
	Store(ctx context.Context, c checkpoint.Checkpoint) error
	Get(ctx context.Context, id checkpoint.ID) (checkpoint.Checkpoint, error)
	GetLatestForSession(ctx context.Context, sessionID checkpoint.SessionID) (checkpoint.Checkpoint, error)
	ListBySession(ctx context.Context, sessionID checkpoint.SessionID) ([]checkpoint.Checkpoint, error)
	ListByTag(ctx context.Context, tag string) ([]checkpoint.Checkpoint, error)
	Delete(ctx context.Context, id checkpoint.ID) error
	NextSequence(ctx context.Context) (uint64, error)
	GetMaxSequence(ctx context.Context) (uint64, error)
}
