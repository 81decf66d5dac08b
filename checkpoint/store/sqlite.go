package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oldnordic/forge/checkpoint"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store, keyed by (session_id,
// sequence_number) with a secondary tag index, matching the forge
// codebase's original storage layout. Designed for a single database
// file per codebase under a .forge/ directory.
//
// Schema:
//   - checkpoints: one row per checkpoint, full record as JSON plus the
//     indexed columns needed for the query shapes Store requires.
//   - checkpoint_tags: (checkpoint_id, tag) pairs for ListByTag.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path
// and ensures its schema exists. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("checkpoint: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sequence_number INTEGER NOT NULL,
			record TEXT NOT NULL,
			UNIQUE(session_id, sequence_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id)`,
		`CREATE TABLE IF NOT EXISTS checkpoint_tags (
			checkpoint_id TEXT NOT NULL,
			tag TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoint_tags_tag ON checkpoint_tags(tag)`,
		`CREATE TABLE IF NOT EXISTS sequence_counter (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			value INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("checkpoint: create schema: %w", err)
		}
	}
	return nil
}

// record is the JSON shape stored in the `record` column; it mirrors
// checkpoint.Checkpoint field-for-field so (de)serialization is lossless.
type record struct {
	ID             string                        `json:"id"`
	SequenceNumber uint64                        `json:"sequence_number"`
	SessionID      string                        `json:"session_id"`
	Timestamp      time.Time                     `json:"timestamp"`
	Message        string                        `json:"message"`
	Tags           []string                      `json:"tags"`
	TriggerKind    int                           `json:"trigger_kind"`
	TriggerSubkind string                        `json:"trigger_subkind"`
	State          checkpoint.DebugStateSnapshot `json:"state"`
	Checksum       string                        `json:"checksum"`
	Annotations    []checkpoint.Annotation       `json:"annotations,omitempty"`
}

func toRecord(c checkpoint.Checkpoint) record {
	return record{
		ID:             c.ID.String(),
		SequenceNumber: c.SequenceNumber,
		SessionID:      c.SessionID.String(),
		Timestamp:      c.Timestamp,
		Message:        c.Message,
		Tags:           c.Tags,
		TriggerKind:    int(c.Trigger.Kind),
		TriggerSubkind: c.Trigger.Subkind,
		State:          c.State,
		Checksum:       c.Checksum,
		Annotations:    c.Annotations,
	}
}

func (r record) toCheckpoint() (checkpoint.Checkpoint, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("checkpoint: malformed id %q: %w", r.ID, err)
	}
	sessionID, err := uuid.Parse(r.SessionID)
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("checkpoint: malformed session id %q: %w", r.SessionID, err)
	}
	return checkpoint.Checkpoint{
		ID:             checkpoint.ID(id),
		SequenceNumber: r.SequenceNumber,
		SessionID:      checkpoint.SessionID(sessionID),
		Timestamp:      r.Timestamp,
		Message:        r.Message,
		Tags:           r.Tags,
		Trigger:        checkpoint.Trigger{Kind: checkpoint.TriggerKind(r.TriggerKind), Subkind: r.TriggerSubkind},
		State:          r.State,
		Checksum:       r.Checksum,
		Annotations:    r.Annotations,
	}, nil
}

// Store persists c, replacing any existing row with the same id.
func (s *SQLiteStore) Store(ctx context.Context, c checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(toRecord(c))
	if err != nil {
		return fmt.Errorf("checkpoint: marshal record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (id, session_id, sequence_number, record) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET session_id=excluded.session_id, sequence_number=excluded.sequence_number, record=excluded.record`,
		c.ID.String(), c.SessionID.String(), c.SequenceNumber, string(data))
	if err != nil {
		return fmt.Errorf("checkpoint: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_tags WHERE checkpoint_id = ?`, c.ID.String()); err != nil {
		return fmt.Errorf("checkpoint: clear tags: %w", err)
	}
	for _, tag := range c.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO checkpoint_tags (checkpoint_id, tag) VALUES (?, ?)`, c.ID.String(), tag); err != nil {
			return fmt.Errorf("checkpoint: insert tag: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sequence_counter (id, value) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET value = MAX(value, excluded.value)`,
		c.SequenceNumber); err != nil {
		return fmt.Errorf("checkpoint: bump sequence counter: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) scanOne(ctx context.Context, query string, args ...any) (checkpoint.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return checkpoint.Checkpoint{}, ErrNotFound
		}
		return checkpoint.Checkpoint{}, fmt.Errorf("checkpoint: scan: %w", err)
	}
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("checkpoint: unmarshal record: %w", err)
	}
	return r.toCheckpoint()
}

// Get retrieves a checkpoint by id.
func (s *SQLiteStore) Get(ctx context.Context, id checkpoint.ID) (checkpoint.Checkpoint, error) {
	return s.scanOne(ctx, `SELECT record FROM checkpoints WHERE id = ?`, id.String())
}

// GetLatestForSession returns the highest-sequence checkpoint for sessionID.
func (s *SQLiteStore) GetLatestForSession(ctx context.Context, sessionID checkpoint.SessionID) (checkpoint.Checkpoint, error) {
	return s.scanOne(ctx,
		`SELECT record FROM checkpoints WHERE session_id = ? ORDER BY sequence_number DESC LIMIT 1`,
		sessionID.String())
}

func (s *SQLiteStore) scanMany(ctx context.Context, query string, args ...any) ([]checkpoint.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: query: %w", err)
	}
	defer rows.Close()

	var out []checkpoint.Checkpoint
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("checkpoint: scan: %w", err)
		}
		var r record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("checkpoint: unmarshal record: %w", err)
		}
		c, err := r.toCheckpoint()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListBySession returns every checkpoint for sessionID in sequence order.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID checkpoint.SessionID) ([]checkpoint.Checkpoint, error) {
	return s.scanMany(ctx,
		`SELECT record FROM checkpoints WHERE session_id = ? ORDER BY sequence_number ASC`,
		sessionID.String())
}

// ListByTag returns every checkpoint, across all sessions, carrying tag.
func (s *SQLiteStore) ListByTag(ctx context.Context, tag string) ([]checkpoint.Checkpoint, error) {
	return s.scanMany(ctx,
		`SELECT c.record FROM checkpoints c JOIN checkpoint_tags t ON t.checkpoint_id = c.id
		 WHERE t.tag = ? ORDER BY c.sequence_number ASC`,
		tag)
}

// Delete removes a checkpoint and its tag rows.
func (s *SQLiteStore) Delete(ctx context.Context, id checkpoint.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_tags WHERE checkpoint_id = ?`, id.String()); err != nil {
		return fmt.Errorf("checkpoint: delete tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return tx.Commit()
}

// NextSequence atomically increments and returns the global counter.
func (s *SQLiteStore) NextSequence(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sequence_counter (id, value) VALUES (1, 0) ON CONFLICT(id) DO NOTHING`); err != nil {
		return 0, fmt.Errorf("checkpoint: seed sequence counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sequence_counter SET value = value + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("checkpoint: increment sequence counter: %w", err)
	}
	var next uint64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM sequence_counter WHERE id = 1`).Scan(&next); err != nil {
		return 0, fmt.Errorf("checkpoint: read sequence counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// GetMaxSequence returns the highest sequence number stored, or 0 if empty.
func (s *SQLiteStore) GetMaxSequence(ctx context.Context) (uint64, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence_number) FROM checkpoints`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: max sequence: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return uint64(max.Int64), nil
}
