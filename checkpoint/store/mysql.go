package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/oldnordic/forge/checkpoint"
)

// MySQLStore is a MySQL/MariaDB-backed Store, for production sessions
// that need persistence across restarts and multiple writers.
//
// DSN format: [username[:password]@][protocol[(address)]]/dbname[?params]
type MySQLStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewMySQLStore opens a connection pool against dsn and ensures the
// schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id CHAR(36) PRIMARY KEY,
			session_id CHAR(36) NOT NULL,
			sequence_number BIGINT UNSIGNED NOT NULL,
			record JSON NOT NULL,
			UNIQUE KEY uniq_session_sequence (session_id, sequence_number),
			KEY idx_session (session_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS checkpoint_tags (
			checkpoint_id CHAR(36) NOT NULL,
			tag VARCHAR(255) NOT NULL,
			KEY idx_tag (tag)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS sequence_counter (
			id TINYINT PRIMARY KEY,
			value BIGINT UNSIGNED NOT NULL
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("checkpoint: create schema: %w", err)
		}
	}
	return nil
}

// Store persists c, replacing any existing row with the same id.
func (s *MySQLStore) Store(ctx context.Context, c checkpoint.Checkpoint) error {
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
		 ON DUPLICATE KEY UPDATE session_id=VALUES(session_id), sequence_number=VALUES(sequence_number), record=VALUES(record)`,
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
		 ON DUPLICATE KEY UPDATE value = GREATEST(value, VALUES(value))`,
		c.SequenceNumber); err != nil {
		return fmt.Errorf("checkpoint: bump sequence counter: %w", err)
	}

	return tx.Commit()
}

func (s *MySQLStore) scanOne(ctx context.Context, query string, args ...any) (checkpoint.Checkpoint, error) {
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
func (s *MySQLStore) Get(ctx context.Context, id checkpoint.ID) (checkpoint.Checkpoint, error) {
	return s.scanOne(ctx, `SELECT record FROM checkpoints WHERE id = ?`, id.String())
}

// GetLatestForSession returns the highest-sequence checkpoint for sessionID.
func (s *MySQLStore) GetLatestForSession(ctx context.Context, sessionID checkpoint.SessionID) (checkpoint.Checkpoint, error) {
	return s.scanOne(ctx,
		`SELECT record FROM checkpoints WHERE session_id = ? ORDER BY sequence_number DESC LIMIT 1`,
		sessionID.String())
}

func (s *MySQLStore) scanMany(ctx context.Context, query string, args ...any) ([]checkpoint.Checkpoint, error) {
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
func (s *MySQLStore) ListBySession(ctx context.Context, sessionID checkpoint.SessionID) ([]checkpoint.Checkpoint, error) {
	return s.scanMany(ctx,
		`SELECT record FROM checkpoints WHERE session_id = ? ORDER BY sequence_number ASC`,
		sessionID.String())
}

// ListByTag returns every checkpoint, across all sessions, carrying tag.
func (s *MySQLStore) ListByTag(ctx context.Context, tag string) ([]checkpoint.Checkpoint, error) {
	return s.scanMany(ctx,
		`SELECT c.record FROM checkpoints c JOIN checkpoint_tags t ON t.checkpoint_id = c.id
		 WHERE t.tag = ? ORDER BY c.sequence_number ASC`,
		tag)
}

// Delete removes a checkpoint and its tag rows.
func (s *MySQLStore) Delete(ctx context.Context, id checkpoint.ID) error {
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
func (s *MySQLStore) NextSequence(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO sequence_counter (id, value) VALUES (1, 0)`); err != nil {
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
func (s *MySQLStore) GetMaxSequence(ctx context.Context) (uint64, error) {
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
