package store

import (
	"context"
	"sync"

	"github.com/oldnordic/forge/checkpoint"
)

// MemStore is an in-memory Store. It stores checkpoints in maps guarded
// by a single mutex, designed for testing, single-process sessions, and
// short-lived debugging runs. Data does not survive process restart.
type MemStore struct {
	mu          sync.RWMutex
	byID        map[checkpoint.ID]checkpoint.Checkpoint
	order       []checkpoint.ID // insertion order, for deterministic listing
	maxSequence uint64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[checkpoint.ID]checkpoint.Checkpoint)}
}

// Store persists c, overwriting any existing record with the same id.
func (m *MemStore) Store(_ context.Context, c checkpoint.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.byID[c.ID] = c
	if c.SequenceNumber > m.maxSequence {
		m.maxSequence = c.SequenceNumber
	}
	return nil
}

// Get retrieves a checkpoint by id.
func (m *MemStore) Get(_ context.Context, id checkpoint.ID) (checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return checkpoint.Checkpoint{}, ErrNotFound
	}
	return c, nil
}

// GetLatestForSession returns the checkpoint with the highest sequence
// number for sessionID.
func (m *MemStore) GetLatestForSession(_ context.Context, sessionID checkpoint.SessionID) (checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest checkpoint.Checkpoint
	found := false
	for _, id := range m.order {
		c := m.byID[id]
		if c.SessionID != sessionID {
			continue
		}
		if !found || c.SequenceNumber > latest.SequenceNumber {
			latest = c
			found = true
		}
	}
	if !found {
		return checkpoint.Checkpoint{}, ErrNotFound
	}
	return latest, nil
}

// ListBySession returns every checkpoint belonging to sessionID, in
// insertion order.
func (m *MemStore) ListBySession(_ context.Context, sessionID checkpoint.SessionID) ([]checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []checkpoint.Checkpoint
	for _, id := range m.order {
		c := m.byID[id]
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListByTag returns every checkpoint, across all sessions, carrying tag.
func (m *MemStore) ListByTag(_ context.Context, tag string) ([]checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []checkpoint.Checkpoint
	for _, id := range m.order {
		c := m.byID[id]
		for _, t := range c.Tags {
			if t == tag {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

// Delete removes a checkpoint by id. It is a no-op if the id is absent.
func (m *MemStore) Delete(_ context.Context, id checkpoint.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return nil
	}
	delete(m.byID, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// NextSequence returns the next globally-monotonic sequence number.
func (m *MemStore) NextSequence(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSequence++
	return m.maxSequence, nil
}

// GetMaxSequence returns the highest sequence number stored so far, or 0
// if the store is empty.
func (m *MemStore) GetMaxSequence(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxSequence, nil
}
