package hypothesis

import (
	"context"
	"sync"

	"github.com/oldnordic/forge/prob"
	"github.com/oldnordic/forge/reasoning"
)

// MemStorage is an in-memory Storage implementation, the required backing
// for tests and the first-class non-persistent board mode. It is safe for
// concurrent use: a single mutex serializes all writes, matching the
// spec's "single serializing mutex for writes; reads allowed under a
// shared lock" policy.
type MemStorage struct {
	mu       sync.RWMutex
	byID     map[ID]Hypothesis
	order    []ID // insertion order, for deterministic List
	evidence map[ID][]Evidence
}

// NewMemStorage constructs an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{
		byID:     make(map[ID]Hypothesis),
		evidence: make(map[ID][]Evidence),
	}
}

func (m *MemStorage) Create(_ context.Context, h Hypothesis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[h.ID]; !exists {
		m.order = append(m.order, h.ID)
	}
	m.byID[h.ID] = h
	return nil
}

func (m *MemStorage) Get(_ context.Context, id ID) (Hypothesis, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.byID[id]
	return h, ok, nil
}

func (m *MemStorage) List(_ context.Context) ([]Hypothesis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Hypothesis, 0, len(m.order))
	for _, id := range m.order {
		if h, ok := m.byID[id]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MemStorage) Delete(_ context.Context, id ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return false, nil
	}
	delete(m.byID, id)
	delete(m.evidence, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *MemStorage) UpdatePosterior(_ context.Context, id ID, posterior prob.Probability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byID[id]
	if !ok {
		return reasoning.New(reasoning.KindNotFound, "hypothesis not found: "+id.String())
	}
	h.Posterior = posterior
	h.UpdatedAt = now()
	m.byID[id] = h
	return nil
}

func (m *MemStorage) SetStatus(_ context.Context, id ID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byID[id]
	if !ok {
		return reasoning.New(reasoning.KindNotFound, "hypothesis not found: "+id.String())
	}
	h.Status = status
	h.UpdatedAt = now()
	m.byID[id] = h
	return nil
}

func (m *MemStorage) AttachEvidence(_ context.Context, ev Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[ev.HypothesisID]; !ok {
		return reasoning.New(reasoning.KindNotFound, "hypothesis not found: "+ev.HypothesisID.String())
	}
	m.evidence[ev.HypothesisID] = append(m.evidence[ev.HypothesisID], ev)
	return nil
}

func (m *MemStorage) EvidenceFor(_ context.Context, id ID) ([]Evidence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.evidence[id]
	out := make([]Evidence, len(src))
	copy(out, src)
	return out, nil
}
