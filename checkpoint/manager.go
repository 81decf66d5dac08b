package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oldnordic/forge/checkpoint/store"
	"github.com/oldnordic/forge/reasoning"
)

// CompactionPolicy selects which checkpoints a compaction pass retains.
// KeepRecent uses keepRecent, PreserveTagged uses preserveTags, and
// Hybrid uses both; built via the KeepRecent/PreserveTagged/Hybrid
// constructors below.
type CompactionPolicy struct {
	kind         compactionKind
	keepRecent   int
	preserveTags map[string]struct{}
}

type compactionKind int

const (
	compactionKeepRecent compactionKind = iota
	compactionPreserveTagged
	compactionHybrid
)

// KeepRecent retains the n highest sequence numbers for a session.
func KeepRecent(n int) CompactionPolicy {
	return CompactionPolicy{kind: compactionKeepRecent, keepRecent: n}
}

// PreserveTagged retains every checkpoint whose tag set intersects tags.
func PreserveTagged(tags []string) CompactionPolicy {
	return CompactionPolicy{kind: compactionPreserveTagged, preserveTags: tagSet(tags)}
}

// Hybrid retains the union of KeepRecent(keepRecent) and
// PreserveTagged(preserveTags).
func Hybrid(keepRecent int, preserveTags []string) CompactionPolicy {
	return CompactionPolicy{kind: compactionHybrid, keepRecent: keepRecent, preserveTags: tagSet(preserveTags)}
}

func tagSet(tags []string) map[string]struct{} {
	s := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// CompactionReport summarizes the result of a compaction pass.
type CompactionReport struct {
	SessionID SessionID
	Retained  int
	Deleted   int
}

// Manager is a thread-safe, per-process facade over a store.Store: it
// owns checkpoint creation (sequence assignment + checksumming),
// compaction, restore, and bulk validation. Manager does not own
// sessions or pub/sub — that belongs to Service, which wraps one or
// more Managers.
type Manager struct {
	mu    sync.Mutex
	store store.Store
}

// NewManager wraps backing with checkpoint-level operations.
func NewManager(backing store.Store) *Manager {
	return &Manager{store: backing}
}

// Create captures a new checkpoint: assigns the next global sequence
// number, computes its checksum, and persists it.
func (m *Manager) Create(ctx context.Context, sessionID SessionID, message string, tags []string, trigger Trigger, state DebugStateSnapshot) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, err := m.store.NextSequence(ctx)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: assign sequence: %w", err)
	}
	c, err := New(sessionID, seq, message, tags, trigger, state)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: build: %w", err)
	}
	if err := m.store.Store(ctx, c); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: persist: %w", err)
	}
	return c, nil
}

// Get fetches a checkpoint by id.
func (m *Manager) Get(ctx context.Context, id ID) (Checkpoint, error) {
	return m.store.Get(ctx, id)
}

// Restore produces the DebugStateSnapshot of a previously stored
// checkpoint. Fails InvalidState if the checkpoint's working directory
// was never captured.
func (m *Manager) Restore(ctx context.Context, id ID) (DebugStateSnapshot, error) {
	c, err := m.store.Get(ctx, id)
	if err != nil {
		return DebugStateSnapshot{}, err
	}
	if c.State.WorkingDir == "" {
		return DebugStateSnapshot{}, reasoning.New(reasoning.KindInvalidState, "checkpoint has no captured working directory")
	}
	return c.State, nil
}

// ValidateAll recomputes the checksum of every checkpoint stored for
// sessionID and reports a ValidationSummary.
func (m *Manager) ValidateAll(ctx context.Context, sessionID SessionID) (ValidationSummary, error) {
	checkpoints, err := m.store.ListBySession(ctx, sessionID)
	if err != nil {
		return ValidationSummary{}, err
	}
	summary := ValidationSummary{Total: len(checkpoints), CheckedAt: time.Now().UTC()}
	for _, c := range checkpoints {
		ok, err := Validate(c)
		if err != nil {
			return ValidationSummary{}, err
		}
		if ok {
			summary.Valid++
		} else {
			summary.Invalid++
		}
	}
	return summary, nil
}

// Compact applies policy to sessionID's checkpoints, deleting every
// checkpoint the policy does not retain. Sequence numbers of retained
// records are never altered.
func (m *Manager) Compact(ctx context.Context, sessionID SessionID, policy CompactionPolicy) (CompactionReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoints, err := m.store.ListBySession(ctx, sessionID)
	if err != nil {
		return CompactionReport{}, err
	}

	retain := m.retainedIDs(checkpoints, policy)

	report := CompactionReport{SessionID: sessionID}
	for _, c := range checkpoints {
		if _, keep := retain[c.ID]; keep {
			report.Retained++
			continue
		}
		if err := m.store.Delete(ctx, c.ID); err != nil {
			return CompactionReport{}, fmt.Errorf("checkpoint: compact delete %s: %w", c.ID, err)
		}
		report.Deleted++
	}
	return report, nil
}

func (m *Manager) retainedIDs(checkpoints []Checkpoint, policy CompactionPolicy) map[ID]struct{} {
	retain := make(map[ID]struct{})
	switch policy.kind {
	case compactionKeepRecent:
		for _, c := range keepRecentOf(checkpoints, policy.keepRecent) {
			retain[c.ID] = struct{}{}
		}
	case compactionPreserveTagged:
		for _, c := range preserveTaggedOf(checkpoints, policy.preserveTags) {
			retain[c.ID] = struct{}{}
		}
	case compactionHybrid:
		for _, c := range keepRecentOf(checkpoints, policy.keepRecent) {
			retain[c.ID] = struct{}{}
		}
		for _, c := range preserveTaggedOf(checkpoints, policy.preserveTags) {
			retain[c.ID] = struct{}{}
		}
	}
	return retain
}

func keepRecentOf(checkpoints []Checkpoint, n int) []Checkpoint {
	sorted := make([]Checkpoint, len(checkpoints))
	copy(sorted, checkpoints)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SequenceNumber > sorted[j].SequenceNumber })
	if n > len(sorted) {
		n = len(sorted)
	}
	if n < 0 {
		n = 0
	}
	return sorted[:n]
}

func preserveTaggedOf(checkpoints []Checkpoint, tags map[string]struct{}) []Checkpoint {
	var kept []Checkpoint
	for _, c := range checkpoints {
		for _, t := range c.Tags {
			if _, ok := tags[t]; ok {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}
