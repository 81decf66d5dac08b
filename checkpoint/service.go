package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oldnordic/forge/checkpoint/store"
	"github.com/oldnordic/forge/emit"
	"github.com/oldnordic/forge/reasoning"
	"golang.org/x/time/rate"
)

// EventKind classifies an event broadcast by Service's pub/sub.
type EventKind int

const (
	Created EventKind = iota
	Deleted
	Compacted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Compacted:
		return "compacted"
	default:
		return "unknown"
	}
}

// ServiceEvent is published to per-session subscribers on every
// create/delete/compact.
type ServiceEvent struct {
	Kind       EventKind
	SessionID  SessionID
	Checkpoint Checkpoint
	Report     CompactionReport
}

// AutoCheckpointPolicy configures a session's automatic checkpoint
// triggers.
type AutoCheckpointPolicy struct {
	IntervalSeconds int
	OnError         bool
	OnToolCall      bool
}

// sessionState tracks the bookkeeping Service needs per session: its
// subscriber fan-out, throttling limiter, and auto-checkpoint policy.
type sessionState struct {
	subscribers []chan ServiceEvent
	policy      AutoCheckpointPolicy
	limiter     *rate.Limiter
	lastAuto    time.Time
}

// minAutoCheckpointInterval is the floor enforced by the throttled
// trigger API regardless of a session's configured interval: a
// significant-time-passed auto-trigger requires at least this long
// since the previous checkpoint.
const minAutoCheckpointInterval = 5 * time.Minute

// Service orchestrates checkpoint management across multiple sessions:
// event pub/sub, throttled auto-checkpointing, annotations, JSON
// export/import, health, and metrics. It wraps a single Manager/Store
// pair shared by every session.
type Service struct {
	manager *Manager
	store   store.Store
	emitter emit.Emitter

	mu       sync.Mutex
	sessions map[SessionID]*sessionState
}

// NewService builds a Service over backing, broadcasting through
// emitter (use emit.NewNullEmitter() if observability is not wired).
func NewService(backing store.Store, emitter emit.Emitter) *Service {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Service{
		manager:  NewManager(backing),
		store:    backing,
		emitter:  emitter,
		sessions: make(map[SessionID]*sessionState),
	}
}

func (s *Service) stateFor(sessionID SessionID) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &sessionState{limiter: rate.NewLimiter(rate.Every(minAutoCheckpointInterval), 1)}
		s.sessions[sessionID] = st
	}
	return st
}

// Subscribe registers a channel that receives every ServiceEvent for
// sessionID. The returned function unsubscribes.
func (s *Service) Subscribe(sessionID SessionID, buffer int) (<-chan ServiceEvent, func()) {
	ch := make(chan ServiceEvent, buffer)
	st := s.stateFor(sessionID)

	s.mu.Lock()
	st.subscribers = append(st.subscribers, ch)
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range st.subscribers {
			if sub == ch {
				st.subscribers = append(st.subscribers[:i], st.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

func (s *Service) publish(sessionID SessionID, evt ServiceEvent) {
	st := s.stateFor(sessionID)

	s.mu.Lock()
	subs := make([]chan ServiceEvent, len(st.subscribers))
	copy(subs, st.subscribers)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}

	s.emitter.Emit(emit.Event{
		Kind:      "checkpoint." + evt.Kind.String(),
		SessionID: sessionID.String(),
		Subject:   evt.Checkpoint.ID.String(),
	})
}

// Create captures a checkpoint and broadcasts a Created event.
func (s *Service) Create(ctx context.Context, sessionID SessionID, message string, tags []string, trigger Trigger, state DebugStateSnapshot) (Checkpoint, error) {
	c, err := s.manager.Create(ctx, sessionID, message, tags, trigger, state)
	if err != nil {
		return Checkpoint{}, err
	}
	st := s.stateFor(sessionID)
	s.mu.Lock()
	st.lastAuto = time.Now()
	s.mu.Unlock()

	s.publish(sessionID, ServiceEvent{Kind: Created, SessionID: sessionID, Checkpoint: c})
	return c, nil
}

// Delete removes a checkpoint and broadcasts a Deleted event.
func (s *Service) Delete(ctx context.Context, sessionID SessionID, id ID) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(sessionID, ServiceEvent{Kind: Deleted, SessionID: sessionID, Checkpoint: c})
	return nil
}

// Compact runs the manager's compaction and broadcasts a Compacted
// event.
func (s *Service) Compact(ctx context.Context, sessionID SessionID, policy CompactionPolicy) (CompactionReport, error) {
	report, err := s.manager.Compact(ctx, sessionID, policy)
	if err != nil {
		return CompactionReport{}, err
	}
	s.publish(sessionID, ServiceEvent{Kind: Compacted, SessionID: sessionID, Report: report})
	return report, nil
}

// ConfigureAutoCheckpoint sets sessionID's auto-checkpoint policy.
func (s *Service) ConfigureAutoCheckpoint(sessionID SessionID, policy AutoCheckpointPolicy) {
	st := s.stateFor(sessionID)
	s.mu.Lock()
	st.policy = policy
	s.mu.Unlock()
}

// TriggerAuto attempts an automatic checkpoint for sessionID, honoring
// the ≥5-minute throttle. It reports false without error when the
// throttle window has not elapsed.
func (s *Service) TriggerAuto(ctx context.Context, sessionID SessionID, message string, state DebugStateSnapshot) (Checkpoint, bool, error) {
	st := s.stateFor(sessionID)
	s.mu.Lock()
	last := st.lastAuto
	s.mu.Unlock()
	if !last.IsZero() && time.Since(last) < minAutoCheckpointInterval {
		return Checkpoint{}, false, nil
	}
	if !st.limiter.Allow() {
		return Checkpoint{}, false, nil
	}
	c, err := s.Create(ctx, sessionID, message, nil, Trigger{Kind: Automatic, Subkind: "interval"}, state)
	if err != nil {
		return Checkpoint{}, false, err
	}
	return c, true, nil
}

// Annotate appends an annotation to a checkpoint.
func (s *Service) Annotate(ctx context.Context, id ID, note string, severity Severity) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	c.Annotations = append(c.Annotations, Annotation{Note: note, Severity: severity, Timestamp: time.Now().UTC()})
	return s.store.Store(ctx, c)
}

// AnnotationsBySeverity returns id's annotations ordered ascending by
// severity, preserving insertion order within a severity tier.
func (s *Service) AnnotationsBySeverity(ctx context.Context, id ID) ([]Annotation, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Annotation, len(c.Annotations))
	copy(out, c.Annotations)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Severity > out[j].Severity {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out, nil
}

// exportDoc is the JSON export/import document. Version is the integer
// exportFormatVersion, and Checkpoints are encoded with encoding/json's
// default Go field names, since Checkpoint carries no json tags.
type exportDoc struct {
	Version     int          `json:"version"`
	SessionID   *string      `json:"session_id,omitempty"`
	ExportedAt  time.Time    `json:"exported_at"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

const exportFormatVersion = 1

// Export serializes every checkpoint stored for sessionID as JSON, with
// sessionID recorded as the document's session_id. Only that session's
// checkpoints are exported; there is no export across all sessions.
func (s *Service) Export(ctx context.Context, sessionID SessionID) ([]byte, error) {
	checkpoints, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sid := sessionID.String()
	doc := exportDoc{
		Version:     exportFormatVersion,
		SessionID:   &sid,
		ExportedAt:  time.Now().UTC(),
		Checkpoints: checkpoints,
	}
	return json.Marshal(doc)
}

// Import validates and persists every checkpoint in data. A single
// checksum failure aborts the whole import; no partial writes occur.
func (s *Service) Import(ctx context.Context, data []byte) (int, error) {
	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, reasoning.Wrap(reasoning.KindValidationFailed, "malformed export document", err)
	}
	if doc.Version != exportFormatVersion {
		return 0, reasoning.New(reasoning.KindValidationFailed, fmt.Sprintf("unsupported export version %d", doc.Version))
	}
	for _, c := range doc.Checkpoints {
		ok, err := Validate(c)
		if err != nil {
			return 0, reasoning.Wrap(reasoning.KindValidationFailed, "checksum recomputation failed", err)
		}
		if !ok {
			return 0, reasoning.New(reasoning.KindValidationFailed, fmt.Sprintf("checksum mismatch for checkpoint %s", c.ID))
		}
	}
	for _, c := range doc.Checkpoints {
		if err := s.store.Store(ctx, c); err != nil {
			return 0, reasoning.Wrap(reasoning.KindStorage, "import write failed", err)
		}
	}
	return len(doc.Checkpoints), nil
}

// Health reports whether the service can reach its store. When
// validate is true it also runs validate_all across sessionID and
// folds any invalid checkpoint into an unhealthy result.
type Health struct {
	Healthy bool
	Message string
}

// CheckHealth pings the store via GetMaxSequence and, if validate,
// additionally runs ValidateAll for sessionID.
func (s *Service) CheckHealth(ctx context.Context, sessionID SessionID, validate bool) Health {
	if _, err := s.store.GetMaxSequence(ctx); err != nil {
		return Health{Healthy: false, Message: fmt.Sprintf("store unreachable: %v", err)}
	}
	if !validate {
		return Health{Healthy: true, Message: "ok"}
	}
	summary, err := s.manager.ValidateAll(ctx, sessionID)
	if err != nil {
		return Health{Healthy: false, Message: fmt.Sprintf("validation failed: %v", err)}
	}
	if summary.Invalid > 0 {
		return Health{Healthy: false, Message: fmt.Sprintf("%d of %d checkpoints failed checksum validation", summary.Invalid, summary.Total)}
	}
	return Health{Healthy: true, Message: "ok"}
}

// Metrics summarizes service-wide counters.
type Metrics struct {
	TotalCheckpoints int
	ActiveSessions   int
}

// CollectMetrics walks every session the service has seen and sums
// their checkpoint counts.
func (s *Service) CollectMetrics(ctx context.Context) (Metrics, error) {
	s.mu.Lock()
	sessionIDs := make([]SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		sessionIDs = append(sessionIDs, id)
	}
	s.mu.Unlock()

	metrics := Metrics{ActiveSessions: len(sessionIDs)}
	for _, id := range sessionIDs {
		checkpoints, err := s.store.ListBySession(ctx, id)
		if err != nil {
			return Metrics{}, err
		}
		metrics.TotalCheckpoints += len(checkpoints)
	}
	return metrics, nil
}
