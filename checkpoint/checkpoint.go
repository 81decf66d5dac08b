// Package checkpoint implements the temporal checkpointing substrate: a
// content-checksummed, globally-sequenced snapshot of a session's working
// state, with session-isolated queries and restartable sequence numbering.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ID identifies a checkpoint.
type ID uuid.UUID

// NewID generates a fresh random checkpoint ID.
func NewID() ID { return ID(uuid.New()) }

// String implements fmt.Stringer.
func (id ID) String() string { return uuid.UUID(id).String() }

// SessionID identifies a debugging/working session.
type SessionID uuid.UUID

// NewSessionID generates a fresh random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// String implements fmt.Stringer.
func (id SessionID) String() string { return uuid.UUID(id).String() }

// TriggerKind classifies what caused a checkpoint to be created.
type TriggerKind int

const (
	Manual TriggerKind = iota
	Automatic
	Scheduled
)

// Trigger records why a checkpoint was created. Subkind is populated only
// for Automatic triggers (e.g. "on_error", "on_tool_call", "interval").
type Trigger struct {
	Kind    TriggerKind
	Subkind string
}

// String renders the trigger the way the wire format expects:
// "manual" | "auto:<subkind>" | "scheduled".
func (t Trigger) String() string {
	switch t.Kind {
	case Automatic:
		return "auto:" + t.Subkind
	case Scheduled:
		return "scheduled"
	default:
		return "manual"
	}
}

// DebugStateSnapshot is the captured working state at checkpoint time.
type DebugStateSnapshot struct {
	WorkingDir      string             `json:"working_dir"`
	EnvVars         map[string]string  `json:"env_vars"`
	SessionMetrics  map[string]float64 `json:"session_metrics"`
	HypothesisState json.RawMessage    `json:"hypothesis_state,omitempty"`
}

// Severity ranks an annotation's urgency.
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

// Annotation is a note attached to a checkpoint after creation.
type Annotation struct {
	Note      string
	Severity  Severity
	Timestamp time.Time
}

// Checkpoint is a durable, checksum-validated snapshot of a session's
// state at a globally-monotonic sequence number.
type Checkpoint struct {
	ID             ID
	SequenceNumber uint64
	SessionID      SessionID
	Timestamp      time.Time
	Message        string
	Tags           []string
	Trigger        Trigger
	State          DebugStateSnapshot
	Checksum       string
	Annotations    []Annotation
}

// canonicalFields is the JSON-serializable view of every Checkpoint field
// except Checksum, in declared field order, used as the checksum input.
// Keeping it a distinct type (rather than reusing Checkpoint with a
// json:"-" tag on Checksum) makes the "all fields but the checksum itself"
// contract explicit and resistant to accidental field reordering.
type canonicalFields struct {
	ID             ID                 `json:"id"`
	SequenceNumber uint64             `json:"sequence_number"`
	SessionID      SessionID          `json:"session_id"`
	Timestamp      time.Time          `json:"timestamp"`
	Message        string             `json:"message"`
	Tags           []string           `json:"tags"`
	Trigger        string             `json:"trigger"`
	State          DebugStateSnapshot `json:"state"`
}

// computeChecksum hashes the canonical field serialization with SHA-256
// and returns it as lowercase hex, matching the wire format's
// "64 hex chars" checksum shape.
func computeChecksum(c Checkpoint) (string, error) {
	canon := canonicalFields{
		ID:             c.ID,
		SequenceNumber: c.SequenceNumber,
		SessionID:      c.SessionID,
		Timestamp:      c.Timestamp,
		Message:        c.Message,
		Tags:           c.Tags,
		Trigger:        c.Trigger.String(),
		State:          c.State,
	}
	data, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// New builds a Checkpoint with a fresh ID, the given sequence number, and
// a checksum computed over every other field. Callers are expected to
// have already assigned SequenceNumber via the store's next-sequence
// counter before calling New.
func New(sessionID SessionID, sequenceNumber uint64, message string, tags []string, trigger Trigger, state DebugStateSnapshot) (Checkpoint, error) {
	c := Checkpoint{
		ID:             NewID(),
		SequenceNumber: sequenceNumber,
		SessionID:      sessionID,
		Timestamp:      time.Now().UTC(),
		Message:        message,
		Tags:           tags,
		Trigger:        trigger,
		State:          state,
	}
	sum, err := computeChecksum(c)
	if err != nil {
		return Checkpoint{}, err
	}
	c.Checksum = sum
	return c, nil
}

// Validate recomputes the checksum over c's current fields and reports
// whether it matches the stored Checksum.
func Validate(c Checkpoint) (bool, error) {
	sum, err := computeChecksum(c)
	if err != nil {
		return false, err
	}
	return sum == c.Checksum, nil
}

// ValidationSummary is the result of validating a batch of checkpoints.
type ValidationSummary struct {
	Total     int
	Valid     int
	Invalid   int
	CheckedAt time.Time
}
