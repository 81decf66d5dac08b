// Package hypothesis implements the hypothesis board: CRUD, the Bayesian
// update path, and the lifecycle state machine for hypotheses, plus the
// typed evidence attachments that feed it.
package hypothesis

import (
	"time"

	"github.com/google/uuid"
	"github.com/oldnordic/forge/prob"
)

// ID identifies a hypothesis. It is a 128-bit opaque value displayable as
// UUID text.
type ID uuid.UUID

// NewID generates a fresh random hypothesis ID.
func NewID() ID { return ID(uuid.New()) }

// String implements fmt.Stringer.
func (id ID) String() string { return uuid.UUID(id).String() }

// Status is the lifecycle state of a hypothesis.
type Status int

const (
	// Proposed is the initial state: a hypothesis has been raised but not
	// yet investigated.
	Proposed Status = iota
	// UnderTest means the hypothesis is currently being verified.
	UnderTest
	// Confirmed means evidence supports the hypothesis.
	Confirmed
	// Rejected means evidence contradicts the hypothesis.
	Rejected
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Proposed:
		return "Proposed"
	case UnderTest:
		return "UnderTest"
	case Confirmed:
		return "Confirmed"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// CanTransitionTo reports whether the lifecycle allows moving from s to
// next. This is the single source of truth for the four legal transitions
// in the state machine; all other combinations are rejected.
func (s Status) CanTransitionTo(next Status) bool {
	switch {
	case s == Proposed && next == UnderTest:
		return true
	case s == Proposed && next == Rejected:
		return true
	case s == UnderTest && next == Confirmed:
		return true
	case s == UnderTest && next == Rejected:
		return true
	default:
		return false
	}
}

// Hypothesis is a named proposition with a tracked Bayesian confidence.
type Hypothesis struct {
	ID        ID
	Statement string
	Prior     prob.Probability
	Posterior prob.Probability
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New constructs a hypothesis with posterior equal to prior and status
// Proposed, per spec.
func New(statement string, prior prob.Probability) Hypothesis {
	now := time.Now().UTC()
	return Hypothesis{
		ID:        NewID(),
		Statement: statement,
		Prior:     prior,
		Posterior: prior,
		Status:    Proposed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
