// Package verify implements the verification runner: bounded-parallel
// execution of shell-command checks against hypotheses, with retry and
// automatic evidence write-back.
package verify

import (
	"time"

	"github.com/google/uuid"
	"github.com/oldnordic/forge/reasoning/hypothesis"
)

// CheckID identifies a verification check.
type CheckID uuid.UUID

// NewCheckID generates a fresh random check ID.
func NewCheckID() CheckID { return CheckID(uuid.New()) }

// String implements fmt.Stringer.
func (id CheckID) String() string { return uuid.UUID(id).String() }

// Command is the operation a check executes. Only a shell command is
// supported today; CustomAssertion is reserved for when check functions
// can be registered by value rather than by string.
type Command struct {
	ShellCommand    string
	CustomAssertion string // non-empty selects the CustomAssertion variant
}

// Status is the lifecycle state of a registered check.
type Status int

const (
	Pending Status = iota
	Running
	Completed
	Failed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ActionKind selects what an on-pass/on-fail action does to the
// hypothesis the check targets.
type ActionKind int

const (
	UpdateConfidence ActionKind = iota
	SetStatus
)

// Action is taken against a check's hypothesis when it passes or fails.
type Action struct {
	Kind            ActionKind
	ConfidenceDelta float64           // used when Kind == UpdateConfidence
	NewStatus       hypothesis.Status // used when Kind == SetStatus
}

// ResultKind classifies how a check execution concluded.
type ResultKind int

const (
	Passed ResultKind = iota
	FailedResult
	TimedOut
	Panicked
)

// Result is the outcome of executing a check once.
type Result struct {
	Kind     ResultKind
	Output   string
	ErrText  string // populated for FailedResult
	Message  string // populated for Panicked
	Duration time.Duration
}

// IsSuccess reports whether the result represents a passing check.
func (r Result) IsSuccess() bool { return r.Kind == Passed }

// Check is a single verification check bound to a hypothesis.
type Check struct {
	ID           CheckID
	Name         string
	HypothesisID hypothesis.ID
	Timeout      time.Duration
	Command      Command
	OnPass       *Action
	OnFail       *Action
	Status       Status
	CreatedAt    time.Time
}

// NewCheck constructs a pending check.
func NewCheck(name string, hypothesisID hypothesis.ID, timeout time.Duration, command Command, onPass, onFail *Action) Check {
	return Check{
		ID:           NewCheckID(),
		Name:         name,
		HypothesisID: hypothesisID,
		Timeout:      timeout,
		Command:      command,
		OnPass:       onPass,
		OnFail:       onFail,
		Status:       Pending,
		CreatedAt:    time.Now().UTC(),
	}
}

// IsRetryable reports whether the check's current status permits a retry.
func (c Check) IsRetryable() bool { return c.Status == Failed }
