package hypothesis

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceID identifies an evidence record.
type EvidenceID uuid.UUID

// NewEvidenceID generates a fresh random evidence ID.
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

// String implements fmt.Stringer.
func (id EvidenceID) String() string { return uuid.UUID(id).String() }

// EvidenceKind is the type of an evidence attachment. Each kind has its own
// maximum absolute strength.
type EvidenceKind int

const (
	Observation EvidenceKind = iota
	Experiment
	Reference
	Deduction
)

// String implements fmt.Stringer.
func (k EvidenceKind) String() string {
	switch k {
	case Observation:
		return "Observation"
	case Experiment:
		return "Experiment"
	case Reference:
		return "Reference"
	case Deduction:
		return "Deduction"
	default:
		return "Unknown"
	}
}

// MaxStrength returns the per-kind ceiling on absolute evidence strength.
func (k EvidenceKind) MaxStrength() float64 {
	switch k {
	case Observation:
		return 0.5
	case Experiment:
		return 1.0
	case Reference:
		return 0.3
	case Deduction:
		return 0.7
	default:
		return 0
	}
}

// ClampStrength clamps strength to [-max, max] for this kind.
func (k EvidenceKind) ClampStrength(strength float64) float64 {
	max := k.MaxStrength()
	if strength > max {
		return max
	}
	if strength < -max {
		return -max
	}
	return strength
}

// Metadata is a tagged record carrying kind-specific fields. Exactly one
// of the embedded pointers is populated, matching the kind of the evidence
// it is attached to; the others are nil.
type Metadata struct {
	Observation *ObservationMeta
	Experiment  *ExperimentMeta
	Reference   *ReferenceMeta
	Deduction   *DeductionMeta
}

// ObservationMeta describes a direct observation.
type ObservationMeta struct {
	Description string
	SourcePath  string
}

// ExperimentMeta describes a controlled experiment, typically a shell
// command run by the verification runner.
type ExperimentMeta struct {
	Name        string
	TestCommand string
	Output      string
	Passed      bool
}

// ReferenceMeta describes an external reference.
type ReferenceMeta struct {
	Citation string
	URL      string
	Author   string
}

// DeductionMeta describes a logical deduction from premises.
type DeductionMeta struct {
	Premises  []ID
	Reasoning string
}

// Evidence is a typed attachment to a hypothesis carrying a signed
// strength; positive strength supports the hypothesis, negative refutes
// it.
type Evidence struct {
	ID           EvidenceID
	HypothesisID ID
	Kind         EvidenceKind
	Strength     float64
	Metadata     Metadata
	CreatedAt    time.Time
}

// NewEvidence constructs an Evidence record, clamping strength to the
// kind's valid range.
func NewEvidence(hypothesisID ID, kind EvidenceKind, strength float64, meta Metadata) Evidence {
	return Evidence{
		ID:           NewEvidenceID(),
		HypothesisID: hypothesisID,
		Kind:         kind,
		Strength:     kind.ClampStrength(strength),
		Metadata:     meta,
		CreatedAt:    time.Now().UTC(),
	}
}

// IsSupporting reports whether the evidence's strength is positive.
func (e Evidence) IsSupporting() bool { return e.Strength > 0 }

// IsRefuting reports whether the evidence's strength is negative.
func (e Evidence) IsRefuting() bool { return e.Strength < 0 }

// likelihoodBase is the neutral-evidence probability used by
// StrengthToLikelihood before any adjustment is applied.
const likelihoodBase = 0.5

// maxAdjustment bounds how far a single piece of evidence, at its kind's
// maximum strength, can move the likelihood ratio away from 0.5.
const maxAdjustment = 0.4

// StrengthToLikelihood maps a clamped evidence strength to a
// (P(E|H), P(E|¬H)) likelihood pair for use in a Bayes update:
//
//	adj = (clamped/max) * 0.4
//	(L_H, L_notH) = (0.5+adj, 0.5-adj)
func StrengthToLikelihood(strength float64, kind EvidenceKind) (lH, lNotH float64) {
	clamped := kind.ClampStrength(strength)
	max := kind.MaxStrength()
	var adj float64
	if max != 0 {
		adj = (clamped / max) * maxAdjustment
	}
	return likelihoodBase + adj, likelihoodBase - adj
}
