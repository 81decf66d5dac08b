package hypothesis

import (
	"context"
	"time"

	"github.com/oldnordic/forge/prob"
	"github.com/oldnordic/forge/reasoning"
)

// Storage is the pluggable persistence contract behind the hypothesis
// board. An in-memory implementation (MemStorage) is provided for tests
// and for the default non-persistent mode; a database-backed
// implementation can be substituted without changing Board's API.
type Storage interface {
	Create(ctx context.Context, h Hypothesis) error
	Get(ctx context.Context, id ID) (Hypothesis, bool, error)
	List(ctx context.Context) ([]Hypothesis, error)
	Delete(ctx context.Context, id ID) (bool, error)
	UpdatePosterior(ctx context.Context, id ID, posterior prob.Probability) error
	SetStatus(ctx context.Context, id ID, status Status) error
	AttachEvidence(ctx context.Context, ev Evidence) error
	EvidenceFor(ctx context.Context, id ID) ([]Evidence, error)
}

// Board is the public API for hypothesis management: propose, update with
// evidence, attach evidence, and transition lifecycle status. It owns no
// storage of its own; all state lives behind the Storage it wraps.
type Board struct {
	storage Storage
	// autoFold, when true, immediately folds newly attached evidence into
	// the hypothesis's posterior via the strength-to-likelihood mapping
	// (AttachEvidence's "board policy" in spec.md §4.2).
	autoFold bool
}

// Option configures a Board.
type Option func(*Board)

// WithAutoFold enables or disables automatically folding attached evidence
// into the posterior. Disabled by default: callers that want the prior
// verification-runner behavior (write evidence, then separately call
// UpdateWithEvidence) can leave this off.
func WithAutoFold(enabled bool) Option {
	return func(b *Board) { b.autoFold = enabled }
}

// NewBoard wraps storage in a Board, applying the given options.
func NewBoard(storage Storage, opts ...Option) *Board {
	b := &Board{storage: storage}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InMemory returns a Board backed by a fresh MemStorage, the first-class
// non-persistent mode called out in spec.md §1.
func InMemory(opts ...Option) *Board {
	return NewBoard(NewMemStorage(), opts...)
}

// Propose creates a new hypothesis with posterior equal to prior and
// status Proposed.
func (b *Board) Propose(ctx context.Context, statement string, prior prob.Probability) (ID, error) {
	h := New(statement, prior)
	if err := b.storage.Create(ctx, h); err != nil {
		return ID{}, err
	}
	return h.ID, nil
}

// Get retrieves a hypothesis by id.
func (b *Board) Get(ctx context.Context, id ID) (Hypothesis, error) {
	h, ok, err := b.storage.Get(ctx, id)
	if err != nil {
		return Hypothesis{}, err
	}
	if !ok {
		return Hypothesis{}, reasoning.New(reasoning.KindNotFound, "hypothesis not found: "+id.String())
	}
	return h, nil
}

// List returns every hypothesis on the board.
func (b *Board) List(ctx context.Context) ([]Hypothesis, error) {
	return b.storage.List(ctx)
}

// Delete removes a hypothesis, reporting whether it existed.
func (b *Board) Delete(ctx context.Context, id ID) (bool, error) {
	return b.storage.Delete(ctx, id)
}

// UpdateWithEvidence reads the current posterior, applies a Bayes update
// with the given likelihoods, and writes the result back. It fails with
// KindNotFound if id is absent, or KindInvalidState if the Bayes math
// produces an out-of-range posterior.
func (b *Board) UpdateWithEvidence(ctx context.Context, id ID, lH, lNotH float64) (prob.Probability, error) {
	h, err := b.Get(ctx, id)
	if err != nil {
		return prob.Probability{}, err
	}
	next, err := h.Posterior.Update(lH, lNotH)
	if err != nil {
		return prob.Probability{}, reasoning.Wrap(reasoning.KindInvalidState, "bayes update produced invalid posterior", err)
	}
	if err := b.storage.UpdatePosterior(ctx, id, next); err != nil {
		return prob.Probability{}, err
	}
	return next, nil
}

// AttachEvidence clamps strength per kind, persists the evidence record,
// and — if the board was constructed WithAutoFold(true) — immediately
// folds it into the hypothesis's posterior via StrengthToLikelihood.
func (b *Board) AttachEvidence(ctx context.Context, id ID, kind EvidenceKind, strength float64, meta Metadata) (EvidenceID, error) {
	if _, err := b.Get(ctx, id); err != nil {
		return EvidenceID{}, err
	}
	ev := NewEvidence(id, kind, strength, meta)
	if err := b.storage.AttachEvidence(ctx, ev); err != nil {
		return EvidenceID{}, err
	}
	if b.autoFold {
		lH, lNotH := StrengthToLikelihood(ev.Strength, kind)
		if _, err := b.UpdateWithEvidence(ctx, id, lH, lNotH); err != nil {
			return ev.ID, err
		}
	}
	return ev.ID, nil
}

// SetPosterior writes a posterior directly, bypassing the Bayes formula.
// It exists for components that have already computed the target
// posterior themselves (the impact engine's confirm/revert paths) and
// would otherwise have to reverse-engineer a likelihood pair to reach it.
func (b *Board) SetPosterior(ctx context.Context, id ID, posterior prob.Probability) error {
	if _, err := b.Get(ctx, id); err != nil {
		return err
	}
	return b.storage.UpdatePosterior(ctx, id, posterior)
}

// EvidenceFor returns all evidence attached to a hypothesis, in arrival
// order.
func (b *Board) EvidenceFor(ctx context.Context, id ID) ([]Evidence, error) {
	return b.storage.EvidenceFor(ctx, id)
}

// SetStatus validates the requested transition against the lifecycle
// table and, if legal, persists the new status and bumps UpdatedAt.
func (b *Board) SetStatus(ctx context.Context, id ID, next Status) error {
	h, err := b.Get(ctx, id)
	if err != nil {
		return err
	}
	if !h.Status.CanTransitionTo(next) {
		return reasoning.New(reasoning.KindInvalidState, "illegal status transition "+h.Status.String()+" -> "+next.String())
	}
	return b.storage.SetStatus(ctx, id, next)
}

// now is indirected for testability of UpdatedAt-dependent assertions in
// storage implementations; production code always calls time.Now().
var now = func() time.Time { return time.Now().UTC() }
