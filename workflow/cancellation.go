package workflow

import "sync/atomic"

// CancellationToken is a cheap, cloneable handle on a shared
// cancellation flag. Cancellation is cooperative: holders must poll
// Cancelled() at loop boundaries.
type CancellationToken struct {
	cancelled *atomic.Bool
}

// Cancelled reports whether the token's source has been cancelled.
func (t CancellationToken) Cancelled() bool {
	return t.cancelled.Load()
}

// CancellationTokenSource owns a cancellation flag and can trigger it.
// Cancel is monotonic and idempotent.
type CancellationTokenSource struct {
	token CancellationToken
}

// NewCancellationTokenSource returns a fresh, non-cancelled source.
func NewCancellationTokenSource() *CancellationTokenSource {
	return &CancellationTokenSource{token: CancellationToken{cancelled: new(atomic.Bool)}}
}

// Token returns a clone referencing the source's shared state.
func (s *CancellationTokenSource) Token() CancellationToken {
	return s.token
}

// Cancel sets the shared flag. Safe to call more than once.
func (s *CancellationTokenSource) Cancel() {
	s.token.cancelled.Store(true)
}

// ChildToken is cancelled when either its parent or its own local
// cancel is triggered.
type ChildToken struct {
	parent CancellationToken
	local  *atomic.Bool
}

// ChildToken derives a token that ORs the parent's cancellation with
// its own independent local cancellation.
func (s *CancellationTokenSource) ChildToken() ChildToken {
	return ChildToken{parent: s.token, local: new(atomic.Bool)}
}

// Cancelled reports whether the parent or this child was cancelled.
func (c ChildToken) Cancelled() bool {
	return c.parent.Cancelled() || c.local.Load()
}

// Cancel cancels this child independently of its parent.
func (c ChildToken) Cancel() {
	c.local.Store(true)
}
