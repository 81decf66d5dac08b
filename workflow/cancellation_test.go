package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancellationToken_CancelIsVisibleToClones(t *testing.T) {
	source := NewCancellationTokenSource()
	token1 := source.Token()
	token2 := source.Token()

	assert.False(t, token1.Cancelled())
	assert.False(t, token2.Cancelled())

	source.Cancel()

	assert.True(t, token1.Cancelled())
	assert.True(t, token2.Cancelled())
}

func TestCancellationToken_CancelIsIdempotent(t *testing.T) {
	source := NewCancellationTokenSource()
	source.Cancel()
	source.Cancel()
	assert.True(t, source.Token().Cancelled())
}

func TestChildToken_InheritsParentCancellation(t *testing.T) {
	source := NewCancellationTokenSource()
	child := source.ChildToken()

	assert.False(t, child.Cancelled())
	source.Cancel()
	assert.True(t, child.Cancelled())
}

func TestChildToken_CanCancelIndependently(t *testing.T) {
	source := NewCancellationTokenSource()
	child := source.ChildToken()

	child.Cancel()
	assert.True(t, child.Cancelled())
	assert.False(t, source.Token().Cancelled())
}
