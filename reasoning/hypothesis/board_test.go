package hypothesis

import (
	"context"
	"testing"

	"github.com/oldnordic/forge/prob"
	"github.com/oldnordic/forge/reasoning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropose_PosteriorEqualsPriorAndStatusProposed(t *testing.T) {
	ctx := context.Background()
	board := InMemory()

	id, err := board.Propose(ctx, "function F returns null on empty input", prob.Default())
	require.NoError(t, err)

	h, err := board.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, h.Prior.Get(), h.Posterior.Get())
	assert.Equal(t, Proposed, h.Status)
}

func TestUpdateWithEvidence_StrongSupportPushesPosteriorUp(t *testing.T) {
	ctx := context.Background()
	board := InMemory()

	id, err := board.Propose(ctx, "F returns null on empty input", prob.Default())
	require.NoError(t, err)

	lH, lNotH := StrengthToLikelihood(0.9, Experiment)
	posterior, err := board.UpdateWithEvidence(ctx, id, lH, lNotH)
	require.NoError(t, err)
	assert.Greater(t, posterior.Get(), 0.8)

	h, err := board.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Proposed, h.Status, "status does not move on its own")
}

func TestUpdateWithEvidence_NotFound(t *testing.T) {
	ctx := context.Background()
	board := InMemory()
	_, err := board.UpdateWithEvidence(ctx, NewID(), 0.9, 0.1)
	require.Error(t, err)
	assert.True(t, reasoning.Is(err, reasoning.KindNotFound))
}

func TestSetStatus_LegalAndIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	board := InMemory()
	id, err := board.Propose(ctx, "test", prob.Default())
	require.NoError(t, err)

	require.NoError(t, board.SetStatus(ctx, id, UnderTest))
	require.NoError(t, board.SetStatus(ctx, id, Confirmed))

	err = board.SetStatus(ctx, id, Proposed)
	require.Error(t, err)
	assert.True(t, reasoning.Is(err, reasoning.KindInvalidState))
}

func TestAttachEvidence_ClampsStrengthPerKind(t *testing.T) {
	ctx := context.Background()
	board := InMemory()
	id, err := board.Propose(ctx, "test", prob.Default())
	require.NoError(t, err)

	evID, err := board.AttachEvidence(ctx, id, Observation, 5.0, Metadata{
		Observation: &ObservationMeta{Description: "saw it happen"},
	})
	require.NoError(t, err)
	assert.NotZero(t, evID)

	all, err := board.EvidenceFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, Observation.MaxStrength(), all[0].Strength)
}

func TestAttachEvidence_AutoFoldUpdatesPosterior(t *testing.T) {
	ctx := context.Background()
	board := InMemory(WithAutoFold(true))
	id, err := board.Propose(ctx, "test", prob.Default())
	require.NoError(t, err)

	_, err = board.AttachEvidence(ctx, id, Experiment, 0.9, Metadata{
		Experiment: &ExperimentMeta{Name: "t1", TestCommand: "go test", Passed: true},
	})
	require.NoError(t, err)

	h, err := board.Get(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, h.Posterior.Get(), 0.8)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	board := InMemory()
	id, err := board.Propose(ctx, "test", prob.Default())
	require.NoError(t, err)

	existed, err := board.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = board.Get(ctx, id)
	require.Error(t, err)
	assert.True(t, reasoning.Is(err, reasoning.KindNotFound))
}
