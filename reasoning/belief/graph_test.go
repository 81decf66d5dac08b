package belief

import (
	"testing"

	"github.com/oldnordic/forge/reasoning"
	"github.com/oldnordic/forge/reasoning/hypothesis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDependency_RecordsEdge(t *testing.T) {
	g := New()
	a, b := hypothesis.NewID(), hypothesis.NewID()

	require.NoError(t, g.AddDependency(a, b))
	assert.Contains(t, g.Dependees(a), b)
	assert.Contains(t, g.Dependents(b), a)
}

func TestAddDependency_DuplicateIsNoOp(t *testing.T) {
	g := New()
	a, b := hypothesis.NewID(), hypothesis.NewID()

	require.NoError(t, g.AddDependency(a, b))
	require.NoError(t, g.AddDependency(a, b))
	assert.Len(t, g.Dependees(a), 1)
}

func TestAddDependency_RejectsSelfLoop(t *testing.T) {
	g := New()
	a := hypothesis.NewID()
	err := g.AddDependency(a, a)
	require.Error(t, err)
	assert.True(t, reasoning.Is(err, reasoning.KindCascade))
}

func TestAddDependency_RejectsCycle(t *testing.T) {
	g := New()
	a, b, c := hypothesis.NewID(), hypothesis.NewID(), hypothesis.NewID()

	require.NoError(t, g.AddDependency(a, b))
	require.NoError(t, g.AddDependency(b, c))

	err := g.AddDependency(c, a)
	require.Error(t, err)
	assert.True(t, reasoning.Is(err, reasoning.KindCascade))

	assert.Empty(t, g.DetectCycles())
	assert.Empty(t, g.Dependees(c))
}

func TestDependencyChain_TransitiveClosure(t *testing.T) {
	g := New()
	a, b, c := hypothesis.NewID(), hypothesis.NewID(), hypothesis.NewID()
	require.NoError(t, g.AddDependency(a, b))
	require.NoError(t, g.AddDependency(b, c))

	chain := g.DependencyChain(a)
	assert.ElementsMatch(t, []hypothesis.ID{b, c}, chain)

	reverse := g.ReverseDependencyChain(c)
	assert.ElementsMatch(t, []hypothesis.ID{a, b}, reverse)
}

func TestRemoveDependency(t *testing.T) {
	g := New()
	a, b := hypothesis.NewID(), hypothesis.NewID()
	require.NoError(t, g.AddDependency(a, b))

	assert.True(t, g.RemoveDependency(a, b))
	assert.False(t, g.RemoveDependency(a, b))
	assert.Empty(t, g.Dependees(a))
}

func TestRemoveHypothesis_DropsIncidentEdges(t *testing.T) {
	g := New()
	a, b, c := hypothesis.NewID(), hypothesis.NewID(), hypothesis.NewID()
	require.NoError(t, g.AddDependency(a, b))
	require.NoError(t, g.AddDependency(c, b))

	assert.True(t, g.RemoveHypothesis(b))
	assert.Empty(t, g.Dependees(a))
	assert.Empty(t, g.Dependees(c))
	assert.NotContains(t, g.Nodes(), b)
}

func TestDetectCycles_EmptyForAcyclicGraph(t *testing.T) {
	g := New()
	a, b := hypothesis.NewID(), hypothesis.NewID()
	require.NoError(t, g.AddDependency(a, b))
	assert.Empty(t, g.DetectCycles())
}
