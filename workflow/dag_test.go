package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopTask() Task {
	return TaskFunc(func(ctx *TaskContext) error { return nil })
}

func TestAddDependency_RefusesCycle(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())
	dag.AddTask("b", "B", noopTask())

	require.NoError(t, dag.AddDependency("a", "b"))
	err := dag.AddDependency("b", "a")
	require.Error(t, err)
}

func TestExecutionOrder_RespectsDependencies(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())
	dag.AddTask("b", "B", noopTask())
	dag.AddTask("c", "C", noopTask())
	require.NoError(t, dag.AddDependency("a", "b"))
	require.NoError(t, dag.AddDependency("b", "c"))

	order, err := dag.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []TaskID{"a", "b", "c"}, order)
}

func TestExecutionOrder_IndependentTasksKeepInsertionOrder(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("x", "X", noopTask())
	dag.AddTask("y", "Y", noopTask())

	order, err := dag.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []TaskID{"x", "y"}, order)
}

func TestExecutionFrontiers_GroupsIndependentTasksTogether(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())
	dag.AddTask("b", "B", noopTask())
	dag.AddTask("c", "C", noopTask())
	require.NoError(t, dag.AddDependency("a", "b"))
	require.NoError(t, dag.AddDependency("a", "c"))

	frontiers, err := dag.ExecutionFrontiers()
	require.NoError(t, err)
	require.Len(t, frontiers, 2)
	assert.Equal(t, []TaskID{"a"}, frontiers[0])
	assert.Equal(t, []TaskID{"b", "c"}, frontiers[1])
}

func TestExecutionFrontiers_LinearChainIsOneTaskPerFrontier(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())
	dag.AddTask("b", "B", noopTask())
	dag.AddTask("c", "C", noopTask())
	require.NoError(t, dag.AddDependency("a", "b"))
	require.NoError(t, dag.AddDependency("b", "c"))

	frontiers, err := dag.ExecutionFrontiers()
	require.NoError(t, err)
	assert.Equal(t, [][]TaskID{{"a"}, {"b"}, {"c"}}, frontiers)
}

func TestOrphans_ReportsDisconnectedTasks(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())
	dag.AddTask("b", "B", noopTask())
	dag.AddTask("c", "C", noopTask())
	require.NoError(t, dag.AddDependency("a", "b"))

	assert.Equal(t, []TaskID{"c"}, dag.Orphans())
}

func TestValidate_DetectsMissingDependency(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())
	// manually inject a dangling dependency bypassing AddDependency's existence check
	dag.nodes["a"].dependsOn = append(dag.nodes["a"].dependsOn, "ghost")

	report := Validate(dag)
	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.MissingDeps)
}

func TestValidate_OrphansDoNotInvalidate(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())

	report := Validate(dag)
	assert.True(t, report.Valid)
	assert.Equal(t, []TaskID{"a"}, report.Orphans)
}
