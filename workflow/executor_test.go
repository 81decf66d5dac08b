package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingTask(calls *[]TaskID, id TaskID, err error) Task {
	return TaskFunc(func(ctx *TaskContext) error {
		*calls = append(*calls, id)
		return err
	})
}

func TestExecute_RunsTasksInTopologicalOrder(t *testing.T) {
	var calls []TaskID
	dag := NewDAG()
	dag.AddTask("a", "A", recordingTask(&calls, "a", nil))
	dag.AddTask("b", "B", recordingTask(&calls, "b", nil))
	dag.AddTask("c", "C", recordingTask(&calls, "c", nil))
	require.NoError(t, dag.AddDependency("a", "b"))
	require.NoError(t, dag.AddDependency("b", "c"))

	exec := NewExecutor(dag, DefaultTimeoutConfig())
	result, err := exec.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, []TaskID{"a", "b", "c"}, calls)
}

func TestExecute_StopsAndRollsBackOnFailure(t *testing.T) {
	var calls []TaskID
	var compensated []TaskID

	dag := NewDAG()
	dag.AddTask("a", "A", recordingTask(&calls, "a", nil))
	dag.AddTask("b", "B", recordingTask(&calls, "b", errors.New("boom")))
	dag.AddTask("c", "C", recordingTask(&calls, "c", nil))
	require.NoError(t, dag.AddDependency("a", "b"))
	require.NoError(t, dag.AddDependency("b", "c"))
	dag.WithCompensation("a", func(ctx *TaskContext) error {
		compensated = append(compensated, "a")
		return nil
	})

	exec := NewExecutor(dag, DefaultTimeoutConfig())
	result, err := exec.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success())

	// c must never have launched.
	assert.Equal(t, []TaskID{"a", "b"}, calls)
	assert.Equal(t, []TaskID{"a"}, compensated)
	require.NotNil(t, result.Compensation)
	require.Len(t, result.Compensation.Outcomes, 1)
	assert.Equal(t, Compensated, result.Compensation.Outcomes[0].Kind)
}

func TestExecute_RunsIndependentFrontierTasksConcurrently(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("root", "Root", noopTask())
	for _, id := range []TaskID{"a", "b", "c", "d"} {
		dag.AddTask(id, string(id), TaskFunc(func(ctx *TaskContext) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		}))
		require.NoError(t, dag.AddDependency("root", id))
	}

	exec := NewExecutor(dag, DefaultTimeoutConfig()).WithMaxConcurrency(4)
	start := time.Now()
	result, err := exec.Execute(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, result.Success())
	// Four independent 50ms tasks sharing a frontier, with a
	// concurrency bound of 4, should finish in about one wave.
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestExecute_FrontierConcurrencyIsBounded(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("root", "Root", noopTask())
	for _, id := range []TaskID{"a", "b", "c", "d"} {
		dag.AddTask(id, string(id), TaskFunc(func(ctx *TaskContext) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		}))
		require.NoError(t, dag.AddDependency("root", id))
	}

	exec := NewExecutor(dag, DefaultTimeoutConfig()).WithMaxConcurrency(2)
	start := time.Now()
	result, err := exec.Execute(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, result.Success())
	// With limit 2 and 4 tasks of ~50ms each in one frontier, this
	// should take at least two waves (~100ms), not run all four at once.
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestExecute_TaskTimeoutClassifiesAsTimeout(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("slow", "Slow", TaskFunc(func(ctx *TaskContext) error {
		<-ctx.Context().Done()
		return ctx.Context().Err()
	}))
	dag.WithTaskTimeout("slow", 10*time.Millisecond)

	exec := NewExecutor(dag, TimeoutConfig{TaskTimeout: 30 * time.Second, WorkflowTimeout: 30 * time.Second})
	result, err := exec.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, StatusTimeout, result.Outcomes[0].Status)
}

func TestExecute_CancellationStopsFurtherLaunches(t *testing.T) {
	var calls []TaskID
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())
	dag.AddTask("b", "B", recordingTask(&calls, "b", nil))
	require.NoError(t, dag.AddDependency("a", "b"))

	exec := NewExecutor(dag, DefaultTimeoutConfig())
	exec.CancelSource().Cancel()

	result, err := exec.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Empty(t, calls)
}

func TestExecute_AuditLogRecordsStartedBeforeCompleted(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", noopTask())

	exec := NewExecutor(dag, DefaultTimeoutConfig())
	_, err := exec.Execute(context.Background())
	require.NoError(t, err)

	events := exec.Audit().Replay()
	var startedTx, completedTx uint64
	for _, evt := range events {
		if evt.TaskID != "a" {
			continue
		}
		if evt.Kind == TaskStarted {
			startedTx = evt.TxID
		}
		if evt.Kind == TaskCompleted {
			completedTx = evt.TxID
		}
	}
	require.NotZero(t, startedTx)
	require.NotZero(t, completedTx)
	assert.Less(t, startedTx, completedTx)
}

func TestExecute_PanicIsRecoveredAsFailure(t *testing.T) {
	dag := NewDAG()
	dag.AddTask("a", "A", TaskFunc(func(ctx *TaskContext) error {
		panic("boom")
	}))

	exec := NewExecutor(dag, DefaultTimeoutConfig())
	result, err := exec.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, StatusFailed, result.Outcomes[0].Status)
}
