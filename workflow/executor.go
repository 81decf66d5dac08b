package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/oldnordic/forge/reasoning"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds how many tasks within a single execution
// frontier run at once when an Executor isn't given an explicit limit.
const DefaultMaxConcurrency = 4

// TaskContext is what a Task's Run method receives: a context bound to
// the task's own timeout/workflow-cancellation race, and the
// cancellation token for cooperative polling.
type TaskContext struct {
	ctx   context.Context
	token CancellationToken
}

// Context returns the underlying context, for callers that need to
// pass it to further operations (subprocess calls, store reads).
func (c *TaskContext) Context() context.Context { return c.ctx }

// Cancelled reports whether the workflow-level cancellation token has
// fired. Long-running tasks must poll this at loop boundaries.
func (c *TaskContext) Cancelled() bool { return c.token.Cancelled() }

// TaskStatus classifies how a task finished.
type TaskStatus int

const (
	StatusSuccess TaskStatus = iota
	StatusFailed
	StatusCancelled
	StatusTimeout
)

func (s TaskStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	case StatusCancelled:
		return "Cancelled"
	case StatusTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// TaskOutcome is one task's terminal result within a WorkflowResult.
type TaskOutcome struct {
	TaskID TaskID
	Status TaskStatus
	Err    error
}

// WorkflowResult is the executor's terminal report: per-task outcomes,
// in execution order, plus a compensation report if rollback ran.
type WorkflowResult struct {
	Outcomes     []TaskOutcome
	Compensation *CompensationReport
	Audit        *AuditLog
}

// Success reports whether every task completed successfully and no
// rollback was required.
func (r WorkflowResult) Success() bool {
	for _, o := range r.Outcomes {
		if o.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// Executor runs a DAG's execution frontiers in topological order; within
// a frontier, mutually independent tasks run concurrently, bounded by
// maxConcurrent, each racing against the workflow cancellation token,
// its own timeout, and the workflow's overall timeout. On the first
// failure within a frontier it stops launching further frontiers and
// rolls back already-completed tasks.
type Executor struct {
	dag           *DAG
	timeout       TimeoutConfig
	source        *CancellationTokenSource
	audit         *AuditLog
	maxConcurrent int
}

// NewExecutor builds an Executor over dag using cfg's timeouts, a fresh
// CancellationTokenSource (retrievable via CancelSource for external
// cancellation), and DefaultMaxConcurrency. Call WithMaxConcurrency to
// override the per-frontier concurrency bound.
func NewExecutor(dag *DAG, cfg TimeoutConfig) *Executor {
	return &Executor{
		dag:           dag,
		timeout:       cfg,
		source:        NewCancellationTokenSource(),
		audit:         NewAuditLog(),
		maxConcurrent: DefaultMaxConcurrency,
	}
}

// WithMaxConcurrency bounds how many tasks within a single execution
// frontier may run at once. n <= 0 is ignored.
func (e *Executor) WithMaxConcurrency(n int) *Executor {
	if n > 0 {
		e.maxConcurrent = n
	}
	return e
}

// CancelSource returns the executor's cancellation source, so callers
// can call Cancel() from another goroutine.
func (e *Executor) CancelSource() *CancellationTokenSource { return e.source }

// Audit returns the executor's audit log.
func (e *Executor) Audit() *AuditLog { return e.audit }

// Execute validates dag, computes its execution frontiers, then runs
// each frontier's tasks concurrently (bounded by maxConcurrent) before
// moving to the next frontier. On failure or cancellation it stops
// launching further frontiers and compensates whatever already
// completed, in reverse completion order.
func (e *Executor) Execute(ctx context.Context) (WorkflowResult, error) {
	report := Validate(e.dag)
	if !report.Valid {
		return WorkflowResult{}, reasoning.New(reasoning.KindCascade, "workflow failed validation")
	}

	frontiers, err := e.dag.ExecutionFrontiers()
	if err != nil {
		return WorkflowResult{}, err
	}

	e.audit.Append(WorkflowStarted, "", "", "")

	workflowCtx := ctx
	var cancelWorkflow context.CancelFunc
	if e.timeout.WorkflowTimeout > 0 {
		workflowCtx, cancelWorkflow = context.WithTimeout(ctx, e.timeout.WorkflowTimeout)
		defer cancelWorkflow()
	}

	var outcomes []TaskOutcome
	var completed []TaskID
	failed := false

frontierLoop:
	for _, frontier := range frontiers {
		switch {
		case e.source.Token().Cancelled():
			for _, id := range frontier {
				e.audit.Append(TaskCancelled, id, e.dag.nodes[id].name, "workflow cancelled before launch")
				outcomes = append(outcomes, TaskOutcome{TaskID: id, Status: StatusCancelled})
			}
			failed = true
			break frontierLoop
		case workflowCtx.Err() != nil:
			for _, id := range frontier {
				e.audit.Append(TaskFailed, id, e.dag.nodes[id].name, "workflow timeout before launch")
				outcomes = append(outcomes, TaskOutcome{TaskID: id, Status: StatusTimeout, Err: &TimeoutError{Scope: ScopeWorkflow, Duration: e.timeout.WorkflowTimeout}})
			}
			failed = true
			break frontierLoop
		}

		frontierOutcomes := make([]TaskOutcome, len(frontier))
		group, groupCtx := errgroup.WithContext(workflowCtx)
		group.SetLimit(e.maxConcurrent)
		for i, id := range frontier {
			i, id := i, id
			group.Go(func() error {
				frontierOutcomes[i] = e.runTask(groupCtx, id)
				return nil
			})
		}
		_ = group.Wait()

		frontierFailed := false
		for i, id := range frontier {
			outcome := frontierOutcomes[i]
			outcomes = append(outcomes, outcome)
			if outcome.Status == StatusSuccess {
				completed = append(completed, id)
			} else {
				frontierFailed = true
			}
		}
		if frontierFailed {
			failed = true
			break frontierLoop
		}
	}

	result := WorkflowResult{Outcomes: outcomes, Audit: e.audit}

	if failed {
		comp := rollback(ctx, e.dag, reverse(completed), e.source.Token(), e.audit)
		result.Compensation = &comp
		e.audit.Append(WorkflowFailed, "", "", "")
		return result, nil
	}

	e.audit.Append(WorkflowCompleted, "", "", "")
	return result, nil
}

func (e *Executor) runTask(workflowCtx context.Context, id TaskID) TaskOutcome {
	node := e.dag.nodes[id]
	e.audit.Append(TaskStarted, id, node.name, "")

	timeout := node.timeout
	if timeout <= 0 {
		timeout = e.timeout.TaskTimeout
	}

	taskCtx := workflowCtx
	var cancel context.CancelFunc
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(workflowCtx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task panicked: %v", r)
			}
		}()
		done <- node.task.Run(&TaskContext{ctx: taskCtx, token: e.source.Token()})
	}()

	cancelPoll := time.NewTicker(10 * time.Millisecond)
	defer cancelPoll.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				e.audit.Append(TaskFailed, id, node.name, err.Error())
				return TaskOutcome{TaskID: id, Status: StatusFailed, Err: err}
			}
			e.audit.Append(TaskCompleted, id, node.name, "")
			return TaskOutcome{TaskID: id, Status: StatusSuccess}

		case <-cancelPoll.C:
			if e.source.Token().Cancelled() {
				e.audit.Append(TaskCancelled, id, node.name, "")
				return TaskOutcome{TaskID: id, Status: StatusCancelled}
			}

		case <-taskCtx.Done():
			if e.source.Token().Cancelled() {
				e.audit.Append(TaskCancelled, id, node.name, "")
				return TaskOutcome{TaskID: id, Status: StatusCancelled, Err: taskCtx.Err()}
			}
			timeoutErr := &TimeoutError{Scope: ScopeTask, TaskID: id, Duration: timeout}
			e.audit.Append(TaskFailed, id, node.name, timeoutErr.Error())
			return TaskOutcome{TaskID: id, Status: StatusTimeout, Err: timeoutErr}
		}
	}
}
