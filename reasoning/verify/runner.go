package verify

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/oldnordic/forge/reasoning"
	"github.com/oldnordic/forge/reasoning/hypothesis"
	"golang.org/x/sync/errgroup"
)

// Runner registers verification checks and executes them with bounded
// parallelism, writing results back to the hypothesis board as Experiment
// evidence and applying each check's pass/fail action.
type Runner struct {
	board         *hypothesis.Board
	maxConcurrent int
	retry         RetryConfig

	mu     sync.Mutex
	checks map[CheckID]Check
}

// NewRunner constructs a Runner bounded to maxConcurrent simultaneous
// check executions, retrying failed checks per retry.
func NewRunner(board *hypothesis.Board, maxConcurrent int, retry RetryConfig) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		board:         board,
		maxConcurrent: maxConcurrent,
		retry:         retry,
		checks:        make(map[CheckID]Check),
	}
}

// RegisterCheck stores a new pending check and returns its id.
func (r *Runner) RegisterCheck(name string, hypothesisID hypothesis.ID, command Command, timeout time.Duration, onPass, onFail *Action) CheckID {
	c := NewCheck(name, hypothesisID, timeout, command, onPass, onFail)
	r.mu.Lock()
	r.checks[c.ID] = c
	r.mu.Unlock()
	return c.ID
}

// GetStatus returns a registered check's current status.
func (r *Runner) GetStatus(id CheckID) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checks[id]
	if !ok {
		return 0, false
	}
	return c.Status, true
}

// ListChecks returns every registered check id and its status.
func (r *Runner) ListChecks() []Check {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Check, 0, len(r.checks))
	for _, c := range r.checks {
		out = append(out, c)
	}
	return out
}

func (r *Runner) setStatus(id CheckID, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.checks[id]; ok {
		c.Status = status
		r.checks[id] = c
	}
}

// Outcome pairs a check id with its final execution result.
type Outcome struct {
	ID     CheckID
	Result Result
}

// ExecuteChecks runs every named check, at most r.maxConcurrent at a time,
// each with retry per r.retry, and returns one Outcome per check id. A
// failure to run a single check (e.g. unknown id) surfaces as a Panicked
// result for that id rather than aborting the batch.
func (r *Runner) ExecuteChecks(ctx context.Context, ids []CheckID) []Outcome {
	results := make([]Outcome, len(ids))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.maxConcurrent)

	for i, id := range ids {
		i, id := i, id
		group.Go(func() error {
			results[i] = Outcome{ID: id, Result: r.runOne(groupCtx, id)}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, id CheckID) Result {
	r.mu.Lock()
	check, ok := r.checks[id]
	r.mu.Unlock()
	if !ok {
		return Result{Kind: Panicked, Message: "check not found"}
	}

	r.setStatus(id, Running)

	result, _ := ExecuteWithRetry(ctx, r.retry, func() (Result, error) {
		res := r.execute(ctx, check)
		if res.Kind == TimedOut || res.Kind == Panicked {
			return res, errRetryable
		}
		return res, nil
	})

	if result.Kind == Passed {
		r.setStatus(id, Completed)
	} else {
		r.setStatus(id, Failed)
	}

	r.recordEvidence(ctx, check, result)
	r.applyAction(ctx, check, result)
	return result
}

// errRetryable is a sentinel forcing ExecuteWithRetry to retry only
// TimedOut and Panicked results (process-spawn errors and panics):
// spec.md is explicit that validation errors — a check that ran to
// completion and legitimately failed (FailedResult) — are not
// retryable. The Result itself carries the real classification, so no
// error detail is lost by using a sentinel here.
var errRetryable = reasoning.New(reasoning.KindValidationFailed, "check did not pass")

func (r *Runner) execute(ctx context.Context, check Check) Result {
	if check.Command.CustomAssertion != "" {
		return Result{Kind: Panicked, Message: "custom assertions not yet implemented"}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if check.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, check.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", check.Command.ShellCommand)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{Kind: TimedOut, Output: stdout.String(), Duration: duration}
	}
	if err != nil {
		if _, isExit := err.(*exec.ExitError); isExit {
			return Result{Kind: FailedResult, Output: stdout.String(), ErrText: stderr.String(), Duration: duration}
		}
		return Result{Kind: Panicked, Message: err.Error()}
	}
	return Result{Kind: Passed, Output: stdout.String(), Duration: duration}
}

func (r *Runner) recordEvidence(ctx context.Context, check Check, result Result) {
	strength := -1.0
	passed := false
	if result.Kind == Passed {
		strength = 1.0
		passed = true
	}

	meta := hypothesis.Metadata{
		Experiment: &hypothesis.ExperimentMeta{
			Name:        check.Name,
			TestCommand: check.Command.ShellCommand,
			Output:      result.Output,
			Passed:      passed,
		},
	}
	_, _ = r.board.AttachEvidence(ctx, check.HypothesisID, hypothesis.Experiment, strength, meta)
}

func (r *Runner) applyAction(ctx context.Context, check Check, result Result) {
	var action *Action
	if result.Kind == Passed {
		action = check.OnPass
	} else {
		action = check.OnFail
	}
	if action == nil {
		return
	}

	switch action.Kind {
	case SetStatus:
		_ = r.board.SetStatus(ctx, check.HypothesisID, action.NewStatus)
	case UpdateConfidence:
		lH, lNotH := hypothesis.StrengthToLikelihood(action.ConfidenceDelta, hypothesis.Experiment)
		_, _ = r.board.UpdateWithEvidence(ctx, check.HypothesisID, lH, lNotH)
	}
}
