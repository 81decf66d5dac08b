// Command forge is a thin CLI front end over the checkpoint and
// workflow kernels: flag parsing and wiring only, no business logic of
// its own (the actual propose -> mutate -> verify -> commit/rollback
// cycle lives in the workflow and checkpoint packages).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/oldnordic/forge/checkpoint"
	"github.com/oldnordic/forge/checkpoint/store"
	"github.com/oldnordic/forge/emit"
	"github.com/oldnordic/forge/workflow"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: forge <checkpoint|workflow|status> ...")
	}

	ctx := context.Background()
	emitter := emit.NewLogEmitter(slog.Default())

	switch args[0] {
	case "checkpoint":
		return runCheckpoint(ctx, emitter, args[1:])
	case "workflow":
		return runWorkflow(ctx, args[1:])
	case "status":
		return runStatus(ctx, emitter)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runStatus(ctx context.Context, emitter emit.Emitter) error {
	svc := checkpoint.NewService(store.NewMemStore(), emitter)
	metrics, err := svc.CollectMetrics(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ready: true, active_sessions: %d, total_checkpoints: %d\n",
		metrics.ActiveSessions, metrics.TotalCheckpoints)
	return nil
}

func runCheckpoint(ctx context.Context, emitter emit.Emitter, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: forge checkpoint <create|restore> ...")
	}

	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	dbPath := fs.String("db", "", "sqlite database path (default: in-memory)")
	session := fs.String("session", "", "session id (default: random)")
	message := fs.String("message", "", "checkpoint message")
	workingDir := fs.String("working-dir", "", "captured working directory")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	backing, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	svc := checkpoint.NewService(backing, emitter)

	sessionID := checkpoint.NewSessionID()
	if *session != "" {
		parsed, err := parseSessionID(*session)
		if err != nil {
			return err
		}
		sessionID = parsed
	}

	switch args[0] {
	case "create":
		cp, err := svc.Create(ctx, sessionID, *message, nil, checkpoint.Trigger{Kind: checkpoint.Manual},
			checkpoint.DebugStateSnapshot{WorkingDir: *workingDir})
		if err != nil {
			return err
		}
		return printJSON(cp)
	case "restore":
		raw := fs.Arg(0)
		if raw == "" {
			return fmt.Errorf("usage: forge checkpoint restore <checkpoint-id>")
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid checkpoint id %q: %w", raw, err)
		}
		mgr := checkpoint.NewManager(backing)
		state, err := mgr.Restore(ctx, checkpoint.ID(parsed))
		if err != nil {
			return err
		}
		return printJSON(state)
	default:
		return fmt.Errorf("unknown checkpoint subcommand %q", args[0])
	}
}

func runWorkflow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("workflow", flag.ExitOnError)
	file := fs.String("file", "", "path to a YAML workflow definition")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("usage: forge workflow -file <workflow.yaml>")
	}

	def, err := workflow.LoadYAMLFile(*file)
	if err != nil {
		return err
	}
	dag, err := def.ToDAG(nil)
	if err != nil {
		return err
	}

	report := workflow.Validate(dag)
	if !report.Valid {
		return fmt.Errorf("workflow %q is invalid: cycle=%v missing=%v", def.Name, report.CycleDetected, report.MissingDeps)
	}

	exec := workflow.NewExecutor(dag, workflow.DefaultTimeoutConfig())
	result, err := exec.Execute(ctx)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("workflow %q did not complete successfully", def.Name)
	}
	fmt.Printf("workflow %q completed: %d tasks\n", def.Name, len(result.Outcomes))
	return nil
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemStore(), nil
	}
	return store.NewSQLiteStore(path)
}

func parseSessionID(s string) (checkpoint.SessionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return checkpoint.SessionID{}, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return checkpoint.SessionID(id), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
