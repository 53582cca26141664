package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/causeway/internal/engine"
	"github.com/roach88/causeway/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	RunID    string

	// Partitioned overrides the config when the flag is set.
	Partitioned bool
}

// RunResult summarizes one run.
type RunResult struct {
	RunID        string     `json:"run_id"`
	Commits      int        `json:"commits"`
	Skipped      int        `json:"skipped"`
	Batches      []ir.Batch `json:"batches"`
	PendingUnits int        `json:"pending_units"`
	PendingDots  int        `json:"pending_dots"`
	Resumed      bool       `json:"resumed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <stream.yaml>",
		Short: "Order a commit stream file",
		Long: `Feed a commit stream file through the delivery engine and report the
batches it delivered.

The stream's committed snapshot is the starting point. Without one, the
last checkpoint is used when checkpoints are configured, and commits it
already covers are skipped. With --db, batches are appended to the
SQLite delivery log; reusing --run-id continues that run's batch
numbering.

Exit codes:
  0 - Every commit was delivered
  1 - Delivery stopped on an invariant violation, or commits are still pending
  2 - Command error (invalid file, database or config)

Examples:
  causeway run ./stream.yaml
  causeway run ./stream.yaml --db ./causeway.db
  causeway run ./stream.yaml --config causeway.cue --partitioned --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite delivery log")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run ID to stamp on batches (default: new UUIDv7)")
	cmd.Flags().BoolVar(&opts.Partitioned, "partitioned", false, "route non-conflicting tags to the fast-path queue")

	return cmd
}

func runStream(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("partitioned") {
		cfg.Partitioned = opts.Partitioned
	}

	stream, err := LoadStream(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load stream", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	b, err := openBackends(opts.Database, cfg.Checkpoint)
	if err != nil {
		return err
	}
	defer b.close()

	result := RunResult{Commits: len(stream.Commits)}
	commits := stream.Records()
	snapshot := stream.Snapshot()
	if snapshot == nil {
		resumed, ok, err := b.resumeSnapshot(ctx)
		if err != nil {
			return err
		}
		if ok {
			snapshot = resumed
			result.Resumed = true
			commits = skipDelivered(commits, snapshot)
			result.Skipped = len(stream.Commits) - len(commits)
		} else {
			snapshot = ir.NewExceptionClock()
		}
	}

	r := engine.NewRunner(runIDs(opts.RunID), runnerOptions(cfg)...)
	result.RunID = r.RunID()

	mem := &engine.MemorySink{}
	dopts, err := b.delivererOptions(ctx, r.RunID(), cfg.Checkpoint.Interval)
	if err != nil {
		return err
	}
	d := engine.NewDeliverer(r.RunID(), b.sink(mem), dopts...)

	if err := r.Init(ctx, snapshot); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize runner", err)
	}

	pipeline := make(chan error, 1)
	go func() { pipeline <- engine.RunPipeline(ctx, r, d) }()

	for _, c := range commits {
		if err := r.Submit(ctx, c); err != nil {
			// The runner stopped early; its error is reported below.
			slog.Debug("submit stopped", "dot", c.Dot.String(), "error", err)
			break
		}
	}
	r.Stop()
	runErr := <-pipeline

	status := r.Pending()
	result.PendingUnits = status.PendingUnits
	result.PendingDots = status.PendingDots
	if b.log != nil {
		result.Batches, err = b.log.ReadBatches(context.WithoutCancel(ctx), r.RunID())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read delivery log", err)
		}
	} else {
		result.Batches = mem.Batches()
	}

	var failure *CLIError
	switch {
	case runErr != nil && engine.IsFatal(runErr):
		failure = &CLIError{Code: "E_INVARIANT", Message: runErr.Error()}
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return WrapExitError(ExitCommandError, "delivery failed", runErr)
	case result.PendingUnits > 0:
		failure = &CLIError{
			Code:    "E_STALLED",
			Message: fmt.Sprintf("%d units (%d commits) still pending", result.PendingUnits, result.PendingDots),
		}
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result, failure)
	}
	return outputRunText(cmd, result, failure)
}

// skipDelivered drops commits whose dot the snapshot already covers.
func skipDelivered(commits []ir.Commit, snapshot *ir.ExceptionClock) []ir.Commit {
	out := commits[:0:0]
	for _, c := range commits {
		if snapshot.Contains(c.Dot) {
			slog.Debug("skipping delivered commit", "dot", c.Dot.String())
			continue
		}
		out = append(out, c)
	}
	return out
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
// Uses the command's context if available (for testing).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func outputRunText(cmd *cobra.Command, result RunResult, failure *CLIError) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run %s\n", result.RunID)
	if result.Resumed {
		fmt.Fprintf(w, "Resumed from checkpoint, %d delivered commits skipped\n", result.Skipped)
	}
	for _, b := range result.Batches {
		fmt.Fprintf(w, "  #%d %-15s %s\n", b.Seq, b.Color, formatDots(b.Dots))
	}
	fmt.Fprintf(w, "\n%d commits, %d batches, %d units pending\n",
		result.Commits, len(result.Batches), result.PendingUnits)

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}
