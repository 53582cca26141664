package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show one run's batches
}

// TraceResult holds the batches of one run.
type TraceResult struct {
	RunID   string     `json:"run_id"`
	Batches []ir.Batch `json:"batches"`
	Stats   TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	Batches        int `json:"batches"`
	Dots           int `json:"dots"`
	Conflicting    int `json:"conflicting"`
	NonConflicting int `json:"non_conflicting"`
	LargestBatch   int `json:"largest_batch"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show delivered batches from the delivery log",
		Long: `Show what the delivery log recorded.

Without --run, lists every run with its batch and dot counts. With --run,
prints that run's batches in delivery order.

Examples:
  causeway trace --db ./causeway.db
  causeway trace --db ./causeway.db --run 0190f3e2-...
  causeway trace --db ./causeway.db --run 0190f3e2-... --verbose --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite delivery log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openLog(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), runs, nil)
		}
		return outputRunsText(cmd, runs)
	}

	batches, err := st.ReadBatches(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read batches", err)
	}

	result := TraceResult{
		RunID:   opts.RunID,
		Batches: batches,
		Stats:   traceStats(batches),
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result, nil)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// openLog opens an existing delivery log. A missing file is a command
// error rather than a new empty database.
func openLog(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func traceStats(batches []ir.Batch) TraceStats {
	stats := TraceStats{Batches: len(batches)}
	for _, b := range batches {
		stats.Dots += b.Size()
		if b.Size() > stats.LargestBatch {
			stats.LargestBatch = b.Size()
		}
		if b.Color == ir.ColorNonConflicting {
			stats.NonConflicting++
		} else {
			stats.Conflicting++
		}
	}
	return stats
}

func outputRunsText(cmd *cobra.Command, runs []store.RunSummary) error {
	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "%-40s %8s %8s\n", "RUN", "BATCHES", "DOTS")
	for _, r := range runs {
		fmt.Fprintf(w, "%-40s %8d %8d\n", r.RunID, r.Batches, r.Dots)
	}
	return nil
}

// outputTraceText outputs one run's batches as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Batches ===")
	if len(result.Batches) == 0 {
		fmt.Fprintln(w, "  (no batches)")
	}
	for _, b := range result.Batches {
		fmt.Fprintf(w, "  #%d %-15s %s\n", b.Seq, b.Color, formatDots(b.Dots))
		if verbose {
			fmt.Fprintf(w, "       Digest: %s\n", truncateID(b.Digest))
			for i, m := range b.Messages {
				fmt.Fprintf(w, "       %s %s %q\n", b.Dots[i], m.Tag, m.Payload)
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Batches:         %d\n", result.Stats.Batches)
	fmt.Fprintf(w, "  Dots:            %d\n", result.Stats.Dots)
	fmt.Fprintf(w, "  Conflicting:     %d\n", result.Stats.Conflicting)
	fmt.Fprintf(w, "  Non-conflicting: %d\n", result.Stats.NonConflicting)
	fmt.Fprintf(w, "  Largest batch:   %d\n", result.Stats.LargestBatch)

	return nil
}

// formatDots renders dots as "{(0,1) (1,1)}".
func formatDots(dots []ir.Dot) string {
	parts := make([]string, len(dots))
	for i, d := range dots {
		parts[i] = d.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// truncateID shortens a digest for display.
func truncateID(id string) string {
	if len(id) > 16 {
		return id[:16] + "..."
	}
	return id
}
