package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/queue"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Partitioned bool
}

// ReconcileGroup is one batch formed offline.
type ReconcileGroup struct {
	Color ir.Color `json:"color"`
	Dots  []ir.Dot `json:"dots"`
}

// ReconcileResult holds the offline grouping of a stream.
type ReconcileResult struct {
	Commits int              `json:"commits"`
	Skipped int              `json:"skipped"`
	Groups  []ReconcileGroup `json:"groups"`

	// Cycles lists the commits that depend on each other in a cycle.
	Cycles [][]ir.Dot `json:"cycles"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <stream.yaml>",
		Short: "Group a complete commit stream offline",
		Long: `Group every commit of a stream into batches without the online queue.

Commits that depend on each other, directly or through a cycle, end up in
the same batch, and batches are listed in dependency order. The result
matches what the engine delivers once every commit has arrived, so it is
useful to cross-check a run. Commits the stream's committed snapshot
already covers are skipped.

Examples:
  causeway reconcile ./stream.yaml
  causeway reconcile ./stream.yaml --partitioned --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Partitioned, "partitioned", false, "group non-conflicting tags separately")

	return cmd
}

func runReconcile(opts *ReconcileOptions, path string, cmd *cobra.Command) error {
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

	result := ReconcileResult{
		Commits: len(stream.Commits),
		Groups:  []ReconcileGroup{},
		Cycles:  [][]ir.Dot{},
	}
	snapshot := stream.Snapshot()
	classify := cfg.Classifier()

	units := make(map[ir.Color][]*queue.DeliveryUnit)
	for _, c := range stream.Records() {
		if snapshot != nil && snapshot.Contains(c.Dot) {
			result.Skipped++
			continue
		}
		color := classify(c.Message)
		units[color] = append(units[color], queue.NewUnitFromCommit(c))
	}

	for _, color := range []ir.Color{ir.ColorConflicting, ir.ColorNonConflicting} {
		formed, err := queue.FormBatches(units[color])
		if err != nil {
			failure := &CLIError{Code: "E_INVARIANT", Message: err.Error()}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result, failure)
			}
			return NewExitError(ExitFailure, failure.Message)
		}
		for _, u := range formed {
			result.Groups = append(result.Groups, ReconcileGroup{Color: color, Dots: u.Dots()})
		}
		result.Cycles = append(result.Cycles, queue.Cycles(units[color])...)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result, nil)
	}

	w := cmd.OutOrStdout()
	for i, g := range result.Groups {
		fmt.Fprintf(w, "  #%d %-15s %s\n", i+1, g.Color, formatDots(g.Dots))
	}
	for _, c := range result.Cycles {
		fmt.Fprintf(w, "  cycle %s\n", formatDots(c))
	}
	fmt.Fprintf(w, "\n%d commits, %d skipped, %d batches, %d cycles\n",
		result.Commits, result.Skipped, len(result.Groups), len(result.Cycles))
	return nil
}
