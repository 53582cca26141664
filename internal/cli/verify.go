package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// VerifyRunResult holds the verification result for a single run.
type VerifyRunResult struct {
	RunID   string   `json:"run_id"`
	Batches int      `json:"batches"`
	Dots    int      `json:"dots"`
	Valid   bool     `json:"valid"`
	Issues  []string `json:"issues,omitempty"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Runs      []VerifyRunResult `json:"runs"`
	TotalRuns int               `json:"total_runs"`
	AllValid  bool              `json:"all_valid"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-read the delivery log and check its integrity",
		Long: `Re-read every batch in the delivery log and check it.

For each run:
- batch seqs are contiguous from 1
- every stored digest matches the digest recomputed from dots and messages
- dots within a batch are in (replica, seq) order
- no dot is delivered twice

Exit codes:
  0 - Every run is intact
  1 - One or more runs have issues
  2 - Command error (database not found, etc.)

Examples:
  causeway verify --db ./causeway.db
  causeway verify --db ./causeway.db --run 0190f3e2-...
  causeway verify --db ./causeway.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite delivery log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "verify specific run only")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openLog(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.RunID)
		}
	}

	result := VerifyResult{
		Runs:      make([]VerifyRunResult, 0, len(runIDs)),
		TotalRuns: len(runIDs),
		AllValid:  true,
	}

	if len(runIDs) == 0 {
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), result, nil)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
		return nil
	}

	for _, id := range runIDs {
		runResult, err := verifyRun(ctx, st, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to verify run %s", id), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Valid {
			result.AllValid = false
		}
	}

	var failure *CLIError
	if !result.AllValid {
		failure = &CLIError{
			Code:    "E_LOG_CORRUPT",
			Message: "delivery log verification failed",
		}
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result, failure)
	}
	return outputVerifyText(cmd, result, failure)
}

// verifyRun reads one run's batches and reports every inconsistency found.
func verifyRun(ctx context.Context, st *store.Store, runID string) (VerifyRunResult, error) {
	batches, err := st.ReadBatches(ctx, runID)
	if err != nil {
		return VerifyRunResult{}, err
	}

	res := VerifyRunResult{RunID: runID, Batches: len(batches)}
	if len(batches) == 0 {
		res.Issues = append(res.Issues, "run has no batches")
	}

	seen := make(map[ir.Dot]int64)
	for i, b := range batches {
		res.Dots += b.Size()

		if want := int64(i + 1); b.Seq != want {
			res.Issues = append(res.Issues, fmt.Sprintf("batch %d: expected seq %d", b.Seq, want))
		}

		digest, err := ir.BatchDigest(b.Dots, b.Messages)
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("batch %d: %v", b.Seq, err))
		} else if digest != b.Digest {
			res.Issues = append(res.Issues, fmt.Sprintf("batch %d: digest mismatch", b.Seq))
		}

		for j, d := range b.Dots {
			if j > 0 && !b.Dots[j-1].Less(d) {
				res.Issues = append(res.Issues, fmt.Sprintf("batch %d: dot %s out of order", b.Seq, d))
			}
			if prev, ok := seen[d]; ok {
				res.Issues = append(res.Issues, fmt.Sprintf("batch %d: dot %s already delivered in batch %d", b.Seq, d, prev))
				continue
			}
			seen[d] = b.Seq
		}
	}

	res.Valid = len(res.Issues) == 0
	return res, nil
}

// outputVerifyText outputs the verification result as text.
func outputVerifyText(cmd *cobra.Command, result VerifyResult, failure *CLIError) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Verified %d run(s)\n\n", result.TotalRuns)
	for _, r := range result.Runs {
		status := "✓"
		if !r.Valid {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s (%d batches, %d dots)\n", status, r.RunID, r.Batches, r.Dots)
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  %s\n", issue)
		}
	}
	fmt.Fprintln(w)

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	fmt.Fprintln(w, "✓ Delivery log intact")
	return nil
}
