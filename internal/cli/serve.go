package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/causeway/internal/api"
	"github.com/roach88/causeway/internal/engine"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
	RunID    string

	// ready, if set, receives the listener address once the server
	// accepts connections (for testing).
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the delivery engine over HTTP",
		Long: `Start a runner and expose it over HTTP.

Routes:
  GET  /health                liveness
  POST /init                  committed snapshot
  POST /commits               commit notifications
  GET  /status                runner status
  GET  /runs/{id}/batches     delivered batches (requires --db)

When a checkpoint exists the runner is initialized from it at startup and
POST /init is rejected. Ctrl-C stops accepting requests, drains queued
commits and saves a final checkpoint.

Examples:
  causeway serve --db ./causeway.db
  causeway serve --addr :9090 --config causeway.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite delivery log")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default: config http_addr)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run ID to stamp on batches (default: new UUIDv7)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	addr := cfg.HTTPAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	b, err := openBackends(opts.Database, cfg.Checkpoint)
	if err != nil {
		return err
	}
	defer b.close()

	r := engine.NewRunner(runIDs(opts.RunID), runnerOptions(cfg)...)
	dopts, err := b.delivererOptions(ctx, r.RunID(), cfg.Checkpoint.Interval)
	if err != nil {
		return err
	}
	d := engine.NewDeliverer(r.RunID(), b.sink(&engine.MemorySink{}), dopts...)

	snapshot, ok, err := b.resumeSnapshot(ctx)
	if err != nil {
		return err
	}
	if ok {
		if err := r.Init(ctx, snapshot); err != nil {
			return WrapExitError(ExitCommandError, "failed to initialize runner", err)
		}
		slog.Info("initialized from checkpoint", "run_id", r.RunID(), "snapshot", snapshot.String())
	}

	var serverOpts []api.ServerOption
	if b.log != nil {
		serverOpts = append(serverOpts, api.WithBatchReader(b.log))
	}
	server := &http.Server{
		Handler:           api.NewServer(r, serverOpts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	// The pipeline outlives ctx so queued commits drain after a signal.
	pipeline := make(chan error, 1)
	go func() { pipeline <- engine.RunPipeline(context.WithoutCancel(ctx), r, d) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ln) }()

	slog.Info("serving", "addr", ln.Addr().String(), "run_id", r.RunID())
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s listening on %s\n", r.RunID(), ln.Addr())
	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down", "run_id", r.RunID())
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitCommandError, "server failed", err)
		}
	case err := <-pipeline:
		// The runner stopped on its own: an invariant violation or a sink failure
		_ = server.Close()
		return WrapExitError(ExitFailure, "delivery stopped", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}

	r.Stop()
	if err := <-pipeline; err != nil && runErr == nil {
		runErr = WrapExitError(ExitFailure, "delivery stopped", err)
	}
	slog.Info("stopped", "run_id", r.RunID(), "delivered", d.Count())
	return runErr
}
