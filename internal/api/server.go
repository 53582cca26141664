package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/causeway/internal/engine"
	"github.com/roach88/causeway/internal/ir"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// BatchReader reads a run's delivered batches. Implemented by store.Store.
type BatchReader interface {
	ReadBatches(ctx context.Context, runID string) ([]ir.Batch, error)
}

// ServerOption configures NewServer.
type ServerOption func(*server)

// WithBatchReader enables GET /runs/{runID}/batches.
func WithBatchReader(b BatchReader) ServerOption {
	return func(s *server) {
		s.batches = b
	}
}

type server struct {
	runner  *engine.Runner
	batches BatchReader
}

// NewServer wires the runner's handlers into a router and exposes a health check.
func NewServer(runner *engine.Runner, opts ...ServerOption) http.Handler {
	s := &server{runner: runner}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/init", s.handleInit)
	r.Post("/commits", s.handleCommits)
	r.Get("/status", s.handleStatus)
	r.Get("/runs/{runID}/batches", s.handleBatches)

	return r
}

func (s *server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snapshot, err := req.Snapshot()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.runner.Init(r.Context(), snapshot); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.runner.Pending())
}

func (s *server) handleCommits(w http.ResponseWriter, r *http.Request) {
	var req CommitsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Validate the whole request before enqueueing any of it.
	commits := make([]ir.Commit, len(req.Commits))
	for i, c := range req.Commits {
		commit, err := c.Commit()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("commits[%d]: %w", i, err))
			return
		}
		commits[i] = commit
	}

	for i, c := range commits {
		if err := s.runner.Submit(r.Context(), c); err != nil {
			slog.Warn("commit submission interrupted",
				"dot", c.Dot.String(),
				"accepted", i,
				"error", err,
			)
			writeJSON(w, statusFor(err), struct {
				ErrorResponse
				CommitsResponse
			}{ErrorResponse{err.Error()}, CommitsResponse{i}})
			return
		}
	}
	writeJSON(w, http.StatusAccepted, CommitsResponse{Accepted: len(commits)})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Pending())
}

func (s *server) handleBatches(w http.ResponseWriter, r *http.Request) {
	if s.batches == nil {
		writeError(w, http.StatusNotFound, errors.New("no batch store configured"))
		return
	}
	runID := chi.URLParam(r, "runID")
	batches, err := s.batches.ReadBatches(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrNilSnapshot):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
