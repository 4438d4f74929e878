package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tanuj-rai/matrixci/internal/config"
	"github.com/tanuj-rai/matrixci/internal/core"
	"github.com/tanuj-rai/matrixci/internal/store"
)

type api struct {
	logger *slog.Logger
	store  store.Store
	runner *core.Runner
	matrix *core.Matrix
}

func newAPI(logger *slog.Logger, st store.Store, runner *core.Runner, matrix *core.Matrix) *api {
	return &api{logger: logger, store: st, runner: runner, matrix: matrix}
}

func (a *api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/ledger/verify", a.handleVerifyLedger)
	r.Post("/runs", a.handleSubmitRun)
	r.Get("/runs/{id}", a.handleGetRun)
	r.Get("/runs/{id}/jobs", a.handleGetRunJobs)
	return r
}

// submitRequest is the POST /runs body. Pointer fields distinguish
// "not provided" from an explicit false.
type submitRequest struct {
	Branch          string   `json:"branch"`
	JobNamePrefix   string   `json:"job_name_prefix"`
	JobNameSuffix   string   `json:"job_name_suffix"`
	CoverageFlags   []string `json:"coverage_flags"`
	ExtraPytestArgs []string `json:"extra_pytest_args"`
	ExtraPackages   []string `json:"extra_packages"`
	SkipList        []string `json:"skip_list"`
	WarningLevel    string   `json:"warning_level"`
	Lightened       bool     `json:"lightened"`
	UseLargeRunner  bool     `json:"use_large_runner"`
	Scheduled       bool     `json:"scheduled"`
	UploadCodecov   *bool    `json:"upload_to_codecov"`
	FailFast        *bool    `json:"fail_fast"`
}

func (req submitRequest) overrides() config.Overrides {
	ov := config.Overrides{
		Branch:          req.Branch,
		JobNamePrefix:   req.JobNamePrefix,
		JobNameSuffix:   req.JobNameSuffix,
		CoverageFlags:   req.CoverageFlags,
		ExtraPytestArgs: req.ExtraPytestArgs,
		ExtraPackages:   req.ExtraPackages,
		SkipList:        req.SkipList,
		WarningLevel:    req.WarningLevel,
		Lightened:       req.Lightened,
		UseLargeRunner:  req.UseLargeRunner,
		Scheduled:       req.Scheduled,
	}
	if req.UploadCodecov != nil {
		ov.UploadCodecov = *req.UploadCodecov
		ov.UploadSet = true
	}
	if req.FailFast != nil {
		ov.FailFast = *req.FailFast
		ov.FailFastSet = true
	}
	return ov
}

// POST /runs: resolve the configuration, persist the run header and
// dispatch asynchronously. Config errors abort before dispatch.
func (a *api) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := config.Resolve(req.overrides())
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.NewString()
	run := store.Run{
		ID:        runID,
		Branch:    cfg.Branch,
		State:     store.RunPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateRun(r.Context(), run); err != nil {
		a.logger.Error("cannot persist run", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot persist run")
		return
	}

	go a.executeRun(runID, cfg)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":    runID,
		"state": string(store.RunPending),
	})
}

// executeRun drives one run to completion in the background. The
// server's shutdown does not cancel in-flight runs on purpose; jobs
// finish or time out on their own.
func (a *api) executeRun(runID string, cfg config.RunConfig) {
	ctx := context.Background()
	if err := a.store.MarkRunning(ctx, runID); err != nil {
		a.logger.Error("cannot mark run running", "run_id", runID, "error", err)
	}

	rep, uploadErr := a.runner.RunMatrix(ctx, runID, cfg, a.matrix)

	if err := a.store.SaveJobResults(ctx, runID, rep.Results); err != nil {
		a.logger.Error("cannot persist job results", "run_id", runID, "error", err)
	}
	if err := a.store.FinishRun(ctx, runID, rep, uploadErr); err != nil {
		a.logger.Error("cannot finish run", "run_id", runID, "error", err)
	}
}

// GET /runs/{id}
func (a *api) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GET /runs/{id}/jobs
func (a *api) handleGetRunJobs(w http.ResponseWriter, r *http.Request) {
	results, err := a.store.JobResults(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot load job results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GET /ledger/verify
func (a *api) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	if a.runner.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "run history ledger not configured")
		return
	}
	if err := a.runner.Ledger.VerifyChain(); err != nil {
		writeError(w, http.StatusInternalServerError, "ledger verification failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /healthz
func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
