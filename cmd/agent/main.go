package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tanuj-rai/matrixci/internal/core"
)

// The agent is a thin execution worker: it accepts one JobSpec per
// request, runs it locally and reports the outcome. All scheduling
// stays on the server side.

type runResponse struct {
	JobName string `json:"job_name"`
	Status  string `json:"status"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	exec := core.NewLocalExecutor()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/run", func(w http.ResponseWriter, req *http.Request) {
		var spec core.JobSpec
		if err := json.NewDecoder(req.Body).Decode(&spec); err != nil {
			http.Error(w, "invalid job spec", http.StatusBadRequest)
			return
		}
		if spec.Timeout <= 0 {
			spec.Timeout = core.DefaultJobTimeout
		}

		logger.Info("agent running job", "job", spec.Name(), "category", spec.Category)

		start := time.Now()
		output, err := exec.Execute(req.Context(), spec)

		resp := runResponse{
			JobName: spec.Name(),
			Status:  string(core.StatusSuccess),
			Output:  output,
		}
		if err != nil {
			resp.Status = string(core.StatusFailure)
			resp.Error = err.Error()
		}
		logger.Info("agent job done",
			"job", spec.Name(),
			"status", resp.Status,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	addr := os.Getenv("MATRIXCI_AGENT_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	logger.Info("agent listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("agent failed", "error", err)
		os.Exit(1)
	}
}
