// Package store persists runs and their job results. The server uses
// the Postgres implementation when a database is configured and the
// in-memory one otherwise (and in tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tanuj-rai/matrixci/internal/core"
)

// ErrNotFound is returned for unknown run ids.
var ErrNotFound = errors.New("run not found")

// RunState tracks a run through its lifetime.
type RunState string

const (
	RunPending  RunState = "pending"
	RunRunning  RunState = "running"
	RunFinished RunState = "finished"
)

// Run is the persisted header of one run.
type Run struct {
	ID         string       `json:"id"`
	Branch     string       `json:"branch"`
	State      RunState     `json:"state"`
	Verdict    core.Verdict `json:"verdict,omitempty"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Cancelled  int          `json:"cancelled"`
	Skipped    int          `json:"skipped"`
	UploadErr  string       `json:"upload_error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`
}

// Store is the persistence surface the server needs. Implementations
// must be safe for concurrent use.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	MarkRunning(ctx context.Context, id string) error
	FinishRun(ctx context.Context, id string, report core.RunReport, uploadErr string) error
	GetRun(ctx context.Context, id string) (Run, error)
	SaveJobResults(ctx context.Context, runID string, results []core.JobResult) error
	JobResults(ctx context.Context, runID string) ([]core.JobResult, error)
	Ping(ctx context.Context) error
}
