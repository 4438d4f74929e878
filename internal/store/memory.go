package store

import (
	"context"
	"sync"
	"time"

	"github.com/tanuj-rai/matrixci/internal/core"
)

// Memory is the in-process Store used without a database.
type Memory struct {
	mu      sync.RWMutex
	runs    map[string]Run
	results map[string][]core.JobResult
}

func NewMemory() *Memory {
	return &Memory{
		runs:    make(map[string]Run),
		results: make(map[string][]core.JobResult),
	}
}

func (m *Memory) CreateRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) MarkRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.State = RunRunning
	m.runs[id] = run
	return nil
}

func (m *Memory) FinishRun(_ context.Context, id string, report core.RunReport, uploadErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.State = RunFinished
	run.Verdict = report.Verdict
	run.Succeeded = report.Succeeded
	run.Failed = report.Failed
	run.Cancelled = report.Cancelled
	run.Skipped = report.Skipped
	run.UploadErr = uploadErr
	run.FinishedAt = time.Now().UTC()
	m.runs[id] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

func (m *Memory) SaveJobResults(_ context.Context, runID string, results []core.JobResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[runID] = append([]core.JobResult(nil), results...)
	return nil
}

func (m *Memory) JobResults(_ context.Context, runID string) ([]core.JobResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	return append([]core.JobResult(nil), m.results[runID]...), nil
}

func (m *Memory) Ping(context.Context) error { return nil }
