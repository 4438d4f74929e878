package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanuj-rai/matrixci/internal/core"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	run := Run{ID: "run-1", Branch: "master", State: RunPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, m.CreateRun(ctx, run))
	require.NoError(t, m.MarkRunning(ctx, "run-1"))

	got, err := m.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunRunning, got.State)

	report := core.RunReport{
		Verdict:   core.VerdictFailure,
		Succeeded: 2, Failed: 1, Cancelled: 1, Skipped: 3,
	}
	require.NoError(t, m.FinishRun(ctx, "run-1", report, "collector unreachable"))

	got, err = m.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunFinished, got.State)
	assert.Equal(t, core.VerdictFailure, got.Verdict)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 3, got.Skipped)
	assert.Equal(t, "collector unreachable", got.UploadErr)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestMemoryUnknownRun(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.MarkRunning(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, m.FinishRun(ctx, "nope", core.RunReport{}, ""), ErrNotFound)

	_, err = m.JobResults(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryJobResultsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateRun(ctx, Run{ID: "run-1"}))

	in := []core.JobResult{{JobName: "a", Status: core.StatusSuccess}}
	require.NoError(t, m.SaveJobResults(ctx, "run-1", in))
	in[0].JobName = "mutated"

	out, err := m.JobResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].JobName, "store must not alias caller slices")
}
