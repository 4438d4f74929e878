package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLineComposition(t *testing.T) {
	spec := JobSpec{
		Category:      "jax-tests",
		PythonVersion: "3.11",
		ShardIndex:    2,
		ShardCount:    6,
		Run:           "pytest tests/jax",
		Markers:       "jax and not slow",
		CoverageFlags: []string{"--cov=quantumlib", "--cov-report=xml"},
		ExtraArgs:     []string{"-W", "error"},
	}

	cmd := CommandLine(spec)
	assert.Contains(t, cmd, "pytest tests/jax")
	assert.Contains(t, cmd, `-m "jax and not slow"`)
	assert.Contains(t, cmd, "--cov=quantumlib --cov-report=xml")
	assert.Contains(t, cmd, "--splits=6")
	assert.Contains(t, cmd, "--group=2")
	assert.Contains(t, cmd, "--durations-path=durations/jax-tests-py3.11.json")
	assert.Contains(t, cmd, "--junit-xml="+spec.ReportPath())
	assert.Contains(t, cmd, "-W error")
}

func TestCommandLineUnshardedHasNoSplitFlags(t *testing.T) {
	cmd := CommandLine(JobSpec{Category: "core-tests", PythonVersion: "3.11", Run: "pytest"})
	assert.NotContains(t, cmd, "--splits")
	assert.NotContains(t, cmd, "--group")
}

func TestLocalExecutorRunsCommand(t *testing.T) {
	exec := NewLocalExecutor()
	spec := JobSpec{
		Category:      "smoke",
		PythonVersion: "3.11",
		Run:           "echo hello",
		Timeout:       10 * time.Second,
	}

	out, err := exec.Execute(context.Background(), spec)
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestLocalExecutorReportsFailure(t *testing.T) {
	exec := NewLocalExecutor()
	spec := JobSpec{Category: "smoke", PythonVersion: "3.11", Run: "exit 3 #", Timeout: 10 * time.Second}

	_, err := exec.Execute(context.Background(), spec)
	assert.Error(t, err)
}

func TestLocalExecutorTimeout(t *testing.T) {
	exec := NewLocalExecutor()
	spec := JobSpec{Category: "smoke", PythonVersion: "3.11", Run: "sleep 5 #", Timeout: 100 * time.Millisecond}

	start := time.Now()
	_, err := exec.Execute(context.Background(), spec)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}
