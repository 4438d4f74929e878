package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanuj-rai/matrixci/internal/core"
	"github.com/tanuj-rai/matrixci/internal/store"
)

type stubExecutor struct {
	failCategory string
}

func (s stubExecutor) Execute(_ context.Context, spec core.JobSpec) (string, error) {
	if spec.Category == s.failCategory {
		return "boom", errors.New("tests failed")
	}
	return "ok", nil
}

func testAPI(t *testing.T, exec core.Executor) (*api, *store.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	runner := &core.Runner{Exec: exec, Logger: logger}
	matrix := &core.Matrix{Categories: []core.Category{
		{Name: "core-tests", Run: "pytest tests/core", PythonVersions: []string{"3.11"}, Shards: 2},
		{Name: "torch-tests", Run: "pytest tests/torch", PythonVersions: []string{"3.11"}},
	}}
	return newAPI(logger, st, runner, matrix), st
}

func submit(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func waitFinished(t *testing.T, st *store.Memory, runID string) store.Run {
	t.Helper()
	var run store.Run
	require.Eventually(t, func() bool {
		var err error
		run, err = st.GetRun(context.Background(), runID)
		return err == nil && run.State == store.RunFinished
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestSubmitRunHappyPath(t *testing.T) {
	a, st := testAPI(t, stubExecutor{})
	handler := a.routes()

	rec := submit(t, handler, `{"branch": "feature-x"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])

	run := waitFinished(t, st, resp["id"])
	assert.Equal(t, core.VerdictSuccess, run.Verdict)
	assert.Equal(t, "feature-x", run.Branch)
	assert.Equal(t, 3, run.Succeeded, "two core shards plus torch")

	// Job results are queryable.
	req := httptest.NewRequest(http.MethodGet, "/runs/"+resp["id"]+"/jobs", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var jobs struct {
		Results []core.JobResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs.Results, 3)
}

func TestSubmitRunFailingCategory(t *testing.T) {
	a, st := testAPI(t, stubExecutor{failCategory: "torch-tests"})

	rec := submit(t, a.routes(), `{}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	run := waitFinished(t, st, resp["id"])
	assert.Equal(t, core.VerdictFailure, run.Verdict)
	assert.Equal(t, 1, run.Failed)
}

func TestSubmitRunSkipList(t *testing.T) {
	a, st := testAPI(t, stubExecutor{})

	rec := submit(t, a.routes(), `{"lightened": true, "skip_list": ["torch-tests"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	run := waitFinished(t, st, resp["id"])
	assert.Equal(t, core.VerdictSuccess, run.Verdict, "skips never fail a run")
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 2, run.Succeeded)
}

func TestSubmitRunConfigErrorAbortsBeforeDispatch(t *testing.T) {
	a, _ := testAPI(t, stubExecutor{})

	rec := submit(t, a.routes(), `{"warning_level": "loud"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "warning_level")
}

func TestSubmitRunRejectsBadJSON(t *testing.T) {
	a, _ := testAPI(t, stubExecutor{})
	rec := submit(t, a.routes(), `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownRun(t *testing.T) {
	a, _ := testAPI(t, stubExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/runs/does-not-exist/jobs", nil)
	rec = httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	a, _ := testAPI(t, stubExecutor{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyLedgerWithoutLedger(t *testing.T) {
	a, _ := testAPI(t, stubExecutor{})
	req := httptest.NewRequest(http.MethodGet, "/ledger/verify", nil)
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
