package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerdictRules(t *testing.T) {
	tests := []struct {
		name    string
		results []JobResult
		want    Verdict
	}{
		{
			name:    "all success",
			results: []JobResult{{Status: StatusSuccess}, {Status: StatusSuccess}},
			want:    VerdictSuccess,
		},
		{
			name:    "one failure",
			results: []JobResult{{Status: StatusSuccess}, {Status: StatusFailure}},
			want:    VerdictFailure,
		},
		{
			name:    "one cancellation",
			results: []JobResult{{Status: StatusSuccess}, {Status: StatusCancelled}},
			want:    VerdictFailure,
		},
		{
			name:    "skips never fail a run",
			results: []JobResult{{Status: StatusSuccess}, {Status: StatusSkipped}, {Status: StatusSkipped}},
			want:    VerdictSuccess,
		},
		{
			name:    "empty run",
			results: nil,
			want:    VerdictSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Aggregate(tt.results)
			assert.Equal(t, tt.want, rep.Verdict)
		})
	}
}

func TestCollectJoinsStreamAndSkipped(t *testing.T) {
	ch := make(chan JobResult, 2)
	ch <- JobResult{JobName: "a", Status: StatusSuccess}
	ch <- JobResult{JobName: "b", Status: StatusFailure}
	close(ch)

	rep := Collect(ch, []JobResult{{JobName: "c", Status: StatusSkipped}})
	assert.Len(t, rep.Results, 3)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, VerdictFailure, rep.Verdict)
}

func TestUploadGating(t *testing.T) {
	clean := Aggregate([]JobResult{{Status: StatusSuccess}})
	assert.True(t, clean.ShouldUploadCoverage(true))
	assert.False(t, clean.ShouldUploadCoverage(false), "upload toggle off")
	assert.False(t, clean.ShouldUploadReports())

	failed := Aggregate([]JobResult{{Status: StatusFailure}})
	assert.False(t, failed.ShouldUploadCoverage(true), "coverage only on clean runs")
	assert.True(t, failed.ShouldUploadReports())

	cancelled := Aggregate([]JobResult{{Status: StatusCancelled}})
	assert.False(t, cancelled.ShouldUploadCoverage(true))
	assert.True(t, cancelled.ShouldUploadReports(), "cancellations count as failures for reporting")
}

func TestFailureArtifacts(t *testing.T) {
	rep := Aggregate([]JobResult{
		{Status: StatusSuccess, ReportArtifact: "reports/ok.xml"},
		{Status: StatusFailure, ReportArtifact: "reports/bad.xml"},
		{Status: StatusCancelled, ReportArtifact: "reports/cut.xml"},
		{Status: StatusCancelled}, // never started, no artifact
	})

	assert.Equal(t, []string{"reports/bad.xml", "reports/cut.xml"}, rep.FailureArtifacts())
}
