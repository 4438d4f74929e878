package core

// Verdict is the final outcome of a whole run.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
)

// RunReport is the aggregated view of one run: every job record (the
// skipped ones included) plus the verdict derived from them.
type RunReport struct {
	Results []JobResult `json:"results"`
	Verdict Verdict     `json:"verdict"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

// Collect drains the dispatcher's result stream (the join barrier),
// folds in the skip-filter's records, and computes the verdict.
// The verdict is failure iff any job failed or was cancelled; skipped
// jobs never fail a run.
func Collect(results <-chan JobResult, skipped []JobResult) RunReport {
	report := RunReport{Verdict: VerdictSuccess}
	for res := range results {
		report.add(res)
	}
	for _, res := range skipped {
		report.add(res)
	}
	return report
}

// Aggregate is Collect for an already-materialized slice.
func Aggregate(results []JobResult) RunReport {
	report := RunReport{Verdict: VerdictSuccess}
	for _, res := range results {
		report.add(res)
	}
	return report
}

func (r *RunReport) add(res JobResult) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case StatusSuccess:
		r.Succeeded++
	case StatusFailure:
		r.Failed++
		r.Verdict = VerdictFailure
	case StatusCancelled:
		r.Cancelled++
		r.Verdict = VerdictFailure
	case StatusSkipped:
		r.Skipped++
	}
}

// ShouldUploadCoverage gates the coverage upload: only clean runs that
// asked for it upload coverage.
func (r RunReport) ShouldUploadCoverage(uploadToCodecov bool) bool {
	return uploadToCodecov && r.Verdict == VerdictSuccess
}

// ShouldUploadReports gates the failure-report upload: it fires only
// when something failed or was cancelled.
func (r RunReport) ShouldUploadReports() bool {
	return r.Verdict == VerdictFailure
}

// FailureArtifacts lists the report artifacts of failed and cancelled
// jobs, for the report uploader.
func (r RunReport) FailureArtifacts() []string {
	var artifacts []string
	for _, res := range r.Results {
		if (res.Status == StatusFailure || res.Status == StatusCancelled) && res.ReportArtifact != "" {
			artifacts = append(artifacts, res.ReportArtifact)
		}
	}
	return artifacts
}
