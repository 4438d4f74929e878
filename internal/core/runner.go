package core

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"log/slog"
	"os"
	"sort"

	"github.com/tanuj-rai/matrixci/internal/config"
	"github.com/tanuj-rai/matrixci/internal/history"
	"github.com/tanuj-rai/matrixci/internal/report"
	"github.com/tanuj-rai/matrixci/internal/storage"
	"github.com/tanuj-rai/matrixci/pkg/digest"
)

// Runner ties together expansion, skip filtering, dispatch,
// aggregation, the uploaders and the run-history ledger.
type Runner struct {
	Exec      Executor
	Logs      *storage.LogStorage
	Artifacts *storage.ObjectStore     // optional
	Reports   *report.Uploader         // optional
	Codecov   *report.CodecovUploader  // optional
	Ledger    *history.Ledger          // optional
	LedgerKey ed25519.PrivateKey
	LedgerPub ed25519.PublicKey
	Logger    *slog.Logger
}

// NewRunner builds a local runner: shell executor, logs under ./logs,
// ledger at ./history.jsonl, uploaders from the environment.
func NewRunner(logger *slog.Logger) *Runner {
	r := &Runner{
		Exec:    NewLocalExecutor(),
		Logs:    storage.NewLogStorage("./logs"),
		Reports: report.UploaderFromEnv(),
		Codecov: report.CodecovFromEnv(),
		Logger:  logger,
	}

	ledger, err := history.OpenLedger("./history.jsonl")
	if err != nil {
		logger.Warn("cannot open run history ledger", "error", err)
		return r
	}
	pub, priv, err := history.EnsureKeyPair("./keys/history.pub", "./keys/history.priv")
	if err != nil {
		logger.Warn("cannot init ledger signing keys", "error", err)
		return r
	}
	r.Ledger = ledger
	r.LedgerKey = priv
	r.LedgerPub = pub
	return r
}

// sinkAdapter lets the dispatcher save job output through LogStorage
// without the storage package knowing about job specs.
type sinkAdapter struct {
	logs *storage.LogStorage
}

func (a sinkAdapter) Save(spec JobSpec, output string) (string, string, error) {
	return a.logs.SaveLog(spec.Category, spec.Name(), output)
}

// RunMatrix executes one full run and returns the aggregated report
// plus any upload error (which never flips a failure verdict back to
// success, and per the strict coverage policy can flip a success to
// failure).
func (r *Runner) RunMatrix(ctx context.Context, runID string, cfg config.RunConfig, m *Matrix) (RunReport, string) {
	specs := Expand(cfg, m)
	kept, skipped := FilterSkipped(cfg, specs)

	r.Logger.Info("run starting",
		"run_id", runID,
		"branch", cfg.Branch,
		"lightened", cfg.Lightened,
		"jobs", len(kept),
		"skipped", len(skipped),
	)

	caps := config.Table[int]{"default": DefaultMaxParallel}
	for _, cat := range m.Categories {
		if cat.MaxParallel > 0 {
			caps[cat.Name] = cat.MaxParallel
		}
	}

	var sink OutputSink
	if r.Logs != nil {
		sink = sinkAdapter{logs: r.Logs}
	}
	dispatcher := NewDispatcher(r.Exec, sink, caps, cfg.FailFast)

	results := dispatcher.Run(ctx, kept)
	rep := Collect(results, skipped)
	sort.Slice(rep.Results, func(i, j int) bool {
		return rep.Results[i].JobName < rep.Results[j].JobName
	})

	uploadErr := r.upload(ctx, runID, cfg, &rep)

	r.appendHistory(runID, cfg, rep)

	r.Logger.Info("run finished",
		"run_id", runID,
		"verdict", rep.Verdict,
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"cancelled", rep.Cancelled,
		"skipped", rep.Skipped,
	)
	return rep, uploadErr
}

// upload applies the gating rules: report bundle on failure (best
// effort), coverage on clean runs that asked for it (strict).
func (r *Runner) upload(ctx context.Context, runID string, cfg config.RunConfig, rep *RunReport) string {
	if rep.ShouldUploadReports() && r.Reports != nil {
		bundle := report.Bundle{
			RunID:     runID,
			Branch:    cfg.Branch,
			Verdict:   string(rep.Verdict),
			Artifacts: rep.FailureArtifacts(),
		}
		if err := r.Reports.Upload(ctx, bundle); err != nil {
			// Best-effort: surfaced, never changes the verdict.
			r.Logger.Warn("report upload failed", "run_id", runID, "error", err)
			return err.Error()
		}
		return ""
	}

	if rep.ShouldUploadCoverage(cfg.UploadCodecov) && r.Codecov != nil {
		for _, res := range rep.Results {
			if res.Status != StatusSuccess || res.CoverageArtifact == "" {
				continue
			}
			contents, err := os.ReadFile(res.CoverageArtifact)
			if err != nil {
				continue // job produced no coverage file
			}
			if err := r.Codecov.UploadFile(ctx, runID, cfg.Branch, res.CoverageArtifact, contents); err != nil {
				// Strict policy: a coverage upload error fails the run.
				r.Logger.Error("coverage upload failed", "run_id", runID, "error", err)
				rep.Verdict = VerdictFailure
				return err.Error()
			}
			if r.Artifacts != nil {
				if err := r.Artifacts.PutArtifact(ctx, runID, res.CoverageArtifact, res.CoverageArtifact); err != nil {
					r.Logger.Warn("artifact store push failed", "run_id", runID, "error", err)
				}
			}
		}
	}
	return ""
}

func (r *Runner) appendHistory(runID string, cfg config.RunConfig, rep RunReport) {
	if r.Ledger == nil {
		return
	}
	serialized, err := json.Marshal(rep)
	if err != nil {
		r.Logger.Warn("cannot serialize report for ledger", "error", err)
		return
	}
	entry, err := history.NewEntry(
		r.Ledger.NextIndex(), runID, cfg.Branch, string(rep.Verdict),
		rep.Succeeded, rep.Failed, rep.Cancelled, rep.Skipped,
		digest.Bytes(serialized), r.Ledger.LastHash(),
	)
	if err != nil {
		r.Logger.Warn("cannot create ledger entry", "error", err)
		return
	}
	if err := r.Ledger.Append(entry, r.LedgerKey, r.LedgerPub); err != nil {
		r.Logger.Warn("cannot append ledger entry", "error", err)
	}
}
