package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tanuj-rai/matrixci/internal/core"
)

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database and makes sure the schema
// exists. The URL is a standard postgres connection string.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			branch      TEXT NOT NULL,
			state       TEXT NOT NULL,
			verdict     TEXT,
			succeeded   INT NOT NULL DEFAULT 0,
			failed      INT NOT NULL DEFAULT 0,
			cancelled   INT NOT NULL DEFAULT 0,
			skipped     INT NOT NULL DEFAULT 0,
			upload_err  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS job_results (
			run_id            TEXT NOT NULL REFERENCES runs(id),
			job_name          TEXT NOT NULL,
			category          TEXT NOT NULL,
			status            TEXT NOT NULL,
			cause             TEXT NOT NULL DEFAULT '',
			coverage_artifact TEXT NOT NULL DEFAULT '',
			report_artifact   TEXT NOT NULL DEFAULT '',
			log_path          TEXT NOT NULL DEFAULT '',
			log_digest        TEXT NOT NULL DEFAULT '',
			duration_ms       BIGINT NOT NULL DEFAULT 0,
			error             TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, job_name)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run Run) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO runs (id, branch, state, created_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Branch, string(run.State), run.CreatedAt,
	)
	return err
}

func (p *Postgres) MarkRunning(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE runs SET state = $2 WHERE id = $1`, id, string(RunRunning))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FinishRun(ctx context.Context, id string, report core.RunReport, uploadErr string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE runs
		SET state = $2, verdict = $3, succeeded = $4, failed = $5,
		    cancelled = $6, skipped = $7, upload_err = $8, finished_at = $9
		WHERE id = $1`,
		id, string(RunFinished), string(report.Verdict),
		report.Succeeded, report.Failed, report.Cancelled, report.Skipped,
		uploadErr, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	var state string
	var verdict *string
	var finishedAt *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT id, branch, state, verdict, succeeded, failed, cancelled,
		       skipped, upload_err, created_at, finished_at
		FROM runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.Branch, &state, &verdict, &run.Succeeded,
		&run.Failed, &run.Cancelled, &run.Skipped, &run.UploadErr,
		&run.CreatedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.State = RunState(state)
	if verdict != nil {
		run.Verdict = core.Verdict(*verdict)
	}
	if finishedAt != nil {
		run.FinishedAt = *finishedAt
	}
	return run, nil
}

func (p *Postgres) SaveJobResults(ctx context.Context, runID string, results []core.JobResult) error {
	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(`
			INSERT INTO job_results (run_id, job_name, category, status, cause,
				coverage_artifact, report_artifact, log_path, log_digest,
				duration_ms, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (run_id, job_name) DO UPDATE SET status = EXCLUDED.status`,
			runID, res.JobName, res.Category, string(res.Status), res.Cause,
			res.CoverageArtifact, res.ReportArtifact, res.LogPath, res.LogDigest,
			res.Duration.Milliseconds(), res.Err,
		)
	}
	return p.pool.SendBatch(ctx, batch).Close()
}

func (p *Postgres) JobResults(ctx context.Context, runID string) ([]core.JobResult, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `
		SELECT job_name, category, status, cause, coverage_artifact,
		       report_artifact, log_path, log_digest, duration_ms, error
		FROM job_results WHERE run_id = $1 ORDER BY job_name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []core.JobResult
	for rows.Next() {
		var res core.JobResult
		var status string
		var durationMs int64
		if err := rows.Scan(&res.JobName, &res.Category, &status, &res.Cause,
			&res.CoverageArtifact, &res.ReportArtifact, &res.LogPath,
			&res.LogDigest, &durationMs, &res.Err); err != nil {
			return nil, err
		}
		res.Status = core.Status(status)
		res.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, res)
	}
	return results, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
