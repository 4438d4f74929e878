// Package report pushes run outcomes to the external collectors: the
// failure-report sink and the coverage service. The two have opposite
// error policies: report upload is best-effort, coverage upload is
// strict and can fail the run that triggered it.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Bundle is the failure-report payload: run metadata plus references
// to the report artifacts of the jobs that failed or were cancelled.
type Bundle struct {
	RunID     string    `json:"run_id"`
	Branch    string    `json:"branch"`
	Commit    string    `json:"commit,omitempty"`
	Verdict   string    `json:"verdict"`
	Artifacts []string  `json:"artifacts"`
	CreatedAt time.Time `json:"created_at"`
}

// Uploader posts failure-report bundles to the external collector.
type Uploader struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// UploaderFromEnv builds an uploader from the collector secrets. When
// the endpoint is unset, uploads are a configured no-op.
func UploaderFromEnv() *Uploader {
	return &Uploader{
		Endpoint: strings.TrimSpace(os.Getenv("MATRIXCI_COLLECTOR_URL")),
		APIKey:   strings.TrimSpace(os.Getenv("MATRIXCI_COLLECTOR_API_KEY")),
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload sends the bundle in a single call. Errors here are surfaced
// to the caller but must never change an already-computed verdict.
func (u *Uploader) Upload(ctx context.Context, bundle Bundle) error {
	if u.Endpoint == "" {
		return nil // collector not configured
	}

	body, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode report bundle: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if u.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.APIKey)
	}

	resp, err := u.client().Do(req)
	if err != nil {
		return fmt.Errorf("report collector unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("report collector rejected bundle: %s", resp.Status)
	}
	return nil
}

func (u *Uploader) client() *http.Client {
	if u.Client != nil {
		return u.Client
	}
	return http.DefaultClient
}
