package report

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// CodecovUploader pushes coverage artifacts to the coverage service.
// Unlike the failure-report sink this one is strict: an upload error
// fails the run that produced the coverage.
type CodecovUploader struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

// CodecovFromEnv reads the coverage service settings. The token is the
// only secret; it is passed through opaquely.
func CodecovFromEnv() *CodecovUploader {
	endpoint := strings.TrimSpace(os.Getenv("MATRIXCI_CODECOV_URL"))
	if endpoint == "" {
		endpoint = "https://codecov.io/upload/v2"
	}
	return &CodecovUploader{
		Endpoint: endpoint,
		Token:    strings.TrimSpace(os.Getenv("MATRIXCI_CODECOV_TOKEN")),
		Client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// UploadFile sends one coverage artifact. Callers treat any error as a
// run failure (strict-upload policy).
func (u *CodecovUploader) UploadFile(ctx context.Context, runID, branch, artifact string, contents []byte) error {
	q := url.Values{}
	q.Set("branch", branch)
	q.Set("build", runID)
	q.Set("name", artifact)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint+"?"+q.Encode(), bytes.NewReader(contents))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if u.Token != "" {
		req.Header.Set("X-Upload-Token", u.Token)
	}

	resp, err := u.client().Do(req)
	if err != nil {
		return fmt.Errorf("codecov unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("codecov rejected %s: %s", artifact, resp.Status)
	}
	return nil
}

func (u *CodecovUploader) client() *http.Client {
	if u.Client != nil {
		return u.Client
	}
	return http.DefaultClient
}
