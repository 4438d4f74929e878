package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig holds the S3-compatible store settings for run
// artifacts (coverage files, junit reports).
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// ObjectStoreConfigFromEnv reads the artifact store settings from the
// environment, with local-dev defaults.
func ObjectStoreConfigFromEnv() (ObjectStoreConfig, error) {
	cfg := ObjectStoreConfig{
		Endpoint:  envOr("MATRIXCI_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: envOr("MATRIXCI_MINIO_ACCESS_KEY", "matrixci"),
		SecretKey: envOr("MATRIXCI_MINIO_SECRET_KEY", "matrixciminio"),
		Region:    envOr("MATRIXCI_MINIO_REGION", "us-east-1"),
		UseSSL:    os.Getenv("MATRIXCI_MINIO_USE_SSL") == "true",
		Bucket:    envOr("MATRIXCI_MINIO_BUCKET", "run-artifacts"),
	}
	if err := cfg.Validate(); err != nil {
		return ObjectStoreConfig{}, err
	}
	return cfg, nil
}

func (c ObjectStoreConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// ObjectStore pushes run artifacts to an S3-compatible bucket under
// deterministic keys: runs/<run-id>/<artifact-name>.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the artifact bucket if it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket check: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// ObjectKey is the deterministic location of one artifact of one run.
func ObjectKey(runID, artifact string) string {
	return "runs/" + runID + "/" + artifact
}

// PutArtifact uploads a local file as a run artifact.
func (s *ObjectStore) PutArtifact(ctx context.Context, runID, artifact, localPath string) error {
	key := ObjectKey(runID, artifact)
	contentType := "application/octet-stream"
	if filepath.Ext(localPath) == ".xml" {
		contentType = "text/xml"
	}
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Ping is the readiness probe for the artifact store.
func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
