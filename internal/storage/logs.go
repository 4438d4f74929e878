package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tanuj-rai/matrixci/pkg/digest"
)

// LogStorage writes per-job output logs under a base directory.
type LogStorage struct {
	BaseDir string
}

// NewLogStorage creates a log storage handler rooted at baseDir.
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveLog writes one job's output and returns the file path plus its
// sha256 digest. Filenames carry a timestamp so reruns of the same job
// never clobber each other.
func (ls *LogStorage) SaveLog(category, jobSlug, output string) (path, sum string, err error) {
	if err := os.MkdirAll(filepath.Join(ls.BaseDir, category), 0o755); err != nil {
		return "", "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.log", sanitize(jobSlug), timestamp)
	path = filepath.Join(ls.BaseDir, category, filename)

	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", "", err
	}
	return path, digest.String(output), nil
}

// sanitize strips characters that do not belong in a filename.
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "job"
	}
	return string(clean)
}
