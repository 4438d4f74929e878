package core

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state of one job instance.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// JobSpec is one concrete job instance produced by matrix expansion.
// It is structured data all the way down; nothing here is an
// interpolated string. Specs are never mutated after expansion.
type JobSpec struct {
	Category      string   `json:"category" yaml:"category"`
	Branch        string   `json:"branch" yaml:"branch"`
	PythonVersion string   `json:"python_version" yaml:"python_version"`
	ShardIndex    int      `json:"shard_index" yaml:"shard_index"` // 1-based; 0 when unsharded
	ShardCount    int      `json:"shard_count" yaml:"shard_count"` // 0 when unsharded
	Device        Device   `json:"device" yaml:"device"`
	RunnerClass   string   `json:"runner_class" yaml:"runner_class"`
	Run           string   `json:"run" yaml:"run"` // base test command for the category
	Markers       string   `json:"markers,omitempty" yaml:"markers,omitempty"`
	PackagesPre   []string `json:"packages_pre,omitempty" yaml:"packages_pre,omitempty"`
	PackagesPost  []string `json:"packages_post,omitempty" yaml:"packages_post,omitempty"`
	CoverageFlags []string `json:"coverage_flags,omitempty" yaml:"coverage_flags,omitempty"`
	ExtraArgs     []string `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`
	NamePrefix    string   `json:"name_prefix,omitempty" yaml:"name_prefix,omitempty"`
	NameSuffix    string   `json:"name_suffix,omitempty" yaml:"name_suffix,omitempty"`

	// RequirementsFile is the pinned-requirements file, set only on
	// scheduled runs and only for the first shard of a category.
	RequirementsFile string `json:"requirements_file,omitempty" yaml:"requirements_file,omitempty"`

	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Name is the human-readable job name, derived from category + axis
// values. Stable for a given spec.
func (s JobSpec) Name() string {
	var b strings.Builder
	b.WriteString(s.NamePrefix)
	b.WriteString(s.Category)
	b.WriteString(s.NameSuffix)
	b.WriteString(" (py" + s.PythonVersion)
	if s.ShardCount > 1 {
		fmt.Fprintf(&b, ", shard %d/%d", s.ShardIndex, s.ShardCount)
	}
	if s.Device.Name != "" {
		b.WriteString(", " + s.Device.Name)
		if s.Device.Shots != "" {
			b.WriteString("@" + s.Device.Shots)
		}
	}
	b.WriteString(")")
	return b.String()
}

// slug is the filesystem/artifact-safe form of the axis values.
func (s JobSpec) slug() string {
	parts := []string{s.Category, "py" + s.PythonVersion}
	if s.ShardCount > 1 {
		parts = append(parts, fmt.Sprintf("shard%d", s.ShardIndex))
	}
	if s.Device.Name != "" {
		parts = append(parts, strings.ReplaceAll(s.Device.Name, ".", "-"))
		if s.Device.Shots != "" {
			parts = append(parts, "shots"+s.Device.Shots)
		}
	}
	return strings.Join(parts, "-")
}

// CoverageArtifact is the deterministic coverage artifact name for this
// spec. The aggregator locates artifacts by recomputing this, so there
// is no lookup table anywhere.
func (s JobSpec) CoverageArtifact() string {
	return s.slug() + "-coverage.xml"
}

// ReportPath is the deterministic junit XML report path for this spec.
func (s JobSpec) ReportPath() string {
	return "reports/" + s.slug() + ".xml"
}

// DurationsFile is the per-category, per-version test durations file
// used to balance shards.
func (s JobSpec) DurationsFile() string {
	return fmt.Sprintf("durations/%s-py%s.json", s.Category, s.PythonVersion)
}

// Device is one device/shots axis value.
type Device struct {
	Name  string `json:"name" yaml:"name"`
	Shots string `json:"shots,omitempty" yaml:"shots,omitempty"`
}

// JobResult is the terminal record for one spec. Exactly one result
// exists per dispatched spec; skipped specs get a result with
// StatusSkipped and no artifacts.
type JobResult struct {
	JobName          string        `json:"job_name"`
	Category         string        `json:"category"`
	Status           Status        `json:"status"`
	Cause            string        `json:"cause,omitempty"` // e.g. "fail-fast", "skip-list"
	CoverageArtifact string        `json:"coverage_artifact,omitempty"`
	ReportArtifact   string        `json:"report_artifact,omitempty"`
	LogPath          string        `json:"log_path,omitempty"`
	LogDigest        string        `json:"log_digest,omitempty"`
	Duration         time.Duration `json:"duration"`
	Err              string        `json:"error,omitempty"`
}
