// Package config resolves a run configuration from caller overrides,
// environment and built-in defaults, with an explicit priority order:
// request overrides > environment > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Warning levels accepted for a run. "error" promotes warnings to errors,
// which also collapses the python-version matrix to a single version.
const (
	WarnDefault = "default"
	WarnError   = "error"
)

// DefaultPythonVersion is the version every run mode can fall back to.
const DefaultPythonVersion = "3.11"

// DefaultPythonVersions is the full matrix used by non-lightened runs.
var DefaultPythonVersions = []string{"3.11", "3.12", "3.13"}

// ConfigError reports an override that failed validation. It is fatal:
// resolution errors abort a run before anything is dispatched.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: invalid %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Overrides is what a caller may set when submitting a run. Zero values
// mean "use the default"; the *Set booleans disambiguate explicit false.
type Overrides struct {
	Branch          string   `json:"branch" yaml:"branch"`
	JobNamePrefix   string   `json:"job_name_prefix" yaml:"job_name_prefix"`
	JobNameSuffix   string   `json:"job_name_suffix" yaml:"job_name_suffix"`
	CoverageFlags   []string `json:"coverage_flags" yaml:"coverage_flags"`
	ExtraPytestArgs []string `json:"extra_pytest_args" yaml:"extra_pytest_args"`
	ExtraPackages   []string `json:"extra_packages" yaml:"extra_packages"`
	SkipList        []string `json:"skip_list" yaml:"skip_list"`
	WarningLevel    string   `json:"warning_level" yaml:"warning_level"`

	Lightened      bool `json:"lightened" yaml:"lightened"`
	UploadCodecov  bool `json:"upload_to_codecov" yaml:"upload_to_codecov"`
	UploadSet      bool `json:"-" yaml:"-"`
	UseLargeRunner bool `json:"use_large_runner" yaml:"use_large_runner"`
	Scheduled      bool `json:"scheduled" yaml:"scheduled"`
	FailFast       bool `json:"fail_fast" yaml:"fail_fast"`
	FailFastSet    bool `json:"-" yaml:"-"`
}

// RunConfig is the resolved, immutable configuration for one run.
// Nothing mutates a RunConfig after Resolve returns it.
type RunConfig struct {
	Branch          string
	JobNamePrefix   string
	JobNameSuffix   string
	CoverageFlags   []string
	ExtraPytestArgs []string
	ExtraPackages   []string
	SkipList        []string
	WarningLevel    string

	Lightened      bool
	UploadCodecov  bool
	UseLargeRunner bool
	Scheduled      bool
	FailFast       bool

	// PythonVersions is the resolved default version set for this run.
	// Lightened runs and warning_level=error runs always get exactly one.
	PythonVersions []string

	// VersionsByCategory overrides the version set per job category, with
	// the "default" entry as fallback. Lightened mode ignores the table.
	VersionsByCategory Table[[]string]
}

// Defaults returns the built-in run configuration before any override
// is applied.
func Defaults() RunConfig {
	return RunConfig{
		Branch:         "master",
		WarningLevel:   WarnDefault,
		CoverageFlags:  []string{"--cov=matrixci", "--cov-report=xml"},
		UploadCodecov:  true,
		FailFast:       true,
		PythonVersions: append([]string(nil), DefaultPythonVersions...),
		VersionsByCategory: Table[[]string]{
			"default": append([]string(nil), DefaultPythonVersions...),
		},
	}
}

// Resolve merges caller overrides onto the defaults and applies the
// python-version policy. Priority order: overrides > environment >
// built-in defaults.
//
// Version policy: a lightened run, or warning_level=error, forces the
// version set down to exactly one element. Otherwise the default
// multi-version set applies, overridable per category via the table.
func Resolve(ov Overrides) (RunConfig, error) {
	cfg := Defaults()

	if branch := strings.TrimSpace(ov.Branch); branch != "" {
		cfg.Branch = branch
	} else if envBranch := os.Getenv("MATRIXCI_BRANCH"); envBranch != "" {
		cfg.Branch = envBranch
	}

	if ov.WarningLevel != "" {
		switch ov.WarningLevel {
		case WarnDefault, WarnError:
			cfg.WarningLevel = ov.WarningLevel
		default:
			return RunConfig{}, &ConfigError{
				Field:  "warning_level",
				Value:  ov.WarningLevel,
				Reason: fmt.Sprintf("must be %q or %q", WarnDefault, WarnError),
			}
		}
	}

	cfg.JobNamePrefix = ov.JobNamePrefix
	cfg.JobNameSuffix = ov.JobNameSuffix
	cfg.Lightened = ov.Lightened
	cfg.UseLargeRunner = ov.UseLargeRunner
	cfg.Scheduled = ov.Scheduled

	if ov.UploadSet {
		cfg.UploadCodecov = ov.UploadCodecov
	}
	if ov.FailFastSet {
		cfg.FailFast = ov.FailFast
	}

	if len(ov.CoverageFlags) > 0 {
		cfg.CoverageFlags = append([]string(nil), ov.CoverageFlags...)
	}
	cfg.ExtraPytestArgs = append([]string(nil), ov.ExtraPytestArgs...)
	cfg.ExtraPackages = append([]string(nil), ov.ExtraPackages...)
	cfg.SkipList = append([]string(nil), ov.SkipList...)

	for _, name := range cfg.SkipList {
		if strings.TrimSpace(name) == "" {
			return RunConfig{}, &ConfigError{
				Field:  "skip_list",
				Value:  name,
				Reason: "empty category name",
			}
		}
	}

	// Single-version modes: lightened CI and error-level warnings both
	// pin the matrix to one python version.
	if cfg.Lightened || cfg.WarningLevel == WarnError {
		cfg.PythonVersions = []string{DefaultPythonVersion}
		cfg.VersionsByCategory = Table[[]string]{
			"default": {DefaultPythonVersion},
		}
	}

	return cfg, nil
}

// VersionsFor returns the python-version set for a job category,
// falling back to the table's "default" entry, then to the run-wide
// resolved set.
func (c RunConfig) VersionsFor(category string) []string {
	if vs, ok := ResolveEntry(category, c.VersionsByCategory); ok {
		return vs
	}
	return c.PythonVersions
}

// Skips reports whether a category is on the skip list. The list is
// honored only on lightened runs; in full-run mode it has no effect.
func (c RunConfig) Skips(category string) bool {
	if !c.Lightened {
		return false
	}
	for _, name := range c.SkipList {
		if name == category {
			return true
		}
	}
	return false
}
