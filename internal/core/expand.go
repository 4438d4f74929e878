package core

import (
	"time"

	"github.com/tanuj-rai/matrixci/internal/config"
)

// DefaultJobTimeout bounds a single job when the category declares none.
const DefaultJobTimeout = 30 * time.Minute

// Expand turns the matrix into the concrete ordered spec list for one
// run. Order is deterministic: categories in declaration order, then
// python version, then shard, then device. Size-1 axes expand to a
// single instance.
func Expand(cfg config.RunConfig, m *Matrix) []JobSpec {
	var specs []JobSpec
	for _, cat := range m.Categories {
		specs = append(specs, expandCategory(cfg, cat)...)
	}
	return specs
}

func expandCategory(cfg config.RunConfig, cat Category) []JobSpec {
	versions := cat.PythonVersions
	if len(versions) == 0 {
		versions = cfg.VersionsFor(cat.Name)
	}
	// Lightened and error-warning runs pin every category to the single
	// resolved version, even when the category declares its own axis.
	if len(cfg.PythonVersions) == 1 {
		versions = cfg.PythonVersions
	}

	shards := cat.Shards
	if shards < 1 {
		shards = 1
	}
	devices := cat.Devices
	if len(devices) == 0 {
		devices = []Device{{}}
	}
	timeout := cat.Timeout.Std()
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	specs := make([]JobSpec, 0, len(versions)*shards*len(devices))
	for _, version := range versions {
		for shard := 1; shard <= shards; shard++ {
			for _, dev := range devices {
				spec := JobSpec{
					Category:      cat.Name,
					Branch:        cfg.Branch,
					PythonVersion: version,
					Device:        dev,
					RunnerClass:   runnerClass(cfg, cat),
					Run:           cat.Run,
					Markers:       cat.Markers,
					PackagesPre:   append(append([]string(nil), cat.PackagesPre...), cfg.ExtraPackages...),
					PackagesPost:  append([]string(nil), cat.PackagesPost...),
					CoverageFlags: append([]string(nil), cfg.CoverageFlags...),
					ExtraArgs:     append([]string(nil), cfg.ExtraPytestArgs...),
					NamePrefix:    cfg.JobNamePrefix,
					NameSuffix:    cfg.JobNameSuffix,
					Timeout:       timeout,
				}
				if shards > 1 {
					spec.ShardIndex = shard
					spec.ShardCount = shards
				}
				// Pinned requirements only on scheduled runs, first shard.
				if cfg.Scheduled && shard == 1 && cat.Requirements != "" {
					spec.RequirementsFile = cat.Requirements
				}
				specs = append(specs, spec)
			}
		}
	}
	return specs
}

func runnerClass(cfg config.RunConfig, cat Category) string {
	if cat.RunnerClass != "" {
		return cat.RunnerClass
	}
	if cfg.UseLargeRunner {
		return "large"
	}
	return "standard"
}
