package core

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses yaml duration strings ("45m", "1h30m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"45m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Matrix is the declarative test matrix, usually loaded from
// matrix.yaml. Category declaration order is the dispatch order.
type Matrix struct {
	Project    string     `yaml:"project"`    // project under test
	Categories []Category `yaml:"categories"` // ordered job categories
}

// Category is one named class of test run with its own axes.
// Axis declaration order is fixed: python version, shard, device.
// An axis of size one expands to itself.
type Category struct {
	Name           string        `yaml:"name"`                      // e.g. "torch-tests"
	Run            string        `yaml:"run"`                       // base test command
	Markers        string        `yaml:"markers,omitempty"`         // pytest -m expression
	PythonVersions []string      `yaml:"python_versions,omitempty"` // empty = resolver's set
	Shards         int           `yaml:"shards,omitempty"`          // 0 or 1 = unsharded
	Devices        []Device      `yaml:"devices,omitempty"`
	RunnerClass    string        `yaml:"runner_class,omitempty"`
	PackagesPre    []string      `yaml:"packages_pre,omitempty"`
	PackagesPost   []string      `yaml:"packages_post,omitempty"`
	Requirements   string        `yaml:"requirements,omitempty"` // pinned file for scheduled runs
	MaxParallel    int           `yaml:"max_parallel,omitempty"` // 0 = dispatcher default
	Timeout        Duration      `yaml:"timeout,omitempty"`
}

// InstanceCount is how many job specs this category expands to for a
// given python-version set.
func (c Category) InstanceCount(versions int) int {
	n := versions
	if shards := c.Shards; shards > 1 {
		n *= shards
	}
	if len(c.Devices) > 0 {
		n *= len(c.Devices)
	}
	return n
}
