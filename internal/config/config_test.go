package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "master", cfg.Branch)
	assert.Equal(t, WarnDefault, cfg.WarningLevel)
	assert.Equal(t, DefaultPythonVersions, cfg.PythonVersions)
	assert.True(t, cfg.UploadCodecov)
	assert.True(t, cfg.FailFast)
}

func TestLightenedRunPinsSinglePythonVersion(t *testing.T) {
	cfg, err := Resolve(Overrides{Lightened: true})
	require.NoError(t, err)

	require.Len(t, cfg.PythonVersions, 1)
	assert.Equal(t, DefaultPythonVersion, cfg.PythonVersions[0])

	// The category table collapses too: every lookup yields one version.
	assert.Equal(t, []string{DefaultPythonVersion}, cfg.VersionsFor("torch-tests"))
	assert.Equal(t, []string{DefaultPythonVersion}, cfg.VersionsFor("anything-else"))
}

func TestErrorWarningLevelPinsSinglePythonVersion(t *testing.T) {
	cfg, err := Resolve(Overrides{WarningLevel: WarnError})
	require.NoError(t, err)
	require.Len(t, cfg.PythonVersions, 1)
}

func TestInvalidWarningLevelIsConfigError(t *testing.T) {
	_, err := Resolve(Overrides{WarningLevel: "loud"})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "warning_level", cfgErr.Field)
}

func TestEmptySkipListEntryIsConfigError(t *testing.T) {
	_, err := Resolve(Overrides{SkipList: []string{"torch-tests", "  "}})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "skip_list", cfgErr.Field)
}

func TestExplicitFalseOverrides(t *testing.T) {
	cfg, err := Resolve(Overrides{
		UploadCodecov: false, UploadSet: true,
		FailFast: false, FailFastSet: true,
	})
	require.NoError(t, err)
	assert.False(t, cfg.UploadCodecov)
	assert.False(t, cfg.FailFast)

	// Without the Set flag, false means "keep the default".
	cfg, err = Resolve(Overrides{})
	require.NoError(t, err)
	assert.True(t, cfg.UploadCodecov)
	assert.True(t, cfg.FailFast)
}

func TestSkipsOnlyAppliesOnLightenedRuns(t *testing.T) {
	full, err := Resolve(Overrides{SkipList: []string{"torch-tests"}})
	require.NoError(t, err)
	assert.False(t, full.Skips("torch-tests"), "skip list must be ignored on full runs")

	light, err := Resolve(Overrides{Lightened: true, SkipList: []string{"torch-tests"}})
	require.NoError(t, err)
	assert.True(t, light.Skips("torch-tests"))
	assert.False(t, light.Skips("core-tests"))
}

func TestVersionsForFallsBackToDefaultEntry(t *testing.T) {
	cfg, err := Resolve(Overrides{})
	require.NoError(t, err)
	cfg.VersionsByCategory = Table[[]string]{
		"default":     {"3.11"},
		"torch-tests": {"3.12"},
	}

	assert.Equal(t, []string{"3.12"}, cfg.VersionsFor("torch-tests"))
	assert.Equal(t, []string{"3.11"}, cfg.VersionsFor("jax-tests"), "absent categories use the default entry")
}

func TestResolveEntry(t *testing.T) {
	table := Table[int]{"default": 2, "tf-tests": 3}

	v, ok := ResolveEntry("tf-tests", table)
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = ResolveEntry("unknown", table)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = ResolveEntry("unknown", Table[int]{})
	assert.False(t, ok)
}
