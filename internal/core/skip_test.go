package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanuj-rai/matrixci/internal/config"
)

func skipMatrix() *Matrix {
	return &Matrix{Categories: []Category{
		{Name: "torch-tests", Run: "pytest tests/torch"},
		{Name: "core-tests", Run: "pytest tests/core"},
		{Name: "jax-tests", Run: "pytest tests/jax"},
	}}
}

func TestSkipFilterLightenedRun(t *testing.T) {
	cfg, err := config.Resolve(config.Overrides{
		Lightened: true,
		SkipList:  []string{"torch-tests"},
	})
	require.NoError(t, err)

	specs := Expand(cfg, skipMatrix())
	kept, skipped := FilterSkipped(cfg, specs)

	// torch-tests is gone from the kept set and present as skipped.
	for _, spec := range kept {
		assert.NotEqual(t, "torch-tests", spec.Category)
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, "torch-tests", skipped[0].Category)
	assert.Equal(t, StatusSkipped, skipped[0].Status)
	assert.Equal(t, "skip-list", skipped[0].Cause)

	// Remaining categories run with the single lightened version.
	require.Len(t, kept, 2)
	for _, spec := range kept {
		assert.Equal(t, config.DefaultPythonVersion, spec.PythonVersion)
	}
}

func TestSkipFilterIgnoredOnFullRuns(t *testing.T) {
	cfg, err := config.Resolve(config.Overrides{
		SkipList: []string{"torch-tests", "core-tests", "jax-tests"},
	})
	require.NoError(t, err)

	specs := Expand(cfg, skipMatrix())
	kept, skipped := FilterSkipped(cfg, specs)

	assert.Len(t, kept, len(specs), "full runs ignore the skip list entirely")
	assert.Empty(t, skipped)
}

func TestSkipFilterPreservesInvariant(t *testing.T) {
	cfg, err := config.Resolve(config.Overrides{
		Lightened: true,
		SkipList:  []string{"core-tests"},
	})
	require.NoError(t, err)

	specs := Expand(cfg, skipMatrix())
	kept, skipped := FilterSkipped(cfg, specs)
	assert.Equal(t, len(specs), len(kept)+len(skipped))
}
