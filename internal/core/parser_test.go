package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMatrix = `
project: quantumlib
categories:
  - name: core-tests
    run: pytest tests/core
    shards: 6
    max_parallel: 3
    timeout: 45m
  - name: torch-tests
    run: pytest tests/interfaces
    markers: torch
    packages_pre: ["torch~=2.3"]
  - name: device-tests
    run: pytest tests/devices
    devices:
      - name: default.qubit
      - name: default.qubit
        shots: "1000"
`

func TestParseMatrix(t *testing.T) {
	m, err := ParseMatrix([]byte(sampleMatrix))
	require.NoError(t, err)

	require.Len(t, m.Categories, 3)
	assert.Equal(t, "quantumlib", m.Project)
	assert.Equal(t, 6, m.Categories[0].Shards)
	assert.Equal(t, 3, m.Categories[0].MaxParallel)
	assert.Equal(t, 45*time.Minute, m.Categories[0].Timeout.Std())
	assert.Equal(t, "torch", m.Categories[1].Markers)
	assert.Equal(t, []string{"torch~=2.3"}, m.Categories[1].PackagesPre)
	require.Len(t, m.Categories[2].Devices, 2)
	assert.Equal(t, "1000", m.Categories[2].Devices[1].Shots)
}

func TestParseMatrixRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not yaml":           "categories: [",
		"no categories":      "project: x",
		"empty name":         "categories: [{run: pytest}]",
		"no run command":     "categories: [{name: core-tests}]",
		"duplicate category": "categories: [{name: a, run: x}, {name: a, run: y}]",
		"negative shards":    "categories: [{name: a, run: x, shards: -1}]",
		"bad timeout":        "categories: [{name: a, run: x, timeout: fast}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMatrix([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestInstanceCount(t *testing.T) {
	cat := Category{Shards: 3, Devices: []Device{{Name: "a"}, {Name: "b"}}}
	assert.Equal(t, 2*3*2, cat.InstanceCount(2))

	assert.Equal(t, 1, Category{}.InstanceCount(1))
}
