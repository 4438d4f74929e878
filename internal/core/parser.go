package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseMatrix parses YAML content into a Matrix.
func ParseMatrix(data []byte) (*Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse matrix: %w", err)
	}
	if err := validateMatrix(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadMatrix reads matrix.yaml and returns a Matrix.
func LoadMatrix(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMatrix(data)
}

func validateMatrix(m *Matrix) error {
	if len(m.Categories) == 0 {
		return fmt.Errorf("matrix: no categories declared")
	}
	seen := make(map[string]bool, len(m.Categories))
	for _, c := range m.Categories {
		if c.Name == "" {
			return fmt.Errorf("matrix: category with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("matrix: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if c.Run == "" {
			return fmt.Errorf("matrix: category %q has no run command", c.Name)
		}
		if c.Shards < 0 {
			return fmt.Errorf("matrix: category %q has negative shard count", c.Name)
		}
		if c.MaxParallel < 0 {
			return fmt.Errorf("matrix: category %q has negative max_parallel", c.Name)
		}
	}
	return nil
}
