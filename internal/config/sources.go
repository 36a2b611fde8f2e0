package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	KindGrid       = "grid"
	KindOccurrence = "occurrence"
)

// SourceDef is one entry of the sources file. Grid sources describe a
// catalog dataset and its scalar variable; occurrence sources describe a
// paginated API endpoint and the categories to query.
type SourceDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// grid
	ShortName      string `yaml:"short_name"`
	Provider       string `yaml:"provider"`
	GranulePattern string `yaml:"granule_pattern"`
	Variable       string `yaml:"variable"`
	Downsample     int    `yaml:"downsample"`

	// occurrence
	Endpoint   string   `yaml:"endpoint"`
	Categories []string `yaml:"categories"`

	// MinCount overrides the global minimum points per cell when set.
	MinCount *int `yaml:"min_count"`
}

type sourcesFile struct {
	Sources []SourceDef `yaml:"sources"`
}

// LoadSources reads and validates the YAML source definitions.
func LoadSources(path string) ([]SourceDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}

	seen := make(map[string]bool, len(f.Sources))
	for i, s := range f.Sources {
		if err := validateSource(s); err != nil {
			return nil, fmt.Errorf("sources file %s, entry %d: %w", path, i+1, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("sources file %s: duplicate source name %q", path, s.Name)
		}
		seen[s.Name] = true
	}
	return f.Sources, nil
}

func validateSource(s SourceDef) error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	switch s.Kind {
	case KindGrid:
		if s.ShortName == "" {
			return fmt.Errorf("source %q: short_name is required for grid sources", s.Name)
		}
		if s.Variable == "" {
			return fmt.Errorf("source %q: variable is required for grid sources", s.Name)
		}
	case KindOccurrence:
		if s.Endpoint == "" {
			return fmt.Errorf("source %q: endpoint is required for occurrence sources", s.Name)
		}
		if len(s.Categories) == 0 {
			return fmt.Errorf("source %q: at least one category is required", s.Name)
		}
	default:
		return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}
