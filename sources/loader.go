package sources

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultSources []byte

// File is the structure of a sources YAML file.
type File struct {
	Sources []Source `yaml:"sources"`
}

// Default returns the built-in source list.
func Default() ([]Source, error) {
	list, err := Parse(defaultSources)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in sources: %w", err)
	}
	return list, nil
}

// Load reads and validates a sources file. An empty path returns the
// built-in list.
func Load(path string) ([]Source, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	list, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources from %s: %w", path, err)
	}
	return list, nil
}

// Parse decodes and validates a sources document. Names must be unique since
// they key fingerprints.
func Parse(data []byte) ([]Source, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}

	seen := make(map[string]bool, len(f.Sources))
	for _, s := range f.Sources {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%s: %w", s.Name, ErrDuplicateName)
		}
		seen[s.Name] = true
	}
	return f.Sources, nil
}
