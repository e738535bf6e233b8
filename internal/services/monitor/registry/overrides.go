package registry

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type overrideFile struct {
	Entries []Entry `yaml:"entries"`
}

// LoadOverrides decodes registry entries from YAML:
//
//	entries:
//	  - category: running
//	    interval: daily
//	    rules:
//	      - kind: milestone
//	        interval: 50
func LoadOverrides(r io.Reader) ([]Entry, error) {
	var file overrideFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode registry overrides: %w", err)
	}
	for i, entry := range file.Entries {
		normalized, err := entry.normalize()
		if err != nil {
			return nil, fmt.Errorf("registry override %d: %w", i, err)
		}
		file.Entries[i] = normalized
	}
	return file.Entries, nil
}

// LoadOverridesFile applies the overrides stored at path on top of base.
func LoadOverridesFile(base *Registry, path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry overrides: %w", err)
	}
	defer f.Close()

	entries, err := LoadOverrides(f)
	if err != nil {
		return nil, err
	}
	return base.WithOverrides(entries...)
}
