package indexer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest lists the documents to ingest.
type Manifest struct {
	Sources []Source `yaml:"sources"`
}

// LoadManifest reads and validates a YAML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for i := range m.Sources {
		src := &m.Sources[i]
		src.Ref = strings.TrimSpace(src.Ref)
		src.URL = strings.TrimSpace(src.URL)
		if src.Ref == "" {
			return nil, fmt.Errorf("source %d: ref is required", i)
		}
		if strings.ContainsAny(src.Ref, " \t\n") {
			return nil, fmt.Errorf("source %d: ref %q must not contain whitespace", i, src.Ref)
		}
		if src.URL == "" {
			return nil, fmt.Errorf("source %d (%s): url is required", i, src.Ref)
		}
	}

	return &m, nil
}

// Filter returns the sources whose ref is in only, keeping manifest order.
// An empty only returns every source.
func (m *Manifest) Filter(only []string) []Source {
	if len(only) == 0 {
		return m.Sources
	}
	keep := make(map[string]bool, len(only))
	for _, ref := range only {
		keep[strings.TrimSpace(ref)] = true
	}
	var out []Source
	for _, src := range m.Sources {
		if keep[src.Ref] {
			out = append(out, src)
		}
	}
	return out
}
