package atlas

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a [W, H] pair.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var pair []int
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("size: expected [width, height], got %d values", len(pair))
	}
	s.W, s.H = pair[0], pair[1]
	return nil
}

// MarshalYAML encodes the size as a [W, H] pair.
func (s Size) MarshalYAML() (any, error) {
	return []int{s.W, s.H}, nil
}

// Parse decodes a descriptor document. JSON documents are accepted as well as
// YAML since the former is a subset of the latter.
func Parse(data []byte) (*Descriptor, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidDescriptor, err)
	}
	return New(spec)
}

// Load reads and parses a descriptor from disk.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("atlas: load %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("atlas: load %s: %w", path, err)
	}
	return d, nil
}

// LoadFS reads and parses a descriptor from fsys.
func LoadFS(fsys fs.FS, name string) (*Descriptor, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("atlas: load %s: %w", name, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("atlas: load %s: %w", name, err)
	}
	return d, nil
}
