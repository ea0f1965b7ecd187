package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalogue format
type File struct {
	Packages []Spec `yaml:"packages"`
}

// Decode reads a catalogue file
func Decode(r io.Reader) ([]Spec, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode catalogue: %w", err)
	}
	return f.Packages, nil
}

// Encode writes specs as a catalogue file
func Encode(w io.Writer, specs []Spec) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File{Packages: specs}); err != nil {
		return fmt.Errorf("failed to encode catalogue: %w", err)
	}
	return enc.Close()
}

// ReadFile reads the catalogue file at path
func ReadFile(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalogue: %w", err)
	}
	defer f.Close()

	return Decode(f)
}
