package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dikkadev/pkgmark/pkg/marks"
)

// Marking is one entry of a markings file
type Marking struct {
	CanonicalName string `yaml:"canonical_name"`
	Mark          string `yaml:"mark"`
}

type markingsFile struct {
	Marks []Marking `yaml:"marks"`
}

// WriteMarkings writes the explicit marks as YAML, sorted by canonical name
func WriteMarkings(w io.Writer, m map[string]marks.Mark) error {
	var file markingsFile
	for name, mark := range m {
		if mark == marks.Unmarked {
			continue
		}
		file.Marks = append(file.Marks, Marking{CanonicalName: name, Mark: mark.String()})
	}
	sort.Slice(file.Marks, func(i, j int) bool {
		return file.Marks[i].CanonicalName < file.Marks[j].CanonicalName
	})

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode markings: %w", err)
	}
	return enc.Close()
}

// ReadMarkings reads a markings file
func ReadMarkings(r io.Reader) (map[string]marks.Mark, error) {
	var file markingsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode markings: %w", err)
	}

	out := make(map[string]marks.Mark, len(file.Marks))
	for _, entry := range file.Marks {
		if entry.CanonicalName == "" {
			return nil, errors.New("marking without canonical name")
		}
		m, err := marks.ParseMark(entry.Mark)
		if err != nil {
			return nil, fmt.Errorf("invalid mark of %s: %w", entry.CanonicalName, err)
		}
		out[entry.CanonicalName] = m
	}
	return out, nil
}

// ExportMarkings writes a markings file to path
func ExportMarkings(path string, m map[string]marks.Mark) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create markings file: %w", err)
	}
	if err := WriteMarkings(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ImportMarkings reads a markings file from path
func ImportMarkings(path string) (map[string]marks.Mark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open markings file: %w", err)
	}
	defer f.Close()
	return ReadMarkings(f)
}
