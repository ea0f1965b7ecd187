package storage

import (
	"context"
	"errors"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Filter is a named query shown in the browser's filter bar
type Filter struct {
	Name     string
	Query    string
	Position int
}

// DefaultFilters returns the filters used when none are stored
func DefaultFilters() []Filter {
	return []Filter{
		{Name: "All", Query: "", Position: 0},
		{Name: "Newest", Query: "newest", Position: 1},
		{Name: "Installed", Query: "installed", Position: 2},
		{Name: "Locked", Query: "locked", Position: 3},
	}
}

// Storage defines the interface for the package catalogue, marks and filters
type Storage interface {
	// Initialize initializes the storage (e.g., creates tables)
	Initialize(ctx context.Context) error

	// ReplacePackages replaces the whole catalogue
	ReplacePackages(ctx context.Context, specs []catalog.Spec) error

	// PutPackages inserts or updates packages
	PutPackages(ctx context.Context, specs []catalog.Spec) error

	// GetPackage gets a package by canonical name
	GetPackage(ctx context.Context, name string) (*catalog.Spec, error)

	// ListPackages lists all packages ordered by canonical name
	ListPackages(ctx context.Context) ([]catalog.Spec, error)

	// SetInstalled records the install state of a package
	SetInstalled(ctx context.Context, name string, installed bool) error

	// DeletePackage deletes a package and its dependency edges
	DeletePackage(ctx context.Context, name string) error

	ListFilters(ctx context.Context) ([]Filter, error)
	SaveFilter(ctx context.Context, f Filter) error
	DeleteFilter(ctx context.Context, name string) error

	// SaveMarks replaces the stored marks
	SaveMarks(ctx context.Context, m map[string]marks.Mark) error
	LoadMarks(ctx context.Context) (map[string]marks.Mark, error)

	// Close closes the storage
	Close() error
}
