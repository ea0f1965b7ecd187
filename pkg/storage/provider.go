package storage

import (
	"context"
	"fmt"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
)

// LoadCatalog builds a catalogue from the stored packages
func LoadCatalog(ctx context.Context, s Storage, opts ...catalog.Option) (*catalog.Catalog, error) {
	specs, err := s.ListPackages(ctx)
	if err != nil {
		return nil, err
	}
	c, err := catalog.New(specs, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalogue: %w", err)
	}
	return c, nil
}

// Loader returns a marks.Loader reading the catalogue from s
func Loader(s Storage, opts ...catalog.Option) marks.Loader {
	return func(ctx context.Context) (marks.Provider, error) {
		c, err := LoadCatalog(ctx, s, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
