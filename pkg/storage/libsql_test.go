package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
)

func newTestStorage(t *testing.T) *LibSQL {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	storage, err := NewLibSQL("file:" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	if err := storage.Initialize(context.Background()); err != nil {
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	return storage
}

func testSpecs() []catalog.Spec {
	return []catalog.Spec{
		{
			CanonicalName: "zlib-1.2.13-x64",
			Name:          "zlib",
			Version:       "1.2.13",
			Arch:          "x64",
			Summary:       "compression library",
			Installed:     true,
		},
		{
			CanonicalName: "curl-8.0-x64",
			Name:          "curl",
			Flavor:        "openssl",
			Version:       "8.0",
			Arch:          "x64",
			Publisher:     "example",
			PublishedAt:   time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC),
			Dependencies:  []string{"zlib-1.2.13-x64", "openssl-3-x64"},
		},
	}
}

func TestLibSQLPackages(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if err := storage.ReplacePackages(ctx, testSpecs()); err != nil {
		t.Fatalf("Failed to replace packages: %v", err)
	}

	// Test getting a package
	got, err := storage.GetPackage(ctx, "curl-8.0-x64")
	if err != nil {
		t.Fatalf("Failed to get package: %v", err)
	}
	if got == nil {
		t.Fatal("GetPackage returned nil for existing package")
	}
	if got.Flavor != "openssl" || got.Publisher != "example" {
		t.Errorf("Got package %+v", got)
	}
	if !got.PublishedAt.Equal(time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("Got publish date %v", got.PublishedAt)
	}
	if len(got.Dependencies) != 2 || got.Dependencies[0] != "zlib-1.2.13-x64" || got.Dependencies[1] != "openssl-3-x64" {
		t.Errorf("Got dependencies %v, want declaration order", got.Dependencies)
	}

	// Test listing packages
	packages, err := storage.ListPackages(ctx)
	if err != nil {
		t.Fatalf("Failed to list packages: %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("Got %d packages, want 2", len(packages))
	}
	if packages[0].CanonicalName != "curl-8.0-x64" || !packages[1].Installed {
		t.Errorf("Got packages %+v", packages)
	}

	// Test install state
	if err := storage.SetInstalled(ctx, "curl-8.0-x64", true); err != nil {
		t.Fatalf("Failed to set installed: %v", err)
	}
	got, err = storage.GetPackage(ctx, "curl-8.0-x64")
	if err != nil {
		t.Fatalf("Failed to get updated package: %v", err)
	}
	if !got.Installed {
		t.Error("Package not marked installed")
	}

	// Test upsert keeps other packages
	update := testSpecs()[0]
	update.Summary = "zlib"
	update.Dependencies = []string{"libc"}
	if err := storage.PutPackages(ctx, []catalog.Spec{update}); err != nil {
		t.Fatalf("Failed to put packages: %v", err)
	}
	got, err = storage.GetPackage(ctx, update.CanonicalName)
	if err != nil {
		t.Fatalf("Failed to get package: %v", err)
	}
	if got.Summary != "zlib" || len(got.Dependencies) != 1 {
		t.Errorf("Got package %+v after update", got)
	}

	// Test deleting a package
	if err := storage.DeletePackage(ctx, "curl-8.0-x64"); err != nil {
		t.Fatalf("Failed to delete package: %v", err)
	}
	got, err = storage.GetPackage(ctx, "curl-8.0-x64")
	if err != nil {
		t.Fatalf("Failed to check deleted package: %v", err)
	}
	if got != nil {
		t.Error("Package still exists after deletion")
	}

	// Test replacing drops everything else
	if err := storage.ReplacePackages(ctx, nil); err != nil {
		t.Fatalf("Failed to replace packages: %v", err)
	}
	packages, err = storage.ListPackages(ctx)
	if err != nil {
		t.Fatalf("Failed to list packages: %v", err)
	}
	if len(packages) != 0 {
		t.Errorf("Got %d packages after replace, want 0", len(packages))
	}
}

func TestLibSQLErrors(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if err := storage.SetInstalled(ctx, "nonexistent", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound when updating non-existent package, got %v", err)
	}

	if err := storage.DeletePackage(ctx, "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound when deleting non-existent package, got %v", err)
	}

	if err := storage.DeleteFilter(ctx, "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound when deleting non-existent filter, got %v", err)
	}
}

func TestLibSQLFilters(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	filters, err := storage.ListFilters(ctx)
	if err != nil {
		t.Fatalf("Failed to list filters: %v", err)
	}
	if len(filters) != 4 || filters[1].Name != "Newest" || filters[1].Query != "newest" {
		t.Errorf("Expected default filters, got %+v", filters)
	}

	if err := storage.SaveFilter(ctx, Filter{Name: "Tools", Query: "cli AND arch = x64", Position: 4}); err != nil {
		t.Fatalf("Failed to save filter: %v", err)
	}
	filters, err = storage.ListFilters(ctx)
	if err != nil {
		t.Fatalf("Failed to list filters: %v", err)
	}
	if len(filters) != 5 || filters[4].Name != "Tools" {
		t.Errorf("Expected defaults plus saved filter, got %+v", filters)
	}

	if err := storage.DeleteFilter(ctx, "Locked"); err != nil {
		t.Fatalf("Failed to delete filter: %v", err)
	}
	filters, err = storage.ListFilters(ctx)
	if err != nil {
		t.Fatalf("Failed to list filters: %v", err)
	}
	for _, f := range filters {
		if f.Name == "Locked" {
			t.Error("Filter still exists after deletion")
		}
	}
	if len(filters) != 4 {
		t.Errorf("Got %d filters, want 4", len(filters))
	}
}

func TestLibSQLMarks(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	want := map[string]marks.Mark{
		"a": marks.MarkedForInstallation,
		"b": marks.MarkedForRemoval,
	}
	if err := storage.SaveMarks(ctx, want); err != nil {
		t.Fatalf("Failed to save marks: %v", err)
	}
	if err := storage.SaveMarks(ctx, map[string]marks.Mark{
		"a": marks.MarkedForInstallation,
		"c": marks.Unmarked,
	}); err != nil {
		t.Fatalf("Failed to save marks: %v", err)
	}

	got, err := storage.LoadMarks(ctx)
	if err != nil {
		t.Fatalf("Failed to load marks: %v", err)
	}
	if len(got) != 1 || got["a"] != marks.MarkedForInstallation {
		t.Errorf("Got marks %v", got)
	}
}

func TestLoadCatalog(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	specs := append(testSpecs(), catalog.Spec{
		CanonicalName: "openssl-3-x64", Name: "openssl", Version: "3", Arch: "x64",
	})
	if err := storage.ReplacePackages(ctx, specs); err != nil {
		t.Fatalf("Failed to replace packages: %v", err)
	}

	provider, err := Loader(storage)(ctx)
	if err != nil {
		t.Fatalf("Failed to load catalogue: %v", err)
	}
	curl, ok := provider.Lookup("curl-8.0-x64")
	if !ok {
		t.Fatal("curl not in catalogue")
	}
	deps, err := provider.Dependencies(curl)
	if err != nil {
		t.Fatalf("Failed to get dependencies: %v", err)
	}
	if len(deps) != 2 {
		t.Errorf("Got %d dependencies, want 2", len(deps))
	}
}
