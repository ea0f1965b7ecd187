package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/storage"
)

// StoreService records package operations in the store and keeps one receipt
// file per installed package
type StoreService struct {
	store storage.Storage
	dir   string
}

// NewStoreService creates a service writing receipts to dir
func NewStoreService(store storage.Storage, dir string) *StoreService {
	return &StoreService{store: store, dir: dir}
}

// ReceiptPath returns the receipt file of p
func (s *StoreService) ReceiptPath(p *catalog.Package) string {
	return filepath.Join(s.dir, p.CanonicalName()+".yaml")
}

func (s *StoreService) writeReceipt(p *catalog.Package) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create receipts directory: %w", err)
	}

	spec := p.Spec()
	spec.Installed = true
	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	if err := os.WriteFile(s.ReceiptPath(p), data, 0644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// Install installs a package
func (s *StoreService) Install(ctx context.Context, p *catalog.Package) error {
	if err := s.writeReceipt(p); err != nil {
		return err
	}

	if err := s.store.SetInstalled(ctx, p.CanonicalName(), true); err != nil {
		os.Remove(s.ReceiptPath(p)) // Clean up on error
		return fmt.Errorf("failed to record installation: %w", err)
	}
	return nil
}

// Reinstall rewrites the receipt of an installed package
func (s *StoreService) Reinstall(ctx context.Context, p *catalog.Package) error {
	existing, err := s.store.GetPackage(ctx, p.CanonicalName())
	if err != nil {
		return fmt.Errorf("failed to check existing package: %w", err)
	}
	if existing == nil || !existing.Installed {
		return fmt.Errorf("package %s is not installed", p)
	}
	return s.writeReceipt(p)
}

// Remove removes an installed package
func (s *StoreService) Remove(ctx context.Context, p *catalog.Package) error {
	// Update the store first
	if err := s.store.SetInstalled(ctx, p.CanonicalName(), false); err != nil {
		return fmt.Errorf("failed to record removal: %w", err)
	}

	if err := os.Remove(s.ReceiptPath(p)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove receipt: %w", err)
	}
	return nil
}
