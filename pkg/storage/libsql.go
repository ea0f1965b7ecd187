package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
)

// LibSQL implements the Storage interface using libsql
type LibSQL struct {
	db *sql.DB
}

// NewLibSQL creates a new LibSQL storage. url is a file: URL or the address
// of a libsql server.
func NewLibSQL(url string) (*LibSQL, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &LibSQL{db: db}, nil
}

var schema = []struct {
	table string
	ddl   string
}{
	{"packages", `
		CREATE TABLE IF NOT EXISTS packages (
			canonical_name TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			flavor TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL,
			arch TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			installed BOOLEAN NOT NULL DEFAULT 0,
			wanted BOOLEAN NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT 0,
			published_at TEXT NOT NULL DEFAULT ''
		)
	`},
	{"dependencies", `
		CREATE TABLE IF NOT EXISTS dependencies (
			package TEXT NOT NULL,
			dependency TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (package, position)
		)
	`},
	{"marks", `
		CREATE TABLE IF NOT EXISTS marks (
			canonical_name TEXT PRIMARY KEY,
			mark TEXT NOT NULL
		)
	`},
	{"filters", `
		CREATE TABLE IF NOT EXISTS filters (
			name TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			position INTEGER NOT NULL
		)
	`},
}

// Initialize creates the database schema
func (s *LibSQL) Initialize(ctx context.Context) error {
	for _, t := range schema {
		if _, err := s.db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.table, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (s *LibSQL) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func putPackage(ctx context.Context, tx *sql.Tx, spec catalog.Spec) error {
	if spec.CanonicalName == "" {
		spec.CanonicalName = catalog.CanonicalName(spec)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO packages (
			canonical_name, name, flavor, version, arch, publisher,
			summary, description, installed, wanted, active, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (canonical_name) DO UPDATE SET
			name = excluded.name, flavor = excluded.flavor,
			version = excluded.version, arch = excluded.arch,
			publisher = excluded.publisher, summary = excluded.summary,
			description = excluded.description, installed = excluded.installed,
			wanted = excluded.wanted, active = excluded.active,
			published_at = excluded.published_at
	`,
		spec.CanonicalName, spec.Name, spec.Flavor, spec.Version, spec.Arch, spec.Publisher,
		spec.Summary, spec.Description, spec.Installed, spec.Wanted, spec.Active, formatTime(spec.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert package %s: %w", spec.CanonicalName, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE package = ?`, spec.CanonicalName); err != nil {
		return fmt.Errorf("failed to clear dependencies of %s: %w", spec.CanonicalName, err)
	}
	for i, dep := range spec.Dependencies {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (package, dependency, position) VALUES (?, ?, ?)
		`, spec.CanonicalName, dep, i)
		if err != nil {
			return fmt.Errorf("failed to insert dependency of %s: %w", spec.CanonicalName, err)
		}
	}
	return nil
}

// ReplacePackages replaces the whole catalogue
func (s *LibSQL) ReplacePackages(ctx context.Context, specs []catalog.Spec) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies`); err != nil {
			return fmt.Errorf("failed to clear dependencies: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM packages`); err != nil {
			return fmt.Errorf("failed to clear packages: %w", err)
		}
		for _, spec := range specs {
			if err := putPackage(ctx, tx, spec); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutPackages inserts or updates packages
func (s *LibSQL) PutPackages(ctx context.Context, specs []catalog.Spec) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, spec := range specs {
			if err := putPackage(ctx, tx, spec); err != nil {
				return err
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPackage(row scanner) (*catalog.Spec, error) {
	spec := &catalog.Spec{}
	var published string
	err := row.Scan(
		&spec.CanonicalName, &spec.Name, &spec.Flavor, &spec.Version, &spec.Arch, &spec.Publisher,
		&spec.Summary, &spec.Description, &spec.Installed, &spec.Wanted, &spec.Active, &published,
	)
	if err != nil {
		return nil, err
	}
	if spec.PublishedAt, err = parseTime(published); err != nil {
		return nil, fmt.Errorf("invalid publish date of %s: %w", spec.CanonicalName, err)
	}
	return spec, nil
}

const selectPackages = `
	SELECT canonical_name, name, flavor, version, arch, publisher,
		   summary, description, installed, wanted, active, published_at
	FROM packages
`

func (s *LibSQL) dependencies(ctx context.Context, where string, args ...any) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT package, dependency FROM dependencies
	`+where+`
		ORDER BY package, position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	for rows.Next() {
		var pkg, dep string
		if err := rows.Scan(&pkg, &dep); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps[pkg] = append(deps[pkg], dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dependencies: %w", err)
	}
	return deps, nil
}

// GetPackage gets a package by canonical name. It returns nil if the package
// does not exist.
func (s *LibSQL) GetPackage(ctx context.Context, name string) (*catalog.Spec, error) {
	spec, err := scanPackage(s.db.QueryRowContext(ctx, selectPackages+`WHERE canonical_name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}

	deps, err := s.dependencies(ctx, `WHERE package = ?`, name)
	if err != nil {
		return nil, err
	}
	spec.Dependencies = deps[name]
	return spec, nil
}

// ListPackages lists all packages ordered by canonical name
func (s *LibSQL) ListPackages(ctx context.Context) ([]catalog.Spec, error) {
	rows, err := s.db.QueryContext(ctx, selectPackages+`ORDER BY canonical_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var specs []catalog.Spec
	for rows.Next() {
		spec, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		specs = append(specs, *spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate packages: %w", err)
	}

	deps, err := s.dependencies(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range specs {
		specs[i].Dependencies = deps[specs[i].CanonicalName]
	}
	return specs, nil
}

// SetInstalled records the install state of a package
func (s *LibSQL) SetInstalled(ctx context.Context, name string, installed bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE packages SET installed = ? WHERE canonical_name = ?
	`, installed, name)
	if err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("package %w: %s", ErrNotFound, name)
	}
	return nil
}

// DeletePackage deletes a package and its dependency edges
func (s *LibSQL) DeletePackage(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE canonical_name = ?`, name)
		if err != nil {
			return fmt.Errorf("failed to delete package: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("package %w: %s", ErrNotFound, name)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE package = ?`, name); err != nil {
			return fmt.Errorf("failed to delete dependencies: %w", err)
		}
		return nil
	})
}

// ListFilters lists the stored filters in position order, or the default
// filters when none are stored
func (s *LibSQL) ListFilters(ctx context.Context) ([]Filter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, query, position FROM filters ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	defer rows.Close()

	var filters []Filter
	for rows.Next() {
		var f Filter
		if err := rows.Scan(&f.Name, &f.Query, &f.Position); err != nil {
			return nil, fmt.Errorf("failed to scan filter: %w", err)
		}
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate filters: %w", err)
	}

	if len(filters) == 0 {
		return DefaultFilters(), nil
	}
	return filters, nil
}

// SaveFilter inserts or replaces a filter. The first saved filter also stores
// the defaults so they stay visible.
func (s *LibSQL) SaveFilter(ctx context.Context, f Filter) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM filters`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count filters: %w", err)
		}

		filters := []Filter{f}
		if count == 0 {
			filters = append(DefaultFilters(), f)
		}

		for _, f := range filters {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO filters (name, query, position) VALUES (?, ?, ?)
				ON CONFLICT (name) DO UPDATE SET query = excluded.query, position = excluded.position
			`, f.Name, f.Query, f.Position)
			if err != nil {
				return fmt.Errorf("failed to save filter %s: %w", f.Name, err)
			}
		}
		return nil
	})
}

// DeleteFilter deletes a filter
func (s *LibSQL) DeleteFilter(ctx context.Context, name string) error {
	filters, err := s.ListFilters(ctx)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		found := false
		for _, f := range filters {
			if f.Name == name {
				found = true
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO filters (name, query, position) VALUES (?, ?, ?)
				ON CONFLICT (name) DO NOTHING
			`, f.Name, f.Query, f.Position)
			if err != nil {
				return fmt.Errorf("failed to save filter %s: %w", f.Name, err)
			}
		}
		if !found {
			return fmt.Errorf("filter %w: %s", ErrNotFound, name)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM filters WHERE name = ?`, name); err != nil {
			return fmt.Errorf("failed to delete filter: %w", err)
		}
		return nil
	})
}

// SaveMarks replaces the stored marks
func (s *LibSQL) SaveMarks(ctx context.Context, m map[string]marks.Mark) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM marks`); err != nil {
			return fmt.Errorf("failed to clear marks: %w", err)
		}
		for name, mark := range m {
			if mark == marks.Unmarked {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO marks (canonical_name, mark) VALUES (?, ?)
			`, name, mark.String())
			if err != nil {
				return fmt.Errorf("failed to save mark of %s: %w", name, err)
			}
		}
		return nil
	})
}

// LoadMarks loads the stored marks keyed by canonical name
func (s *LibSQL) LoadMarks(ctx context.Context) (map[string]marks.Mark, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT canonical_name, mark FROM marks`)
	if err != nil {
		return nil, fmt.Errorf("failed to list marks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]marks.Mark)
	for rows.Next() {
		var name, text string
		if err := rows.Scan(&name, &text); err != nil {
			return nil, fmt.Errorf("failed to scan mark: %w", err)
		}
		m, err := marks.ParseMark(text)
		if err != nil {
			return nil, fmt.Errorf("invalid mark of %s: %w", name, err)
		}
		out[name] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate marks: %w", err)
	}
	return out, nil
}

// Close closes the database connection
func (s *LibSQL) Close() error {
	return s.db.Close()
}
