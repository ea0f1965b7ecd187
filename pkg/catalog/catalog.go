package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// ErrForeignPackage is returned when a package does not belong to the catalogue
var ErrForeignPackage = errors.New("package does not belong to this catalogue")

// Catalog is an arena of packages indexed by canonical name. Dependency and
// dependent edges are index lists into the arena.
type Catalog struct {
	packages []*Package
	byName   map[string]int
	now      func() time.Time
}

// Option configures a Catalog
type Option func(*Catalog)

// WithClock sets the clock used to decide whether a package was published today
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// CanonicalName builds the canonical name of a spec that does not carry one
func CanonicalName(s Spec) string {
	parts := []string{s.Name}
	if s.Flavor != "" {
		parts = append(parts, s.Flavor)
	}
	parts = append(parts, s.Version, s.Arch)
	if s.Publisher != "" {
		parts = append(parts, s.Publisher)
	}
	return strings.Join(parts, "-")
}

// New builds a catalogue from specs
func New(specs []Spec, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		packages: make([]*Package, 0, len(specs)),
		byName:   make(map[string]int, len(specs)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("package without name: %q", s.CanonicalName)
		}
		if s.CanonicalName == "" {
			s.CanonicalName = CanonicalName(s)
		}
		if _, ok := c.byName[s.CanonicalName]; ok {
			return nil, fmt.Errorf("duplicate package: %s", s.CanonicalName)
		}

		v, err := version.NewVersion(s.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q of %s: %w", s.Version, s.CanonicalName, err)
		}

		s.Dependencies = append([]string(nil), s.Dependencies...)
		p := &Package{
			spec:            s,
			version:         v,
			index:           len(c.packages),
			installedNewest: -1,
		}
		c.byName[s.CanonicalName] = p.index
		c.packages = append(c.packages, p)
	}

	c.linkDependencies()
	c.linkVersions()
	return c, nil
}

func (c *Catalog) linkDependencies() {
	for _, p := range c.packages {
		seen := make(map[int]bool, len(p.spec.Dependencies))
		for _, name := range p.spec.Dependencies {
			i, ok := c.byName[name]
			if !ok {
				p.missingDependency = true
				continue
			}
			if seen[i] || i == p.index {
				continue
			}
			seen[i] = true
			p.dependencies = append(p.dependencies, i)
			c.packages[i].dependents = append(c.packages[i].dependents, p.index)
		}
	}
}

func groupKey(s Spec) string {
	return strings.Join([]string{s.Name, s.Flavor, s.Arch, s.Publisher}, "\x00")
}

func (c *Catalog) linkVersions() {
	groups := make(map[string][]int)
	for _, p := range c.packages {
		key := groupKey(p.spec)
		groups[key] = append(groups[key], p.index)
	}

	for _, members := range groups {
		sort.SliceStable(members, func(i, j int) bool {
			return c.packages[members[i]].version.LessThan(c.packages[members[j]].version)
		})

		newest := -1
		for _, i := range members {
			if c.packages[i].spec.Installed {
				newest = i
			}
		}

		for _, i := range members {
			p := c.packages[i]
			p.installedNewest = newest
			for _, j := range members {
				q := c.packages[j]
				if !q.version.GreaterThan(p.version) {
					continue
				}
				p.newer = append(p.newer, j)
				if p.spec.Installed && !q.spec.Installed {
					p.updates = append(p.updates, j)
				}
			}
		}
	}
}

// Len returns the number of packages
func (c *Catalog) Len() int {
	return len(c.packages)
}

// Packages returns all packages in catalogue order
func (c *Catalog) Packages() []*Package {
	return append([]*Package(nil), c.packages...)
}

// Lookup finds a package by canonical name
func (c *Catalog) Lookup(name string) (*Package, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return c.packages[i], true
}

// Search returns all packages with the given (non-canonical) name
func (c *Catalog) Search(name string) []*Package {
	var out []*Package
	for _, p := range c.packages {
		if p.spec.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// Specs returns the records of all packages
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, len(c.packages))
	for i, p := range c.packages {
		out[i] = p.Spec()
	}
	return out
}

func (c *Catalog) owns(p *Package) bool {
	return p != nil && p.index >= 0 && p.index < len(c.packages) && c.packages[p.index] == p
}

func (c *Catalog) resolve(p *Package, idx []int) ([]*Package, error) {
	if !c.owns(p) {
		return nil, ErrForeignPackage
	}
	out := make([]*Package, len(idx))
	for i, j := range idx {
		out[i] = c.packages[j]
	}
	return out, nil
}

// Dependencies returns the direct dependencies of p in declaration order
func (c *Catalog) Dependencies(p *Package) ([]*Package, error) {
	if !c.owns(p) {
		return nil, ErrForeignPackage
	}
	return c.resolve(p, p.dependencies)
}

// Dependents returns the packages that directly depend on p
func (c *Catalog) Dependents(p *Package) ([]*Package, error) {
	if !c.owns(p) {
		return nil, ErrForeignPackage
	}
	return c.resolve(p, p.dependents)
}

// UpdateCandidates returns the newer, not installed versions of an installed package
func (c *Catalog) UpdateCandidates(p *Package) ([]*Package, error) {
	if !c.owns(p) {
		return nil, ErrForeignPackage
	}
	return c.resolve(p, p.updates)
}

// NewerPackages returns every newer version of p
func (c *Catalog) NewerPackages(p *Package) ([]*Package, error) {
	if !c.owns(p) {
		return nil, ErrForeignPackage
	}
	return c.resolve(p, p.newer)
}

// Status derives the install state of p
func (c *Catalog) Status(p *Package) Status {
	if !c.owns(p) {
		return StatusUnknown
	}

	if p.spec.Installed {
		switch {
		case p.spec.Wanted:
			return InstalledLocked
		case c.broken(p):
			return Broken
		case p.installedNewest == p.index && len(p.updates) > 0:
			return InstalledUpdatable
		default:
			return Installed
		}
	}

	switch {
	case p.spec.Wanted:
		return NotInstalledLocked
	case c.publishedToday(p):
		return NotInstalledNew
	default:
		return NotInstalled
	}
}

func (c *Catalog) broken(p *Package) bool {
	if p.missingDependency {
		return true
	}
	for _, i := range p.dependencies {
		if !c.packages[i].spec.Installed {
			return true
		}
	}
	return false
}

func (c *Catalog) publishedToday(p *Package) bool {
	if p.spec.PublishedAt.IsZero() {
		return false
	}
	now := c.now()
	y1, m1, d1 := now.Date()
	y2, m2, d2 := p.spec.PublishedAt.In(now.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
