package catalog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-version"
)

// CorePackageName is the name of the bootstrap package that can never be
// removed or reinstalled while it is active.
const CorePackageName = "coapp"

// Spec is the input record a package is built from
type Spec struct {
	CanonicalName string    `yaml:"canonical_name"`
	Name          string    `yaml:"name"`
	Flavor        string    `yaml:"flavor,omitempty"`
	Version       string    `yaml:"version"`
	Arch          string    `yaml:"arch"`
	Publisher     string    `yaml:"publisher,omitempty"`
	Summary       string    `yaml:"summary,omitempty"`
	Description   string    `yaml:"description,omitempty"`
	Installed     bool      `yaml:"installed,omitempty"`
	Wanted        bool      `yaml:"wanted,omitempty"`
	Active        bool      `yaml:"active,omitempty"`
	PublishedAt   time.Time `yaml:"published_at,omitempty"`
	Dependencies  []string  `yaml:"dependencies,omitempty"`
}

// Package is a package of a catalogue. Relationships are resolved by the
// owning Catalog.
type Package struct {
	spec    Spec
	version *version.Version
	index   int

	dependencies      []int
	dependents        []int
	newer             []int
	updates           []int
	installedNewest   int
	missingDependency bool
}

// Spec returns a copy of the record the package was built from
func (p *Package) Spec() Spec {
	s := p.spec
	s.Dependencies = append([]string(nil), p.spec.Dependencies...)
	return s
}

func (p *Package) CanonicalName() string { return p.spec.CanonicalName }
func (p *Package) Name() string          { return p.spec.Name }
func (p *Package) Flavor() string        { return p.spec.Flavor }
func (p *Package) Version() string       { return p.spec.Version }
func (p *Package) Arch() string          { return p.spec.Arch }
func (p *Package) Publisher() string     { return p.spec.Publisher }
func (p *Package) Summary() string       { return p.spec.Summary }
func (p *Package) Description() string   { return p.spec.Description }
func (p *Package) PublishedAt() time.Time {
	return p.spec.PublishedAt
}

// IsInstalled reports whether the package is installed
func (p *Package) IsInstalled() bool { return p.spec.Installed }

// IsLocked reports whether the package is wanted, which excludes it from
// automatic update and removal.
func (p *Package) IsLocked() bool { return p.spec.Wanted }

// IsActive reports whether the package is the active version of its group
func (p *Package) IsActive() bool { return p.spec.Active }

// IsCore reports whether the package is the bootstrap package
func (p *Package) IsCore() bool { return p.spec.Name == CorePackageName }

// IsNewest reports whether no newer version of the package exists
func (p *Package) IsNewest() bool { return len(p.newer) == 0 }

// SemVer returns the parsed version
func (p *Package) SemVer() *version.Version { return p.version }

// SortName orders packages by name, flavor, version and architecture
func (p *Package) SortName() string {
	return fmt.Sprintf("%s;%s;%s;%s", p.spec.Name, p.spec.Flavor, sortableVersion(p.version), p.spec.Arch)
}

// String returns the display name of the package
func (p *Package) String() string {
	s := p.spec.Name
	if p.spec.Flavor != "" {
		s += "[" + p.spec.Flavor + "]"
	}
	return s + "-" + p.spec.Version + "-" + p.spec.Arch
}

func sortableVersion(v *version.Version) string {
	var out string
	for i, seg := range v.Segments64() {
		if i > 0 {
			out += "."
		}
		s := strconv.FormatInt(seg, 10)
		for len(s) < 8 {
			s = "0" + s
		}
		out += s
	}
	return out
}

// Status is the install state of a package derived from the catalogue
type Status int

const (
	StatusUnknown Status = iota
	NotInstalled
	NotInstalledLocked
	NotInstalledNew
	Installed
	InstalledUpdatable
	InstalledLocked
	Broken
)

var statusNames = map[Status]string{
	StatusUnknown:      "Unknown",
	NotInstalled:       "NotInstalled",
	NotInstalledLocked: "NotInstalledLocked",
	NotInstalledNew:    "NotInstalledNew",
	Installed:          "Installed",
	InstalledUpdatable: "InstalledUpdatable",
	InstalledLocked:    "InstalledLocked",
	Broken:             "Broken",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// IsInstalled reports whether the status describes an installed package
func (s Status) IsInstalled() bool {
	return s == Installed || s == InstalledUpdatable || s == InstalledLocked || s == Broken
}
