package marks

import (
	"fmt"
	"sort"

	"github.com/dikkadev/pkgmark/pkg/catalog"
)

// Plan lists the packages an apply run would touch, each list in sort name order
type Plan struct {
	Install   []*catalog.Package
	Reinstall []*catalog.Package
	Update    []*catalog.Package
	Remove    []*catalog.Package
	// Replacements maps each package of Update, by canonical name, to the
	// newer version that replaces it
	Replacements map[string]*catalog.Package
}

// Empty reports whether the plan changes nothing
func (p Plan) Empty() bool {
	return len(p.Install) == 0 && len(p.Reinstall) == 0 && len(p.Update) == 0 && len(p.Remove) == 0
}

func countLine(n int, verb string) string {
	s := ""
	if n > 1 {
		s = "s"
	}
	return fmt.Sprintf("%d package%s will be %s", n, s, verb)
}

// Summary returns one line per non-empty list
func (p Plan) Summary() []string {
	var lines []string
	for _, l := range []struct {
		n    int
		verb string
	}{
		{len(p.Install), "installed"},
		{len(p.Reinstall), "reinstalled"},
		{len(p.Update), "updated"},
		{len(p.Remove), "removed"},
	} {
		if l.n > 0 {
			lines = append(lines, countLine(l.n, l.verb))
		}
	}
	return lines
}

// Plan collects the marked packages
func (e *Engine) Plan() Plan {
	e.mu.Lock()
	defer e.mu.Unlock()

	var plan Plan
	for _, p := range e.provider.Packages() {
		switch e.markOf(p) {
		case MarkedForInstallation:
			plan.Install = append(plan.Install, p)
		case MarkedForReinstallation:
			plan.Reinstall = append(plan.Reinstall, p)
		case MarkedForUpdate:
			plan.Update = append(plan.Update, p)
			u, err := e.updateTarget(p)
			if err != nil {
				e.log.Warn().Err(err).Str("package", p.CanonicalName()).Msg("failed to find update target")
				continue
			}
			if u != nil {
				if plan.Replacements == nil {
					plan.Replacements = make(map[string]*catalog.Package)
				}
				plan.Replacements[p.CanonicalName()] = u
			}
		case MarkedForRemoval:
			plan.Remove = append(plan.Remove, p)
		}
	}

	for _, list := range [][]*catalog.Package{plan.Install, plan.Reinstall, plan.Update, plan.Remove} {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].SortName() < list[j].SortName()
		})
	}
	return plan
}

// Stats are the counters of the status line
type Stats struct {
	Listed    int
	Installed int
	Broken    int
	ToInstall int
	ToRemove  int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d packages listed, %d installed, %d broken, %d to install, %d to remove",
		s.Listed, s.Installed, s.Broken, s.ToInstall, s.ToRemove)
}

// Stats counts the working set
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var s Stats
	for _, p := range e.provider.Packages() {
		s.Listed++
		switch e.provider.Status(p) {
		case catalog.Installed, catalog.InstalledLocked, catalog.InstalledUpdatable:
			s.Installed++
		case catalog.Broken:
			s.Broken++
		}
		switch e.markOf(p) {
		case MarkedForInstallation:
			s.ToInstall++
		case MarkedForRemoval:
			s.ToRemove++
		}
	}
	return s
}

// Marks returns a copy of the explicit marks keyed by canonical name
func (e *Engine) Marks() map[string]Mark {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]Mark, len(e.marks))
	for name, m := range e.marks {
		out[name] = m
	}
	return out
}

// RestoreMarks reapplies saved marks to the packages that still exist. Marks
// that are no longer legal are dropped. Restored marks count as set on their
// own. It returns the number of marks set.
func (e *Engine) RestoreMarks(saved map[string]Mark) int {
	e.mu.Lock()
	n := 0
	for name, m := range saved {
		if m == Unmarked {
			continue
		}
		p, ok := e.provider.Lookup(name)
		if !ok {
			continue
		}
		if e.set(p, m) {
			n++
		}
	}
	if n > 0 {
		e.revision++
	}
	e.mu.Unlock()

	if n > 0 {
		e.log.Info().Int("marks", n).Msg("restored marks")
		e.notify()
	}
	return n
}
