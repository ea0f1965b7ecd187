package marks

import (
	"sort"

	"github.com/hashicorp/go-version"

	"github.com/dikkadev/pkgmark/pkg/catalog"
)

type edges func(p *catalog.Package) ([]*catalog.Package, error)

// walk returns every package reachable from the roots through next, without
// the roots themselves, ordered by canonical name
func walk(next edges, roots ...*catalog.Package) ([]*catalog.Package, error) {
	seen := make(map[*catalog.Package]bool)
	for _, r := range roots {
		seen[r] = true
	}

	var out []*catalog.Package
	queue := append([]*catalog.Package(nil), roots...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		related, err := next(p)
		if err != nil {
			return nil, err
		}
		for _, q := range related {
			if seen[q] {
				continue
			}
			seen[q] = true
			out = append(out, q)
			queue = append(queue, q)
		}
	}

	sortPackages(out)
	return out, nil
}

func sortPackages(packages []*catalog.Package) {
	sort.Slice(packages, func(i, j int) bool {
		return packages[i].CanonicalName() < packages[j].CanonicalName()
	})
}

func sameMembers(a, b []*catalog.Package) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameClosure reports whether two proposals change the same packages
func sameClosure(a, b *Proposal) bool {
	return sameMembers(a.Install, b.Install) &&
		sameMembers(a.Update, b.Update) &&
		sameMembers(a.Remove, b.Remove)
}

func filter(packages []*catalog.Package, keep func(*catalog.Package) bool) []*catalog.Package {
	var out []*catalog.Package
	for _, p := range packages {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// newestCandidate picks the update candidate with the highest version
func newestCandidate(candidates []*catalog.Package) *catalog.Package {
	var best *catalog.Package
	var bestVersion *version.Version
	for _, c := range candidates {
		v := c.SemVer()
		if best == nil || v.GreaterThan(bestVersion) {
			best, bestVersion = c, v
		}
	}
	return best
}

func (e *Engine) updateTarget(p *catalog.Package) (*catalog.Package, error) {
	candidates, err := e.provider.UpdateCandidates(p)
	if err != nil {
		return nil, err
	}
	return newestCandidate(candidates), nil
}

func (e *Engine) markedAs(m Mark) func(*catalog.Package) bool {
	return func(p *catalog.Package) bool {
		return e.markOf(p) == m
	}
}

func (e *Engine) eligibleFor(m Mark) func(*catalog.Package) bool {
	return func(p *catalog.Package) bool {
		return e.canMark(p, m)
	}
}

// propose computes the closure of action on p. The caller holds e.mu.
func (e *Engine) propose(action Action, p *catalog.Package) (*Proposal, error) {
	prop := &Proposal{
		Action:     action,
		Target:     p,
		generation: e.generation,
		revision:   e.revision,
	}

	switch action {
	case ActionInstall:
		prop.targetMark = MarkedForInstallation
	case ActionReinstall:
		prop.targetMark = MarkedForReinstallation
	case ActionUpdate:
		prop.targetMark = MarkedForUpdate
	case ActionRemove:
		prop.targetMark = MarkedForRemoval
	case ActionUnmark:
		prop.targetMark = Unmarked
	}

	if !e.canMark(p, prop.targetMark) {
		return nil, illegal(p, prop.targetMark)
	}

	var err error
	switch action {
	case ActionInstall, ActionReinstall:
		err = e.proposeInstall(prop)
	case ActionUpdate:
		err = e.proposeUpdate(prop)
	case ActionRemove:
		err = e.proposeRemove(prop)
	case ActionUnmark:
		err = e.proposeUnmark(prop)
	}
	if err != nil {
		return nil, closureFailed(err)
	}
	return prop, nil
}

func (e *Engine) proposeInstall(prop *Proposal) error {
	deps, err := walk(e.provider.Dependencies, prop.Target)
	if err != nil {
		return err
	}
	prop.Install = filter(deps, e.eligibleFor(MarkedForInstallation))
	return nil
}

func (e *Engine) proposeUpdate(prop *Proposal) error {
	u, err := e.updateTarget(prop.Target)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}

	deps, err := walk(e.provider.Dependencies, u)
	if err != nil {
		return err
	}
	prop.Install = filter(deps, func(d *catalog.Package) bool {
		return d != prop.Target && e.canMark(d, MarkedForInstallation)
	})
	if e.canMark(u, MarkedForInstallation) {
		prop.Install = append(prop.Install, u)
		sortPackages(prop.Install)
	}
	return nil
}

func (e *Engine) proposeRemove(prop *Proposal) error {
	dependents, err := walk(e.provider.Dependents, prop.Target)
	if err != nil {
		return err
	}
	prop.Remove = filter(dependents, e.eligibleFor(MarkedForRemoval))
	return nil
}

func (e *Engine) proposeUnmark(prop *Proposal) error {
	p := prop.Target

	switch e.markOf(p) {
	case MarkedForInstallation:
		for _, q := range e.provider.Packages() {
			if e.markOf(q) != MarkedForUpdate {
				continue
			}
			candidates, err := e.provider.UpdateCandidates(q)
			if err != nil {
				return err
			}
			for _, c := range candidates {
				if c == p {
					prop.Update = append(prop.Update, q)
					break
				}
			}
		}
		sortPackages(prop.Update)

		dependents, err := walk(e.provider.Dependents, p)
		if err != nil {
			return err
		}
		prop.Install = filter(dependents, e.markedAs(MarkedForInstallation))

		return e.releaseOrphans(prop, p)

	case MarkedForUpdate:
		u, err := e.updateTarget(p)
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		if e.markOf(u) == MarkedForInstallation {
			prop.Update = []*catalog.Package{u}
		}

		dependents, err := walk(e.provider.Dependents, u)
		if err != nil {
			return err
		}
		prop.Install = filter(dependents, func(d *catalog.Package) bool {
			return d != p && e.markOf(d) == MarkedForInstallation
		})

		return e.releaseOrphans(prop, u)

	case MarkedForRemoval:
		deps, err := walk(e.provider.Dependencies, p)
		if err != nil {
			return err
		}
		prop.Remove = filter(deps, e.markedAs(MarkedForRemoval))
	}
	return nil
}

// releaseOrphans adds to the unmark closure the dependencies of root that an
// earlier closure marked for installation and that no package staying marked
// still needs. Marks set on their own are never released.
func (e *Engine) releaseOrphans(prop *Proposal, root *catalog.Package) error {
	released := map[*catalog.Package]bool{prop.Target: true, root: true}
	for _, q := range prop.Install {
		released[q] = true
	}
	for _, q := range prop.Update {
		released[q] = true
	}

	deps, err := walk(e.provider.Dependencies, root)
	if err != nil {
		return err
	}
	candidates := filter(deps, func(d *catalog.Package) bool {
		_, cascaded := e.cascaded[d.CanonicalName()]
		return cascaded && !released[d] && e.markOf(d) == MarkedForInstallation
	})
	if len(candidates) == 0 {
		return nil
	}

	candidate := make(map[*catalog.Package]bool, len(candidates))
	for _, c := range candidates {
		candidate[c] = true
	}

	var keepers []*catalog.Package
	for _, q := range e.provider.Packages() {
		if released[q] || candidate[q] {
			continue
		}
		switch e.markOf(q) {
		case MarkedForInstallation, MarkedForReinstallation:
			keepers = append(keepers, q)
		case MarkedForUpdate:
			u, err := e.updateTarget(q)
			if err != nil {
				return err
			}
			if u != nil && !released[u] {
				keepers = append(keepers, u)
			}
		}
	}

	needed := make(map[*catalog.Package]bool)
	for _, k := range keepers {
		needed[k] = true
	}
	if len(keepers) > 0 {
		reachable, err := walk(e.provider.Dependencies, keepers...)
		if err != nil {
			return err
		}
		for _, r := range reachable {
			needed[r] = true
		}
	}

	for _, c := range candidates {
		if !needed[c] {
			prop.Install = append(prop.Install, c)
		}
	}
	sortPackages(prop.Install)
	return nil
}
