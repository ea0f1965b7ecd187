package marks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dikkadev/pkgmark/pkg/catalog"
)

// Provider exposes the package graph of the working set
type Provider interface {
	Packages() []*catalog.Package
	Lookup(name string) (*catalog.Package, bool)
	Dependencies(p *catalog.Package) ([]*catalog.Package, error)
	Dependents(p *catalog.Package) ([]*catalog.Package, error)
	UpdateCandidates(p *catalog.Package) ([]*catalog.Package, error)
	Status(p *catalog.Package) catalog.Status
}

// Options configures an Engine
type Options struct {
	// Gate confirms closures that touch more than the target package. A nil
	// gate accepts them without asking.
	Gate   Gate
	Logger *zerolog.Logger
}

// Engine owns the explicit marks of a working set and keeps them consistent
// with the dependency graph. All operations are serialized.
type Engine struct {
	mu         sync.Mutex
	provider   Provider
	marks      map[string]Mark
	generation uint64
	// revision counts committed mark changes
	revision uint64
	// cascaded maps a closure member to the target whose operation marked it
	cascaded map[string]string

	gate Gate
	log  zerolog.Logger

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSub     int

	refreshing atomic.Bool
}

// Entry is a package of the working set together with its effective mark
type Entry struct {
	Package *catalog.Package
	State   State
}

// New creates an engine over the packages of provider with no marks set
func New(provider Provider, opts Options) *Engine {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Engine{
		provider:    provider,
		marks:       make(map[string]Mark),
		cascaded:    make(map[string]string),
		gate:        opts.Gate,
		log:         log,
		subscribers: make(map[int]func()),
	}
}

// Subscribe registers fn to be called after every committed change. The
// returned function removes the subscription.
func (e *Engine) Subscribe(fn func()) func() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = fn

	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subscribers, id)
	}
}

func (e *Engine) notify() {
	e.subMu.Lock()
	ids := make([]int, 0, len(e.subscribers))
	for id := range e.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.subscribers[id])
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (e *Engine) lookup(name string) (*catalog.Package, error) {
	p, ok := e.provider.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}
	return p, nil
}

func (e *Engine) markOf(p *catalog.Package) Mark {
	return e.marks[p.CanonicalName()]
}

// legal holds the marking rules. current is the explicit mark of p.
func legal(status catalog.Status, p *catalog.Package, current, proposed Mark) bool {
	if status == catalog.StatusUnknown {
		return true
	}
	if current == proposed {
		return false
	}
	if current != Unmarked && proposed != Unmarked {
		return false
	}

	switch proposed {
	case MarkedForUpdate:
		return status == catalog.InstalledUpdatable
	case MarkedForInstallation:
		return status == catalog.NotInstalled || status == catalog.NotInstalledNew
	case MarkedForReinstallation, MarkedForRemoval:
		removable := status == catalog.Installed ||
			status == catalog.InstalledUpdatable ||
			status == catalog.Broken
		return removable && !(p.IsActive() && p.IsCore())
	}
	return true
}

func (e *Engine) canMark(p *catalog.Package, m Mark) bool {
	return legal(e.provider.Status(p), p, e.markOf(p), m)
}

// set applies m to p if the rules allow it
func (e *Engine) set(p *catalog.Package, m Mark) bool {
	if !e.canMark(p, m) {
		return false
	}
	delete(e.cascaded, p.CanonicalName())
	if m == Unmarked {
		delete(e.marks, p.CanonicalName())
	} else {
		e.marks[p.CanonicalName()] = m
	}
	return true
}

// CanMark reports whether the package may be given mark m. Unknown packages
// can never be marked.
func (e *Engine) CanMark(name string, m Mark) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.lookup(name)
	if err != nil {
		return false
	}
	return e.canMark(p, m)
}

// Capabilities returns the operations currently legal on the package
func (e *Engine) Capabilities(name string) Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.lookup(name)
	if err != nil {
		return Capabilities{}
	}
	return Capabilities{
		Unmark:    e.canMark(p, Unmarked),
		Install:   e.canMark(p, MarkedForInstallation),
		Reinstall: e.canMark(p, MarkedForReinstallation),
		Update:    e.canMark(p, MarkedForUpdate),
		Remove:    e.canMark(p, MarkedForRemoval),
	}
}

// State returns the effective mark of the package
func (e *Engine) State(name string) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.lookup(name)
	if err != nil {
		return State{}, err
	}
	return State{Mark: e.markOf(p), Status: e.provider.Status(p)}, nil
}

// Lookup finds a package of the working set by canonical name
func (e *Engine) Lookup(name string) (*catalog.Package, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.provider.Lookup(name)
}

// Entries returns every package of the working set with its effective mark,
// ordered by sort name.
func (e *Engine) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	packages := e.provider.Packages()
	out := make([]Entry, len(packages))
	for i, p := range packages {
		out[i] = Entry{Package: p, State: State{Mark: e.markOf(p), Status: e.provider.Status(p)}}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Package.SortName() < out[j].Package.SortName()
	})
	return out
}

// Propose computes the closure of an operation without changing anything
func (e *Engine) Propose(action Action, name string) (*Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	prop, err := e.propose(action, p)
	if err != nil {
		return nil, err
	}

	e.log.Debug().
		Str("action", action.String()).
		Str("package", p.CanonicalName()).
		Int("install", len(prop.Install)).
		Int("update", len(prop.Update)).
		Int("remove", len(prop.Remove)).
		Msg("computed closure")
	return prop, nil
}

// Commit applies a proposal. When marks changed since the proposal was
// computed, the closure is computed again and must be unchanged; otherwise, or
// when the catalogue was refreshed, Commit fails with ErrStaleProposal.
func (e *Engine) Commit(prop *Proposal) error {
	e.mu.Lock()
	err := e.commit(prop)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.log.Info().
		Str("action", prop.Action.String()).
		Str("package", prop.Target.CanonicalName()).
		Int("additional", prop.Len()).
		Msg("committed marks")
	e.notify()
	return nil
}

func (e *Engine) commit(prop *Proposal) error {
	if prop.generation != e.generation {
		return ErrStaleProposal
	}
	if prop.revision != e.revision {
		fresh, err := e.propose(prop.Action, prop.Target)
		if err != nil {
			return err
		}
		if !sameClosure(fresh, prop) {
			return ErrStaleProposal
		}
	}
	if !e.canMark(prop.Target, prop.targetMark) {
		return illegal(prop.Target, prop.targetMark)
	}

	unmark := prop.Action == ActionUnmark
	assign := func(packages []*catalog.Package, m Mark) {
		if unmark {
			m = Unmarked
		}
		for _, p := range packages {
			if e.set(p, m) && !unmark {
				e.cascaded[p.CanonicalName()] = prop.Target.CanonicalName()
			}
		}
	}
	assign(prop.Install, MarkedForInstallation)
	assign(prop.Update, MarkedForInstallation)
	assign(prop.Remove, MarkedForRemoval)

	e.set(prop.Target, prop.targetMark)
	e.revision++
	return nil
}

// maxAttempts bounds how often an operation is proposed again after marks
// changed while it waited for confirmation
const maxAttempts = 3

func (e *Engine) run(ctx context.Context, action Action, name string) error {
	for attempt := 1; ; attempt++ {
		err := e.attempt(ctx, action, name)
		if !errors.Is(err, ErrStaleProposal) || attempt == maxAttempts {
			return err
		}
		e.log.Debug().
			Str("action", action.String()).
			Str("package", name).
			Int("attempt", attempt).
			Msg("marks changed before commit, proposing again")
	}
}

func (e *Engine) attempt(ctx context.Context, action Action, name string) error {
	prop, err := e.Propose(action, name)
	if err != nil {
		return err
	}

	if !prop.Empty() && e.gate != nil {
		ok, err := e.gate.Confirm(ctx, prop)
		if err != nil {
			return fmt.Errorf("failed to confirm changes: %w", err)
		}
		if !ok {
			e.log.Debug().Str("package", name).Msg("closure declined")
			return ErrDeclined
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.Commit(prop)
}

// MarkForInstallation marks the package and its installable dependencies for installation
func (e *Engine) MarkForInstallation(ctx context.Context, name string) error {
	return e.run(ctx, ActionInstall, name)
}

// MarkForReinstallation marks the package for reinstallation and its
// installable dependencies for installation
func (e *Engine) MarkForReinstallation(ctx context.Context, name string) error {
	return e.run(ctx, ActionReinstall, name)
}

// MarkForUpdate marks the package for update and installs its newest update candidate
func (e *Engine) MarkForUpdate(ctx context.Context, name string) error {
	return e.run(ctx, ActionUpdate, name)
}

// MarkForRemoval marks the package and everything depending on it for removal
func (e *Engine) MarkForRemoval(ctx context.Context, name string) error {
	return e.run(ctx, ActionRemove, name)
}

// Unmark reverts the explicit mark of the package together with the marks
// that only exist because of it
func (e *Engine) Unmark(ctx context.Context, name string) error {
	return e.run(ctx, ActionUnmark, name)
}

// Apply runs action on the package
func (e *Engine) Apply(ctx context.Context, action Action, name string) error {
	if _, ok := actionNames[action]; !ok {
		return fmt.Errorf("unknown action: %s", action)
	}
	return e.run(ctx, action, name)
}

// UnmarkAll clears every explicit mark
func (e *Engine) UnmarkAll() {
	e.mu.Lock()
	e.marks = make(map[string]Mark)
	e.cascaded = make(map[string]string)
	e.revision++
	e.mu.Unlock()

	e.log.Info().Msg("cleared all marks")
	e.notify()
}

// LikelyAction returns the most likely action on a package: installation of
// a package that is not installed, or unmarking it again. It reports false
// when no such action applies.
func (e *Engine) LikelyAction(name string) (Action, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.lookup(name)
	if err != nil {
		return ActionUnmark, false, err
	}
	if p.IsLocked() {
		return ActionUnmark, false, nil
	}
	status := e.provider.Status(p)
	if status != catalog.NotInstalled && status != catalog.NotInstalledNew {
		return ActionUnmark, false, nil
	}
	if e.markOf(p) == Unmarked {
		return ActionInstall, true, nil
	}
	return ActionUnmark, true, nil
}

// QuickMark runs the likely action of a package. It reports whether an
// action applied.
func (e *Engine) QuickMark(ctx context.Context, name string) (bool, error) {
	action, ok, err := e.LikelyAction(name)
	if err != nil || !ok {
		return false, err
	}
	return true, e.run(ctx, action, name)
}
