package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sahilm/fuzzy"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/config"
	"github.com/dikkadev/pkgmark/pkg/marks"
	"github.com/dikkadev/pkgmark/pkg/storage"
)

// app carries the state shared by all commands
type app struct {
	cfg    *config.Config
	store  *storage.LibSQL
	engine *marks.Engine

	yes bool
	in  io.Reader
	out io.Writer
}

// openStore opens and initializes the store once
func (a *app) openStore(ctx context.Context) (*storage.LibSQL, error) {
	if a.store != nil {
		return a.store, nil
	}

	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	store, err := storage.NewLibSQL(a.cfg.Database())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a.store = store
	return store, nil
}

// gate returns the confirmation gate for cascading changes, nil when no
// confirmation is wanted
func (a *app) gate() marks.Gate {
	if a.yes || !a.cfg.ConfirmCascades {
		return nil
	}
	return promptGate(a.in, a.out)
}

// openEngine loads the catalogue and the saved marks
func (a *app) openEngine(ctx context.Context, gate marks.Gate) (*marks.Engine, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	c, err := storage.LoadCatalog(ctx, store)
	if err != nil {
		return nil, err
	}
	engine := marks.New(c, marks.Options{Gate: gate, Logger: &log.Logger})

	saved, err := store.LoadMarks(ctx)
	if err != nil {
		return nil, err
	}
	if n := engine.RestoreMarks(saved); n < len(saved) {
		log.Warn().Int("saved", len(saved)).Int("restored", n).Msg("some saved marks no longer apply")
	}

	a.engine = engine
	return engine, nil
}

func (a *app) saveMarks(ctx context.Context) error {
	if err := a.store.SaveMarks(ctx, a.engine.Marks()); err != nil {
		return fmt.Errorf("failed to save marks: %w", err)
	}
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// resolve checks that name is in the catalogue and suggests close matches
// when it is not
func (a *app) resolve(name string) error {
	if _, ok := a.engine.Lookup(name); ok {
		return nil
	}

	entries := a.engine.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Package.CanonicalName()
	}
	if s := suggest(name, names, 3); len(s) > 0 {
		return fmt.Errorf("%w: %s (did you mean %s?)", marks.ErrUnknownPackage, name, strings.Join(s, ", "))
	}
	return fmt.Errorf("%w: %s", marks.ErrUnknownPackage, name)
}

// suggest returns up to max names ranked by fuzzy match
func suggest(name string, names []string, max int) []string {
	var out []string
	for _, m := range fuzzy.Find(name, names) {
		if len(out) == max {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// promptGate asks on out and reads a y/N answer from in
func promptGate(in io.Reader, out io.Writer) marks.Gate {
	reader := bufio.NewReader(in)
	return marks.GateFunc(func(ctx context.Context, p *marks.Proposal) (bool, error) {
		fmt.Fprintf(out, "To %s %s these packages change as well:\n", p.Action, p.Target)
		for _, group := range []struct {
			verb string
			list []*catalog.Package
		}{
			{"install", p.Install},
			{"update", p.Update},
			{"remove", p.Remove},
		} {
			for _, pkg := range group.list {
				fmt.Fprintf(out, "  %-8s %s\n", group.verb, pkg)
			}
		}
		fmt.Fprint(out, "Continue? [y/N] ")

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}
