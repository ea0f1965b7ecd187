package marks

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Loader produces a fresh package graph
type Loader func(ctx context.Context) (Provider, error)

// Refreshing reports whether a refresh is running
func (e *Engine) Refreshing() bool {
	return e.refreshing.Load()
}

// Refresh replaces the working set with the graph returned by load. Explicit
// marks on packages that still exist, matched by canonical name, are kept when
// they are still legal. Proposals made before the refresh become stale.
func (e *Engine) Refresh(ctx context.Context, load Loader) error {
	if !e.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer e.refreshing.Store(false)

	provider, err := load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load packages: %w", err)
	}

	e.mu.Lock()
	marks, err := reconcile(ctx, provider, e.marks)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to reapply marks: %w", err)
	}
	dropped := len(e.marks) - len(marks)
	e.provider = provider
	e.marks = marks
	for name := range e.cascaded {
		if _, ok := marks[name]; !ok {
			delete(e.cascaded, name)
		}
	}
	e.generation++
	e.mu.Unlock()

	e.log.Info().
		Int("packages", len(provider.Packages())).
		Int("marks", len(marks)).
		Int("dropped", dropped).
		Msg("refreshed packages")
	e.notify()
	return nil
}

// reconcile checks every old mark against the new graph. Each mark is
// evaluated independently and writes only its own slot.
func reconcile(ctx context.Context, provider Provider, old map[string]Mark) (map[string]Mark, error) {
	type entry struct {
		name string
		mark Mark
		keep bool
	}

	entries := make([]entry, 0, len(old))
	for name, m := range old {
		entries = append(entries, entry{name: name, mark: m})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range entries {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			en := &entries[i]
			p, ok := provider.Lookup(en.name)
			if !ok {
				return nil
			}
			en.keep = legal(provider.Status(p), p, Unmarked, en.mark)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	marks := make(map[string]Mark, len(entries))
	for _, en := range entries {
		if en.keep {
			marks[en.name] = en.mark
		}
	}
	return marks, nil
}
