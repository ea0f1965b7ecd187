package installer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
)

// Service performs the package operations of an apply run
type Service interface {
	Install(ctx context.Context, p *catalog.Package) error
	Reinstall(ctx context.Context, p *catalog.Package) error
	Remove(ctx context.Context, p *catalog.Package) error
}

// Options represents apply options
type Options struct {
	DryRun bool
	// Out receives progress lines; os.Stdout when nil
	Out    io.Writer
	Logger *zerolog.Logger
}

// Result lists the packages an apply run changed
type Result struct {
	Removed     []*catalog.Package
	Reinstalled []*catalog.Package
	Installed   []*catalog.Package
	// Updated are the superseded versions removed after their update was installed
	Updated []*catalog.Package
}

// Empty reports whether nothing changed
func (r *Result) Empty() bool {
	return len(r.Removed) == 0 && len(r.Reinstalled) == 0 && len(r.Installed) == 0 && len(r.Updated) == 0
}

type step struct {
	verb string
	done string
	list []*catalog.Package
	run  func(context.Context, *catalog.Package) error
	out  *[]*catalog.Package
	// ready checks that a package may be processed, nil means always
	ready func(*catalog.Package) error
}

// Apply executes a plan: removals first, then reinstallations, then
// installations. Packages marked for update are removed last, and only when
// their newer version is installed. A failing package does not stop the run;
// all failures are returned together. Cancelling ctx stops before the next
// package.
func Apply(ctx context.Context, plan marks.Plan, svc Service, opts Options) (*Result, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	result := &Result{}

	// The old version goes only once its replacement is in place
	replaced := func(p *catalog.Package) error {
		u := plan.Replacements[p.CanonicalName()]
		if u == nil {
			return fmt.Errorf("no newer version of %s", p)
		}
		if u.IsInstalled() {
			return nil
		}
		for _, q := range result.Installed {
			if q == u {
				return nil
			}
		}
		return fmt.Errorf("newer version %s was not installed", u)
	}

	steps := []step{
		{"remove", "removed", plan.Remove, svc.Remove, &result.Removed, nil},
		{"reinstall", "reinstalled", plan.Reinstall, svc.Reinstall, &result.Reinstalled, nil},
		{"install", "installed", plan.Install, svc.Install, &result.Installed, nil},
		{"update", "updated", plan.Update, svc.Remove, &result.Updated, replaced},
	}

	var errs *multierror.Error
	for _, s := range steps {
		for _, p := range s.list {
			if err := ctx.Err(); err != nil {
				return result, multierror.Append(errs, err).ErrorOrNil()
			}

			if opts.DryRun {
				fmt.Fprintf(out, "Would %s %s\n", s.verb, p)
				continue
			}

			if s.ready != nil {
				if err := s.ready(p); err != nil {
					log.Warn().Err(err).Str("package", p.CanonicalName()).Msg("skipping " + s.verb)
					errs = multierror.Append(errs, fmt.Errorf("failed to %s %s: %w", s.verb, p, err))
					continue
				}
			}

			log.Debug().Str("package", p.CanonicalName()).Str("step", s.verb).Msg("applying")
			if err := s.run(ctx, p); err != nil {
				log.Error().Err(err).Str("package", p.CanonicalName()).Msg("failed to " + s.verb)
				errs = multierror.Append(errs, fmt.Errorf("failed to %s %s: %w", s.verb, p, err))
				continue
			}

			*s.out = append(*s.out, p)
			fmt.Fprintf(out, "Successfully %s %s\n", s.done, p)
		}
	}

	return result, errs.ErrorOrNil()
}
