package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dikkadev/pkgmark/pkg/browser"
	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/config"
	"github.com/dikkadev/pkgmark/pkg/installer"
	"github.com/dikkadev/pkgmark/pkg/logger"
	"github.com/dikkadev/pkgmark/pkg/marks"
	"github.com/dikkadev/pkgmark/pkg/platform"
	"github.com/dikkadev/pkgmark/pkg/query"
	"github.com/dikkadev/pkgmark/pkg/storage"
)

func newListCmd(a *app) *cobra.Command {
	var native bool

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List packages matching a query",
		Example: `  pkgmark list installed
  pkgmark list "name = git AND version >= 2"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := query.NewFilter()
			if len(args) == 1 {
				if err := filter.Set(args[0]); err != nil {
					return err
				}
			}

			engine, err := a.openEngine(ctx, nil)
			if err != nil {
				return err
			}

			host := platform.Current()
			n := 0
			for _, e := range engine.Entries() {
				if !filter.Match(e.Package) {
					continue
				}
				if native && !host.Supports(e.Package.Arch()) {
					continue
				}
				n++
				fmt.Fprintf(a.out, "%-24s %s\n", e.State, e.Package)
			}
			if n == 0 {
				fmt.Fprintln(a.out, "No packages found")
			}
			fmt.Fprintln(a.out, engine.Stats())
			return nil
		},
	}
	cmd.Flags().BoolVar(&native, "native", false, "Only list packages that run on this machine")
	return cmd
}

func newMarkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "mark {install|reinstall|update|remove} NAME",
		Short:     "Mark a package and the packages it affects",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"install", "reinstall", "update", "remove"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			action, err := marks.ParseAction(args[0])
			if err != nil || action == marks.ActionUnmark {
				return fmt.Errorf("unknown action: %s (expected install, reinstall, update or remove)", args[0])
			}

			engine, err := a.openEngine(ctx, a.gate())
			if err != nil {
				return err
			}
			if err := a.resolve(args[1]); err != nil {
				return err
			}

			if err := engine.Apply(ctx, action, args[1]); err != nil {
				if errors.Is(err, marks.ErrDeclined) {
					fmt.Fprintln(a.out, "Nothing changed")
					return nil
				}
				return err
			}
			if err := a.saveMarks(ctx); err != nil {
				return err
			}

			state, err := engine.State(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s is now %s\n", args[1], state)
			return nil
		},
	}
}

func newUnmarkCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "unmark NAME",
		Short: "Remove the mark of a package, or all marks with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			engine, err := a.openEngine(ctx, a.gate())
			if err != nil {
				return err
			}

			if all {
				engine.UnmarkAll()
				fmt.Fprintln(a.out, "All marks cleared")
				return a.saveMarks(ctx)
			}

			if err := a.resolve(args[0]); err != nil {
				return err
			}
			if err := engine.Unmark(ctx, args[0]); err != nil {
				if errors.Is(err, marks.ErrDeclined) {
					fmt.Fprintln(a.out, "Nothing changed")
					return nil
				}
				return err
			}
			return a.saveMarks(ctx)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every mark")
	return cmd
}

func printPlan(a *app, plan marks.Plan) {
	for _, group := range []struct {
		title string
		list  []*catalog.Package
	}{
		{"Remove", plan.Remove},
		{"Reinstall", plan.Reinstall},
		{"Update", plan.Update},
		{"Install", plan.Install},
	} {
		if len(group.list) == 0 {
			continue
		}
		fmt.Fprintf(a.out, "%s:\n", group.title)
		for _, p := range group.list {
			fmt.Fprintf(a.out, "  %s\n", p)
		}
	}
	for _, line := range plan.Summary() {
		fmt.Fprintln(a.out, line)
	}
}

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.openEngine(cmd.Context(), nil)
			if err != nil {
				return err
			}

			plan := engine.Plan()
			if plan.Empty() {
				fmt.Fprintln(a.out, "No packages marked")
				return nil
			}
			printPlan(a, plan)
			return nil
		},
	}
}

func newApplyCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the marked changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			engine, err := a.openEngine(ctx, nil)
			if err != nil {
				return err
			}

			plan := engine.Plan()
			if plan.Empty() {
				fmt.Fprintln(a.out, "No packages marked")
				return nil
			}

			svc := installer.NewStoreService(a.store, a.cfg.GetDirectories().Receipts)
			result, err := installer.Apply(ctx, plan, svc, installer.Options{
				DryRun: dryRun,
				Out:    a.out,
				Logger: &log.Logger,
			})
			if err != nil {
				return err
			}
			if dryRun {
				return nil
			}

			log.Info().
				Int("removed", len(result.Removed)).
				Int("reinstalled", len(result.Reinstalled)).
				Int("installed", len(result.Installed)).
				Int("updated", len(result.Updated)).
				Msg("applied marks")

			engine.UnmarkAll()
			return a.saveMarks(ctx)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without making changes")
	return cmd
}

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the package catalogue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Replace the catalogue with the packages of a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			specs, err := catalog.ReadFile(args[0])
			if err != nil {
				return err
			}
			if _, err := catalog.New(specs); err != nil {
				return fmt.Errorf("invalid catalogue: %w", err)
			}

			engine, err := a.openEngine(ctx, nil)
			if err != nil {
				return err
			}
			if err := a.store.ReplacePackages(ctx, specs); err != nil {
				return err
			}
			if err := engine.Refresh(ctx, storage.Loader(a.store)); err != nil {
				return err
			}
			if err := a.saveMarks(ctx); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Imported %d packages\n", len(specs))
			return nil
		},
	})
	return cmd
}

func newMarkingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markings",
		Short: "Export or import saved marks",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export FILE",
			Short: "Write the current marks to a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, err := a.openEngine(cmd.Context(), nil)
				if err != nil {
					return err
				}
				m := engine.Marks()
				if err := storage.ExportMarkings(args[0], m); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Exported %d marks to %s\n", len(m), args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "import FILE",
			Short: "Replace the current marks with the marks of a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()

				saved, err := storage.ImportMarkings(args[0])
				if err != nil {
					return err
				}
				engine, err := a.openEngine(ctx, nil)
				if err != nil {
					return err
				}

				engine.UnmarkAll()
				n := engine.RestoreMarks(saved)
				if err := a.saveMarks(ctx); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Imported %d of %d marks\n", n, len(saved))
				return nil
			},
		},
	)
	return cmd
}

func newFilterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Manage the saved filters of the browser",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved filters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				filters, err := store.ListFilters(cmd.Context())
				if err != nil {
					return err
				}
				for _, f := range filters {
					fmt.Fprintf(a.out, "%-16s %s\n", f.Name, f.Query)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add NAME QUERY",
			Short: "Save a filter",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := query.Parse(args[1]); err != nil {
					return err
				}
				store, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				filters, err := store.ListFilters(cmd.Context())
				if err != nil {
					return err
				}

				f := storage.Filter{Name: args[0], Query: args[1], Position: len(filters)}
				for _, existing := range filters {
					if existing.Name == f.Name {
						f.Position = existing.Position
					}
				}
				return store.SaveFilter(cmd.Context(), f)
			},
		},
		&cobra.Command{
			Use:   "remove NAME",
			Short: "Delete a filter",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				return store.DeleteFilter(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, key := range config.Keys() {
					value, err := a.cfg.Get(key)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s = %s\n", key, value)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:       "set KEY VALUE",
			Short:     "Change a setting",
			Args:      cobra.ExactArgs(2),
			ValidArgs: config.Keys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := a.cfg.Save(); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Updated %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse and mark packages interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := a.cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to ensure directories: %w", err)
			}
			// Keep log lines out of the terminal UI
			logFile, err := os.OpenFile(filepath.Join(a.cfg.GetDirectories().Logs, "browse.log"),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer logFile.Close()
			logger.SetWriter(logFile)
			defer func() { _ = logger.Configure(a.cfg.LogFormat) }()

			// The browser asks for confirmation itself
			engine, err := a.openEngine(ctx, nil)
			if err != nil {
				return err
			}
			filters, err := a.store.ListFilters(ctx)
			if err != nil {
				return err
			}

			err = browser.Run(ctx, engine, filters, browser.Options{
				QuickMark: a.cfg.QuickMark,
				Confirm:   a.cfg.ConfirmCascades && !a.yes,
			})
			if err != nil {
				return err
			}
			if err := a.saveMarks(ctx); err != nil {
				return err
			}

			if lines := engine.Plan().Summary(); len(lines) > 0 {
				fmt.Fprintln(a.out, strings.Join(lines, "\n"))
			}
			return nil
		},
	}
}
