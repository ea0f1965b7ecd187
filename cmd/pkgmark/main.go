package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dikkadev/pkgmark/pkg/config"
	"github.com/dikkadev/pkgmark/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:   "pkgmark",
		Short: "pkgmark: mark packages for installation, update and removal",
		Long: `Browse a package catalogue and mark packages for installation,
reinstallation, update or removal. Marks follow the dependency graph and
persist between runs until they are applied.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Configure(cfg.LogFormat); err != nil {
				return err
			}
			if err := logger.Set(cfg.LogLevel); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().BoolVarP(&a.yes, "yes", "y", false, "Accept changes to other packages without asking")

	root.AddCommand(
		newListCmd(a),
		newMarkCmd(a),
		newUnmarkCmd(a),
		newPlanCmd(a),
		newApplyCmd(a),
		newCatalogCmd(a),
		newMarkingsCmd(a),
		newFilterCmd(a),
		newConfigCmd(a),
		newBrowseCmd(a),
	)
	return root
}
