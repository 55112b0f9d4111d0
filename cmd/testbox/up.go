package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgorman/testbox/internal/ui"
)

func newUpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up [container...]",
		Short: "Start fixtures and keep them running until interrupted",
		Long: `Start the named containers, or every container in the fixture file, and
print where their ports are published. Press Ctrl-C to stop and remove them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := loadSpecs(flags.file, args)
			if err != nil {
				return err
			}

			o, err := newOrchestrator(flags)
			if err != nil {
				return err
			}
			defer o.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ui.Header()
			ui.Info("Starting %d fixtures", len(specs))
			started := time.Now()

			containers, err := startAll(ctx, o, specs)
			if err != nil {
				ui.Fail("%v", err)
				ui.Footer()
				return err
			}
			if err := printFixtures(ctx, containers, specs); err != nil {
				ui.Warn("%v", err)
			}
			ui.Elapsed("ready", time.Since(started))
			ui.DimMsg("Press Ctrl-C to stop")

			<-ctx.Done()

			ui.BlankLine()
			ui.Info("Stopping fixtures")
			if err := stopAll(containers); err != nil {
				ui.Fail("%v", err)
				ui.Footer()
				return err
			}
			ui.Success("Stopped")
			ui.Footer()
			return nil
		},
	}
}
