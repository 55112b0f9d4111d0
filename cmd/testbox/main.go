package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgorman/testbox/internal/ui"
	"github.com/rickgorman/testbox/pkg/fixture"
)

// Set with -ldflags at build time.
var version = "dev"

type globalFlags struct {
	file    string
	verbose bool
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err == nil {
		return
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	ui.Fail("%v", err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "testbox",
		Short: "Start disposable containers for tests",
		Long: `testbox starts the containers listed in testbox.yaml, waits until each one
is ready and tears them down again when you are done.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("testbox version {{.Version}}\n")

	root.PersistentFlags().StringVarP(&flags.file, "file", "f", "", "fixture file (default is testbox.yaml at the repository root)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log every startup stage")

	root.AddCommand(newUpCmd(flags))
	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of testbox",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "testbox version %s\n", version)
		},
	}
}

// newLogger logs warnings to w, or every stage with verbose set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newOrchestrator(flags *globalFlags) (*fixture.Orchestrator, error) {
	opts := []fixture.Option{fixture.WithLogger(newLogger(os.Stderr, flags.verbose))}
	if flags.verbose {
		opts = append(opts, fixture.WithPullProgress(ui.Out))
	}
	return fixture.NewDocker(opts...)
}

// exitCodeError carries the exit code of a command run by testbox.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
