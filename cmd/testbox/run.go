package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/rickgorman/testbox/internal/ui"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [container...] -- command [args...]",
		Short: "Run a command against freshly started fixtures",
		Long: `Start the named containers, or every container in the fixture file, run
the command with their addresses in the environment and remove the containers
once it exits. For a container named "db" exposing 5432 the command sees:

  TESTBOX_DB_HOST=localhost
  TESTBOX_DB_PORT_5432=49153

testbox exits with the command's exit code.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if cmd.ArgsLenAtDash() < 0 || cmd.ArgsLenAtDash() == len(args) {
				return errors.New("missing command after --")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			names, command := args[:cmd.ArgsLenAtDash()], args[cmd.ArgsLenAtDash():]

			specs, err := loadSpecs(flags.file, names)
			if err != nil {
				return err
			}

			o, err := newOrchestrator(flags)
			if err != nil {
				return err
			}
			defer o.Close()

			ctx := cmd.Context()
			containers, err := startAll(ctx, o, specs)
			if err != nil {
				return err
			}
			defer func() {
				if err := stopAll(containers); err != nil {
					ui.Warn("failed to stop fixtures: %v", err)
				}
			}()

			if flags.verbose {
				if err := printFixtures(ctx, containers, specs); err != nil {
					ui.Warn("%v", err)
				}
			}

			env, err := fixtureEnv(ctx, containers, specs)
			if err != nil {
				return err
			}

			c := exec.CommandContext(ctx, command[0], command[1:]...)
			c.Env = append(os.Environ(), env...)
			c.Stdin = os.Stdin
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()

			if err := c.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return &exitCodeError{code: exitErr.ExitCode()}
				}
				return fmt.Errorf("failed to run %s: %w", command[0], err)
			}
			return nil
		},
	}
}
