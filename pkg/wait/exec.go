package wait

import (
	"context"
	"fmt"
	"time"
)

// ExecStrategy waits until a command run inside the container exits with an
// accepted exit code.
type ExecStrategy struct {
	base
	cmd         []string
	exitMatcher func(int) bool
}

// ForExec waits for cmd to exit with code 0.
func ForExec(cmd ...string) *ExecStrategy {
	return &ExecStrategy{
		base: newBase("exec"),
		cmd:  append([]string(nil), cmd...),
		exitMatcher: func(code int) bool {
			return code == 0
		},
	}
}

// WithExitCodeMatcher replaces the "exit 0" check.
func (s *ExecStrategy) WithExitCodeMatcher(fn func(int) bool) *ExecStrategy {
	if fn != nil {
		s.exitMatcher = fn
	}
	return s
}

// WithStartupTimeout sets how long to keep running the command.
func (s *ExecStrategy) WithStartupTimeout(d time.Duration) *ExecStrategy {
	s.setTimeout(d)
	return s
}

// WithPollInterval sets the pause between runs.
func (s *ExecStrategy) WithPollInterval(d time.Duration) *ExecStrategy {
	s.setInterval(d)
	return s
}

func (s *ExecStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	if len(s.cmd) == 0 {
		return s.fail("no command", nil)
	}
	exitOK := s.exitMatcher
	if exitOK == nil {
		exitOK = func(code int) bool { return code == 0 }
	}
	return s.poll(ctx, func(ctx context.Context) error {
		res, err := target.Exec(ctx, s.cmd)
		if err != nil {
			if exitErr := s.checkExited(ctx, target); exitErr != nil {
				return exitErr
			}
			return err
		}
		if !exitOK(res.ExitCode) {
			return fmt.Errorf("%v exited with code %d", s.cmd, res.ExitCode)
		}
		return nil
	})
}
