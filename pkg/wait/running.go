package wait

import (
	"context"
	"fmt"
	"time"
)

// RunningStrategy is ready as soon as the engine reports the container as running.
// It is the default for containers without exposed ports.
type RunningStrategy struct {
	base
}

// ForRunning waits until the container runs.
func ForRunning() *RunningStrategy {
	return &RunningStrategy{base: newBase("running")}
}

// WithStartupTimeout sets how long to wait for the running state.
func (s *RunningStrategy) WithStartupTimeout(d time.Duration) *RunningStrategy {
	s.setTimeout(d)
	return s
}

func (s *RunningStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	return s.poll(ctx, func(ctx context.Context) error {
		ictx, cancel := probeContext(ctx)
		defer cancel()

		insp, err := target.Inspect(ictx)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
		if insp.Running {
			return nil
		}
		if insp.Exited() {
			return s.fail(fmt.Sprintf("container exited with code %d", insp.ExitCode), nil)
		}
		return fmt.Errorf("container status %q", insp.Status)
	})
}
