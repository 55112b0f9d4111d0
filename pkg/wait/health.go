package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
)

// HealthStrategy waits until the engine reports the container's health check as
// healthy. The container needs a health check, either from its image or injected
// through the specification.
type HealthStrategy struct {
	base
}

// ForHealthCheck waits for the "healthy" status.
func ForHealthCheck() *HealthStrategy {
	return &HealthStrategy{base: newBase("health")}
}

// WithStartupTimeout sets how long to wait for a healthy status.
func (s *HealthStrategy) WithStartupTimeout(d time.Duration) *HealthStrategy {
	s.setTimeout(d)
	return s
}

// WithPollInterval sets the pause between two inspections. It is never lower than
// MinPollInterval.
func (s *HealthStrategy) WithPollInterval(d time.Duration) *HealthStrategy {
	s.setInterval(d)
	return s
}

func (s *HealthStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	return s.poll(ctx, func(ctx context.Context) error {
		ictx, cancel := probeContext(ctx)
		defer cancel()

		insp, err := target.Inspect(ictx)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}

		switch insp.Health {
		case engine.HealthHealthy:
			return nil
		case engine.HealthUnhealthy:
			return s.fail("container is unhealthy", nil)
		}
		if insp.Exited() {
			return s.fail(fmt.Sprintf("container exited with code %d", insp.ExitCode), nil)
		}
		if insp.Health == engine.HealthNone && insp.Running {
			return s.fail("container has no health check", nil)
		}
		return fmt.Errorf("health status %q", insp.Health)
	})
}
