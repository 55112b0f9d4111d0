// Package wait provides readiness strategies for started containers.
//
// A Strategy blocks until a container is ready to serve, the strategy's startup timeout
// elapses, or the container reaches a state from which it will never become ready:
//
//   - nil means ready
//   - an error matching ErrTimedOut (a *TimeoutError) means the deadline passed
//   - an error matching ErrFailed (a *FailedError) means readiness is impossible,
//     for example an "unhealthy" health status or a container that exited
//
// Transient probe errors (a refused connection, a failed inspect call) are retried
// until the deadline and are only reported as the last error of a TimeoutError.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultStartupTimeout bounds every strategy that has no timeout of its own.
	DefaultStartupTimeout = 60 * time.Second

	// DefaultPollInterval is the pause between two probes.
	DefaultPollInterval = 100 * time.Millisecond

	// MinPollInterval keeps strategies from busy-looping against the engine.
	MinPollInterval = 10 * time.Millisecond

	probeTimeout = time.Second
)

var (
	// ErrTimedOut is matched by errors of strategies that ran out of time.
	ErrTimedOut = errors.New("wait timed out")

	// ErrFailed is matched by errors of strategies that observed a terminal state.
	ErrFailed = errors.New("wait failed")
)

// Strategy decides whether a container is ready.
type Strategy interface {
	WaitUntilReady(ctx context.Context, target Target) error
}

// Target is the view of a started container that strategies probe.
type Target interface {
	ID() string
	Host(ctx context.Context) (string, error)
	ExposedPorts() []int
	// MappedPort returns the host port for a container port. It fails with
	// engine.ErrPortNotPublished when the engine never published the port.
	MappedPort(ctx context.Context, port int) (int, error)
	Inspect(ctx context.Context) (engine.Inspection, error)
	Logs(ctx context.Context) (engine.LogStream, error)
	Exec(ctx context.Context, cmd []string) (engine.ExecResult, error)
}

// TimeoutError reports a strategy that did not see the container become ready in time.
type TimeoutError struct {
	Strategy string
	Timeout  time.Duration
	Attempts int
	Last     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s strategy timed out after %s (%d attempts)", e.Strategy, e.Timeout, e.Attempts)
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimedOut
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// FailedError reports a container that can no longer become ready.
type FailedError struct {
	Strategy string
	Reason   string
	Err      error
}

func (e *FailedError) Error() string {
	msg := fmt.Sprintf("%s strategy failed: %s", e.Strategy, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FailedError) Is(target error) bool {
	return target == ErrFailed
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// base holds the settings every strategy shares.
type base struct {
	name     string
	timeout  time.Duration
	interval time.Duration
}

func newBase(name string) base {
	return base{
		name:     name,
		timeout:  DefaultStartupTimeout,
		interval: DefaultPollInterval,
	}
}

func (b *base) setTimeout(d time.Duration) {
	if d > 0 {
		b.timeout = d
	}
}

func (b *base) setInterval(d time.Duration) {
	if d < MinPollInterval {
		d = MinPollInterval
	}
	b.interval = d
}

// Timeout returns the startup timeout of the strategy.
func (b *base) Timeout() time.Duration {
	if b.timeout <= 0 {
		return DefaultStartupTimeout
	}
	return b.timeout
}

// PollInterval returns the pause between two probes.
func (b *base) PollInterval() time.Duration {
	switch {
	case b.interval <= 0:
		return DefaultPollInterval
	case b.interval < MinPollInterval:
		return MinPollInterval
	}
	return b.interval
}

// label names the strategy in errors. Zero-value strategies have no name.
func (b *base) label() string {
	if b.name == "" {
		return "wait"
	}
	return b.name
}

func (b *base) fail(reason string, err error) error {
	return &FailedError{Strategy: b.label(), Reason: reason, Err: err}
}

// probeFunc returns nil when ready, a *FailedError when readiness is impossible and
// any other error to be retried.
type probeFunc func(ctx context.Context) error

// poll runs probe every interval until it succeeds, fails terminally or the timeout
// elapses.
func (b *base) poll(ctx context.Context, probe probeFunc) error {
	timeout := b.Timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		attempts int
		last     error
	)
	err := retry.Do(ctx, retry.NewConstant(b.PollInterval()), func(ctx context.Context) error {
		attempts++
		err := probe(ctx)
		if err == nil {
			return nil
		}
		var failed *FailedError
		if errors.As(err, &failed) {
			return err
		}
		last = err
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}

	var failed *FailedError
	if errors.As(err, &failed) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Strategy: b.label(), Timeout: timeout, Attempts: attempts, Last: last}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s strategy: %w", b.label(), ctx.Err())
	}
	return err
}

// probeContext bounds a single probe so a hanging call cannot outlive the deadline.
func probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, probeTimeout)
}

// checkExited turns an exited container into a terminal failure.
func (b *base) checkExited(ctx context.Context, target Target) error {
	ictx, cancel := probeContext(ctx)
	defer cancel()

	insp, err := target.Inspect(ictx)
	if err != nil {
		return nil
	}
	if insp.Exited() {
		return b.fail(fmt.Sprintf("container exited with code %d", insp.ExitCode), nil)
	}
	return nil
}
