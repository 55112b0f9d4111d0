package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/spec"
	"github.com/rickgorman/testbox/pkg/wait"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
)

const (
	portPollInterval = 100 * time.Millisecond

	// cleanupGrace is added to the stop timeout to bound the whole teardown.
	cleanupGrace = 10 * time.Second
)

// Container is a started container. It owns the container: Stop removes it and
// nothing else does.
type Container struct {
	eng    engine.Engine
	logger *slog.Logger
	spec   spec.Spec

	id    string
	name  string
	image string

	portGrace   time.Duration
	stopTimeout time.Duration

	portsMu sync.Mutex
	ports   map[int]int

	stopMu  sync.Mutex
	stopped bool
}

// ID returns the engine-assigned container id.
func (c *Container) ID() string {
	return c.id
}

// Name returns the container name without docker's leading slash.
func (c *Container) Name() string {
	return c.name
}

// Image returns the image the container was created from. For built images this is
// the resulting tag.
func (c *Container) Image() string {
	return c.image
}

// Host returns the address under which the container's mapped ports are reachable.
func (c *Container) Host(ctx context.Context) (string, error) {
	host, err := c.eng.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve engine host: %w", err)
	}
	return host, nil
}

// MappedPort returns the host port bound to a declared container port. In host
// network mode the container port is returned unchanged.
func (c *Container) MappedPort(ctx context.Context, port int) (int, error) {
	if !c.spec.Exposes(port) {
		return 0, fmt.Errorf("port %d: %w", port, ErrPortNotExposed)
	}
	return c.mappedPort(ctx, port)
}

// Endpoint returns "host:port" for a declared container port.
func (c *Container) Endpoint(ctx context.Context, port int) (string, error) {
	hostPort, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(hostPort)), nil
}

// Exec runs cmd inside the container. A non-zero exit code is reported in the
// result; only a command that could not be run is an error.
func (c *Container) Exec(ctx context.Context, cmd ...string) (engine.ExecResult, error) {
	if len(cmd) == 0 {
		return engine.ExecResult{}, fmt.Errorf("%w: empty command", ErrExecFailed)
	}
	res, err := c.eng.Exec(ctx, c.id, cmd)
	if err != nil {
		return engine.ExecResult{}, fmt.Errorf("%w: %v: %w", ErrExecFailed, cmd, err)
	}
	return res, nil
}

// Logs opens the container log from the beginning. The stream follows the log until
// ctx is done or the stream is closed; call Logs again to read from the start.
func (c *Container) Logs(ctx context.Context) (engine.LogStream, error) {
	stream, err := c.eng.StreamLogs(ctx, c.id)
	if err != nil {
		return nil, fmt.Errorf("failed to open logs: %w", err)
	}
	return stream, nil
}

// Inspect returns the current engine view of the container.
func (c *Container) Inspect(ctx context.Context) (engine.Inspection, error) {
	return c.eng.InspectContainer(ctx, c.id)
}

// Stop stops and removes the container. Calling it again is a no-op.
func (c *Container) Stop(ctx context.Context) error {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.stopTimeout+cleanupGrace)
	defer cancel()

	var err error
	if stopErr := c.eng.StopContainer(ctx, c.id, c.stopTimeout); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to stop container: %w", stopErr))
	}
	if rmErr := c.eng.RemoveContainer(ctx, c.id); rmErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to remove container: %w", rmErr))
	}
	if err != nil {
		return err
	}
	c.logger.Debug("container removed")
	return nil
}

// Stopped reports whether Stop was called.
func (c *Container) Stopped() bool {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	return c.stopped
}

func (c *Container) mappedPort(ctx context.Context, port int) (int, error) {
	if c.spec.HostNetwork() {
		return port, nil
	}
	ports, err := c.resolvePorts(ctx)
	if err != nil {
		return 0, err
	}
	hostPort, ok := ports[port]
	if !ok {
		return 0, fmt.Errorf("port %d is not exposed: %w", port, engine.ErrPortNotPublished)
	}
	return hostPort, nil
}

// resolvePorts inspects the container until the engine has published every declared
// port or the port grace elapses. The first complete mapping is kept for good;
// failures are not, so a later caller can try again.
func (c *Container) resolvePorts(ctx context.Context) (map[int]int, error) {
	c.portsMu.Lock()
	defer c.portsMu.Unlock()
	if c.ports != nil {
		return c.ports, nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.portGrace)
	defer cancel()

	var (
		ports map[int]int
		last  error
	)
	err := retry.Do(rctx, retry.NewConstant(portPollInterval), func(ctx context.Context) error {
		insp, err := c.eng.InspectContainer(ctx, c.id)
		if err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				return err
			}
			last = err
			return retry.RetryableError(err)
		}
		if insp.Exited() {
			return fmt.Errorf("container exited with code %d: %w", insp.ExitCode, engine.ErrPortNotPublished)
		}
		for _, p := range c.spec.ExposedPorts {
			if _, ok := insp.Ports[p]; !ok {
				last = fmt.Errorf("port %d: %w", p, engine.ErrPortNotPublished)
				return retry.RetryableError(last)
			}
		}
		ports = insp.Ports
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if rctx.Err() != nil {
			if errors.Is(last, engine.ErrPortNotPublished) {
				return nil, fmt.Errorf("not published within %s: %w", c.portGrace, last)
			}
			return nil, fmt.Errorf("ports not resolved within %s: %v: %w", c.portGrace, last, engine.ErrPortNotPublished)
		}
		return nil, err
	}

	c.ports = make(map[int]int, len(c.spec.ExposedPorts))
	for _, p := range c.spec.ExposedPorts {
		c.ports[p] = ports[p]
	}
	c.logger.Debug("ports resolved", slog.Any("ports", c.ports))
	return c.ports, nil
}

// target is the view of the container the wait strategies probe.
type target struct {
	c *Container
}

var _ wait.Target = target{}

func (t target) ID() string { return t.c.id }

func (t target) Host(ctx context.Context) (string, error) { return t.c.Host(ctx) }

func (t target) ExposedPorts() []int { return t.c.spec.ExposedPorts }

func (t target) MappedPort(ctx context.Context, port int) (int, error) {
	return t.c.mappedPort(ctx, port)
}

func (t target) Inspect(ctx context.Context) (engine.Inspection, error) { return t.c.Inspect(ctx) }

func (t target) Logs(ctx context.Context) (engine.LogStream, error) { return t.c.Logs(ctx) }

func (t target) Exec(ctx context.Context, cmd []string) (engine.ExecResult, error) {
	return t.c.Exec(ctx, cmd...)
}
