package wait

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"golang.org/x/sync/errgroup"
)

// PortStrategy waits until every configured port accepts TCP connections on its
// mapped host port.
//
// Docker's userland proxy accepts connections on published ports before the process
// inside the container listens. Pair it with ForLog or ForHealthCheck when that matters.
type PortStrategy struct {
	base
	ports []int
}

// ForListeningPort waits for a single container port.
func ForListeningPort(port int) *PortStrategy {
	return ForListeningPorts(port)
}

// ForListeningPorts waits for the given container ports. With no ports it waits for
// every port the container exposes.
func ForListeningPorts(ports ...int) *PortStrategy {
	return &PortStrategy{
		base:  newBase("port"),
		ports: append([]int(nil), ports...),
	}
}

// WithStartupTimeout sets how long to wait for all ports.
func (s *PortStrategy) WithStartupTimeout(d time.Duration) *PortStrategy {
	s.setTimeout(d)
	return s
}

// WithPollInterval sets the pause between connection attempts.
func (s *PortStrategy) WithPollInterval(d time.Duration) *PortStrategy {
	s.setInterval(d)
	return s
}

// Ports returns the ports the strategy was configured with.
func (s *PortStrategy) Ports() []int {
	return append([]int(nil), s.ports...)
}

func (s *PortStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	ports := s.ports
	if len(ports) == 0 {
		ports = target.ExposedPorts()
	}
	if len(ports) == 0 {
		return (&RunningStrategy{base: s.base}).WaitUntilReady(ctx, target)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	host, err := target.Host(ctx)
	if err != nil {
		return fmt.Errorf("resolve host: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, port := range ports {
		g.Go(func() error {
			return s.poll(gctx, func(ctx context.Context) error {
				return s.probe(ctx, target, host, port)
			})
		})
	}
	return g.Wait()
}

func (s *PortStrategy) probe(ctx context.Context, target Target, host string, port int) error {
	hostPort, err := target.MappedPort(ctx, port)
	if err != nil {
		if errors.Is(err, engine.ErrPortNotPublished) {
			return s.fail(fmt.Sprintf("port %d was never published", port), err)
		}
		return err
	}

	dctx, cancel := probeContext(ctx)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dctx, "tcp", net.JoinHostPort(host, strconv.Itoa(hostPort)))
	if err != nil {
		if exitErr := s.checkExited(ctx, target); exitErr != nil {
			return exitErr
		}
		return fmt.Errorf("port %d (host %d): %w", port, hostPort, err)
	}
	return conn.Close()
}
