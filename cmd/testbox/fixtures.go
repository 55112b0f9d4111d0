package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/rickgorman/testbox/internal/config"
	"github.com/rickgorman/testbox/internal/ui"
	"github.com/rickgorman/testbox/pkg/fixture"
	"github.com/rickgorman/testbox/pkg/spec"
)

// stopTimeout bounds teardown once the user is done with the fixtures.
const stopTimeout = time.Minute

// loadSpecs reads the fixture file and keeps the entries named in names, or all of
// them when names is empty.
func loadSpecs(path string, names []string) ([]spec.Spec, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	specs, err := f.Specs()
	if err != nil {
		return nil, err
	}
	return selectSpecs(specs, names)
}

func selectSpecs(specs []spec.Spec, names []string) ([]spec.Spec, error) {
	if len(names) == 0 {
		return specs, nil
	}

	byName := make(map[string]spec.Spec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	selected := make([]spec.Spec, 0, len(names))
	var unknown []string
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, s)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown containers: %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

// startAll starts every specification in parallel. If any of them fails, the ones
// already running are stopped before the error is returned.
func startAll(ctx context.Context, o *fixture.Orchestrator, specs []spec.Spec) ([]*fixture.Container, error) {
	containers := make([]*fixture.Container, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range specs {
		g.Go(func() error {
			c, err := o.Start(gctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Reference(), err)
			}
			containers[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		started := containers[:0]
		for _, c := range containers {
			if c != nil {
				started = append(started, c)
			}
		}
		if stopErr := stopAll(started); stopErr != nil {
			ui.Warn("failed to stop fixtures: %v", stopErr)
		}
		return nil, err
	}
	return containers, nil
}

// stopAll stops containers in parallel and reports every failure.
func stopAll(containers []*fixture.Container) error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, c := range containers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Stop(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.Name(), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

// endpoints maps each declared port of c to its reachable host:port.
func endpoints(ctx context.Context, c *fixture.Container, ports []int) (map[int]string, error) {
	out := make(map[int]string, len(ports))
	for _, port := range ports {
		addr, err := c.Endpoint(ctx, port)
		if err != nil {
			return nil, err
		}
		out[port] = addr
	}
	return out, nil
}

// fixtureEnv describes running fixtures as environment variables:
//
//	TESTBOX_<NAME>_HOST=localhost
//	TESTBOX_<NAME>_PORT_<PORT>=49153
func fixtureEnv(ctx context.Context, containers []*fixture.Container, specs []spec.Spec) ([]string, error) {
	var env []string
	for i, c := range containers {
		prefix := "TESTBOX_" + envName(c.Name()) + "_"
		host, err := c.Host(ctx)
		if err != nil {
			return nil, err
		}
		env = append(env, prefix+"HOST="+host)

		for _, port := range specs[i].ExposedPorts {
			hostPort, err := c.MappedPort(ctx, port)
			if err != nil {
				return nil, err
			}
			env = append(env, prefix+"PORT_"+strconv.Itoa(port)+"="+strconv.Itoa(hostPort))
		}
	}
	sort.Strings(env)
	return env, nil
}

// envName turns a container name into an environment variable fragment.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func printFixtures(ctx context.Context, containers []*fixture.Container, specs []spec.Spec) error {
	for i, c := range containers {
		eps, err := endpoints(ctx, c, specs[i].ExposedPorts)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
		ui.Fixture(c.Name(), c.Image(), eps)
	}
	return nil
}
