package fixture_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgorman/testbox/pkg/engine/enginetest"
	"github.com/rickgorman/testbox/pkg/fixture"
	"github.com/rickgorman/testbox/pkg/spec"
	"github.com/rickgorman/testbox/pkg/wait"
)

func ExampleOrchestrator_Start() {
	eng := enginetest.New()
	defer eng.Close()

	o := fixture.New(eng)
	s := spec.New("redis:7-alpine").
		WithName("cache").
		WithExposedPorts(6379).
		MustBuild()

	ctx := context.Background()
	c, err := o.Start(ctx, s)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer c.Stop(ctx)

	res, err := c.Exec(ctx, "redis-cli", "ping")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(c.Name(), res.ExitCode)
	// Output: cache 0
}

func ExampleStartupError() {
	eng := enginetest.New()
	defer eng.Close()
	eng.SetBehavior("app:1", enginetest.Behavior{Health: []string{"starting", "unhealthy"}})

	o := fixture.New(eng)
	s := spec.New("app:1").
		WithHealthCheck(spec.HealthCheck{Test: []string{"CMD", "false"}}).
		WithWaitStrategy(wait.ForHealthCheck().WithStartupTimeout(5 * time.Second)).
		MustBuild()

	_, err := o.Start(context.Background(), s)

	var startupErr *fixture.StartupError
	if errors.As(err, &startupErr) {
		fmt.Println(startupErr.Stage)
	}
	fmt.Println(errors.Is(err, fixture.ErrWaitFailed), errors.Is(err, fixture.ErrWaitTimedOut))
	// Output:
	// wait
	// true false
}
