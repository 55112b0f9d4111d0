// Package fixture starts containers for tests and hands them back once they are ready.
//
// The Orchestrator drives a spec.Spec through these stages:
//
//  1. Resolve the image (build it from its context or pull it)
//  2. Create the container
//  3. Start it
//  4. Run the wait strategy until the container is ready
//  5. Resolve the published ports
//
// Any failure after the container was created stops and removes it before Start
// returns a *StartupError. Match it with errors.Is against ErrBuildFailed,
// ErrStartFailed, ErrWaitTimedOut or ErrWaitFailed to tell the stages apart.
//
// Basic usage:
//
//	o, err := fixture.NewDocker(fixture.WithLogger(slog.Default()))
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer o.Close()
//
//	pg, err := o.Start(ctx, spec.New("postgres:16-alpine").
//	    WithEnv("POSTGRES_PASSWORD", "secret").
//	    WithExposedPorts(5432).
//	    MustBuild())
//	if err != nil {
//	    t.Fatal(err)
//	}
//	t.Cleanup(func() { _ = pg.Stop(context.Background()) })
//
//	addr, err := pg.Endpoint(ctx, 5432)
package fixture
