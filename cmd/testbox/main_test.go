package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgorman/testbox/pkg/engine/enginetest"
	"github.com/rickgorman/testbox/pkg/fixture"
	"github.com/rickgorman/testbox/pkg/spec"
)

func TestEnvName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"db", "DB"},
		{"redis-cache", "REDIS_CACHE"},
		{"api.v2", "API_V2"},
		{"Kafka0", "KAFKA0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envName(tt.input); got != tt.want {
				t.Errorf("envName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectSpecs(t *testing.T) {
	specs := []spec.Spec{
		spec.New("postgres").WithName("db").MustBuild(),
		spec.New("redis").WithName("cache").MustBuild(),
	}

	got, err := selectSpecs(specs, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = selectSpecs(specs, []string{"cache"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "redis", got[0].Image)

	_, err = selectSpecs(specs, []string{"cache", "queue", "search"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue, search")
}

func TestStartAllAndEnv(t *testing.T) {
	eng := enginetest.New()
	t.Cleanup(func() { _ = eng.Close() })
	o := fixture.New(eng)

	specs := []spec.Spec{
		spec.New("postgres").WithName("db").WithExposedPorts(5432).MustBuild(),
		spec.New("redis").WithName("cache").WithExposedPorts(6379).MustBuild(),
	}

	ctx := context.Background()
	containers, err := startAll(ctx, o, specs)
	require.NoError(t, err)
	require.Len(t, containers, 2)

	env, err := fixtureEnv(ctx, containers, specs)
	require.NoError(t, err)

	dbPort := eng.HostPort(containers[0].ID(), 5432)
	cachePort := eng.HostPort(containers[1].ID(), 6379)
	assert.Equal(t, []string{
		"TESTBOX_CACHE_HOST=127.0.0.1",
		"TESTBOX_CACHE_PORT_6379=" + itoa(cachePort),
		"TESTBOX_DB_HOST=127.0.0.1",
		"TESTBOX_DB_PORT_5432=" + itoa(dbPort),
	}, env)

	require.NoError(t, stopAll(containers))
	for _, c := range containers {
		assert.True(t, eng.Removed(c.ID()))
	}
}

func TestStartAllStopsStartedOnFailure(t *testing.T) {
	eng := enginetest.New()
	t.Cleanup(func() { _ = eng.Close() })
	eng.SetBehavior("broken", enginetest.Behavior{StartErr: errors.New("no space left on device")})
	o := fixture.New(eng)

	specs := []spec.Spec{
		spec.New("redis").WithName("cache").MustBuild(),
		spec.New("broken").WithName("app").MustBuild(),
	}

	_, err := startAll(context.Background(), o, specs)
	require.Error(t, err)
	assert.ErrorIs(t, err, fixture.ErrStartFailed)

	for _, id := range eng.ContainerIDs() {
		assert.True(t, eng.Removed(id), "container %s left behind", id)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "testbox version dev\n", out.String())
}

func TestRunRequiresCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no dash", []string{"run", "db"}},
		{"nothing after dash", []string{"run", "db", "--"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing command")
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		verbose   bool
		wantDebug bool
	}{
		{false, false},
		{true, true},
	}

	for _, tt := range tests {
		buf := &bytes.Buffer{}
		logger := newLogger(buf, tt.verbose)
		logger.Debug("container started")
		logger.Warn("container not ready")

		out := buf.String()
		assert.Contains(t, out, "container not ready")
		assert.Equal(t, tt.wantDebug, strings.Contains(out, "container started"), "verbose=%v", tt.verbose)
	}
}

func TestExitCodeError(t *testing.T) {
	var err error = &exitCodeError{code: 3}
	assert.Equal(t, "exit status 3", err.Error())
}

func itoa(n int) string {
	return fmt.Sprint(n)
}
