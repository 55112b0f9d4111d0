package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgorman/testbox/pkg/spec"
	"github.com/rickgorman/testbox/pkg/wait"
)

const fullFile = `
containers:
  - name: cache
    image: redis:7-alpine
    ports: [6379, "6380/tcp"]
    env: {A: "1", SHARED: inline}
    env_file: .env.test
    cmd: ["redis-server", "--save", ""]
    network_mode: bridge
    mounts: ["./data:/data:ro", "/srv/logs:/logs"]
    tmpfs: {/tmp: "rw,size=64m"}
    log_driver: json-file
    labels: {team: core}
    healthcheck: {test: ["CMD", "redis-cli", "ping"], interval: 1s, timeout: 2s, retries: 3, start_period: 500ms}
    wait: {strategy: log, pattern: "Ready to accept", occurrence: 1, timeout: 30s}
  - name: api
    build: {context: ./img, dockerfile: Dockerfile.test, args: {V: "1"}}
    ports: [8080]
    wait: {strategy: http, path: /health, status_code: 204}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env.test", "SHARED=file\nFROM_FILE=yes\n")
	path := writeFile(t, dir, DefaultFileName, fullFile)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Equal(t, dir, f.Dir)
	require.Len(t, f.Containers, 2)

	specs, err := f.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 2)

	cache := specs[0]
	assert.Equal(t, "cache", cache.Name)
	assert.Equal(t, "redis:7-alpine", cache.Image)
	assert.Equal(t, []int{6379, 6380}, cache.ExposedPorts)
	assert.Equal(t, map[string]string{"A": "1", "SHARED": "inline", "FROM_FILE": "yes"}, cache.Env)
	assert.Equal(t, []string{"redis-server", "--save", ""}, cache.Cmd)
	assert.Equal(t, "bridge", cache.NetworkMode)
	assert.Equal(t, []spec.BindMount{
		{HostPath: filepath.Join(dir, "data"), ContainerPath: "/data", ReadOnly: true},
		{HostPath: "/srv/logs", ContainerPath: "/logs"},
	}, cache.BindMounts)
	assert.Equal(t, map[string]string{"/tmp": "rw,size=64m"}, cache.TmpfsMounts)
	assert.Equal(t, "json-file", cache.LogDriver)
	assert.Equal(t, "core", cache.Labels["team"])
	require.NotNil(t, cache.HealthCheck)
	assert.Equal(t, spec.HealthCheck{
		Test:        []string{"CMD", "redis-cli", "ping"},
		Interval:    time.Second,
		Timeout:     2 * time.Second,
		StartPeriod: 500 * time.Millisecond,
		Retries:     3,
	}, *cache.HealthCheck)
	assert.IsType(t, &wait.LogStrategy{}, cache.WaitStrategy)

	api := specs[1]
	require.NotNil(t, api.Build)
	assert.Equal(t, filepath.Join(dir, "img"), api.Build.Path)
	assert.Equal(t, "Dockerfile.test", api.Build.Dockerfile)
	assert.Equal(t, map[string]string{"V": "1"}, api.Build.Args)
	assert.IsType(t, &wait.HTTPStrategy{}, api.WaitStrategy)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "containers: [\n"},
		{"no containers", "containers: []\n"},
		{"missing name", "containers:\n  - image: redis\n"},
		{"duplicate name", "containers:\n  - {name: a, image: redis}\n  - {name: a, image: nginx}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content), "/fixtures"); err == nil {
				t.Errorf("Parse() expected error for %s", tt.name)
			}
		})
	}
}

func TestContainerSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		c    Container
	}{
		{"image and build", Container{Name: "x", Image: "redis", Build: &Build{Context: "."}}},
		{"neither image nor build", Container{Name: "x"}},
		{"bad port", Container{Name: "x", Image: "redis", Ports: []string{"http"}}},
		{"bad mount", Container{Name: "x", Image: "redis", Mounts: []string{"/only-host"}}},
		{"unknown strategy", Container{Name: "x", Image: "redis", Wait: &Wait{Strategy: "telepathy"}}},
		{"missing env file", Container{Name: "x", Image: "redis", EnvFile: "missing.env"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.c.Spec(t.TempDir()); err == nil {
				t.Errorf("Spec() expected error for %s", tt.name)
			}
		})
	}
}

func TestSpecsReportsEveryEntry(t *testing.T) {
	f, err := Parse([]byte("containers:\n  - {name: a}\n  - {name: b, image: redis, ports: [0]}\n"), "/fixtures")
	require.NoError(t, err)

	_, err = f.Specs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: ")
	assert.Contains(t, err.Error(), "b: ")
}

func TestFind(t *testing.T) {
	f, err := Parse([]byte("containers:\n  - {name: db, image: postgres}\n"), "/fixtures")
	require.NoError(t, err)

	c, ok := f.Find("db")
	assert.True(t, ok)
	assert.Equal(t, "postgres", c.Image)

	_, ok = f.Find("cache")
	assert.False(t, ok)
}

func TestResolveContext(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"./img", "/fixtures/img"},
		{"/abs/img", "/abs/img"},
		{"https://github.com/org/repo.git#main", "https://github.com/org/repo.git#main"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := resolveContext(tt.input, "/fixtures"); got != tt.want {
			t.Errorf("resolveContext(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, DefaultFileName, filepath.Base(path))
}
