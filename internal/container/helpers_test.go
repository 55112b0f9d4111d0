package container

import (
	"reflect"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"github.com/rickgorman/testbox/pkg/engine"
)

func TestBuildContainerConfig(t *testing.T) {
	opts := engine.CreateOptions{
		Image:        "postgres:16-alpine",
		ExposedPorts: []int{5432},
		Env:          map[string]string{"POSTGRES_USER": "postgres", "POSTGRES_DB": "testdb"},
		Cmd:          []string{"postgres", "-c", "fsync=off"},
		Labels:       map[string]string{"testbox.managed": "true"},
		HealthCheck: &engine.HealthCheck{
			Test:     []string{"CMD-SHELL", "pg_isready"},
			Interval: time.Second,
			Retries:  10,
		},
	}

	cfg := buildContainerConfig(opts)

	if cfg.Image != "postgres:16-alpine" {
		t.Errorf("Image = %q, want postgres:16-alpine", cfg.Image)
	}
	if want := []string{"POSTGRES_DB=testdb", "POSTGRES_USER=postgres"}; !reflect.DeepEqual(cfg.Env, want) {
		t.Errorf("Env = %v, want %v", cfg.Env, want)
	}
	if want := []string{"postgres", "-c", "fsync=off"}; !reflect.DeepEqual([]string(cfg.Cmd), want) {
		t.Errorf("Cmd = %v, want %v", cfg.Cmd, want)
	}
	if _, ok := cfg.ExposedPorts["5432/tcp"]; !ok {
		t.Errorf("ExposedPorts = %v, want 5432/tcp", cfg.ExposedPorts)
	}
	if cfg.Healthcheck == nil || cfg.Healthcheck.Retries != 10 || cfg.Healthcheck.Interval != time.Second {
		t.Errorf("Healthcheck = %+v, want the injected check", cfg.Healthcheck)
	}
	if cfg.Labels["testbox.managed"] != "true" {
		t.Errorf("Labels = %v, want testbox.managed", cfg.Labels)
	}
}

func TestBuildContainerConfigKeepsImageDefaults(t *testing.T) {
	cfg := buildContainerConfig(engine.CreateOptions{Image: "redis"})

	if cfg.Cmd != nil {
		t.Errorf("Cmd = %v, want nil so the image default applies", cfg.Cmd)
	}
	if cfg.Healthcheck != nil {
		t.Errorf("Healthcheck = %+v, want nil so the image check applies", cfg.Healthcheck)
	}
	if cfg.ExposedPorts != nil {
		t.Errorf("ExposedPorts = %v, want nil", cfg.ExposedPorts)
	}
}

func TestBuildHostConfig(t *testing.T) {
	opts := engine.CreateOptions{
		ExposedPorts: []int{80},
		NetworkMode:  "bridge",
		BindMounts:   []engine.BindMount{{HostPath: "/srv/html", ContainerPath: "/usr/share/nginx/html", ReadOnly: true}},
		TmpfsMounts:  map[string]string{"/tmp": "rw,size=64m"},
		LogDriver:    "none",
	}

	hc, err := buildHostConfig(opts)
	if err != nil {
		t.Fatalf("buildHostConfig() error = %v", err)
	}

	if hc.NetworkMode != "bridge" {
		t.Errorf("NetworkMode = %q, want bridge", hc.NetworkMode)
	}
	if _, ok := hc.PortBindings[nat.Port("80/tcp")]; !ok {
		t.Errorf("PortBindings = %v, want 80/tcp", hc.PortBindings)
	}
	wantMounts := []mount.Mount{{Type: mount.TypeBind, Source: "/srv/html", Target: "/usr/share/nginx/html", ReadOnly: true}}
	if !reflect.DeepEqual(hc.Mounts, wantMounts) {
		t.Errorf("Mounts = %+v, want %+v", hc.Mounts, wantMounts)
	}
	if hc.Tmpfs["/tmp"] != "rw,size=64m" {
		t.Errorf("Tmpfs = %v, want /tmp", hc.Tmpfs)
	}
	if hc.LogConfig.Type != "none" {
		t.Errorf("LogConfig.Type = %q, want none", hc.LogConfig.Type)
	}
}

func TestBuildHostConfigHostNetwork(t *testing.T) {
	hc, err := buildHostConfig(engine.CreateOptions{ExposedPorts: []int{6379}, NetworkMode: "host"})
	if err != nil {
		t.Fatalf("buildHostConfig() error = %v", err)
	}
	if len(hc.PortBindings) != 0 {
		t.Errorf("PortBindings = %v, want none in host network mode", hc.PortBindings)
	}
}

func TestToInspection(t *testing.T) {
	resp := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:   "abc123",
			Name: "/cache",
			State: &types.ContainerState{
				Status:  "running",
				Running: true,
				Health:  &types.Health{Status: "starting"},
			},
			HostConfig: &container.HostConfig{NetworkMode: "bridge"},
		},
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{
				Ports: nat.PortMap{"6379/tcp": {{HostIP: "0.0.0.0", HostPort: "32768"}}},
			},
		},
	}

	want := engine.Inspection{
		ID:          "abc123",
		Name:        "cache",
		Status:      engine.StatusRunning,
		Running:     true,
		Health:      engine.HealthStarting,
		NetworkMode: "bridge",
		Ports:       map[int]int{6379: 32768},
	}
	if got := toInspection(resp); !reflect.DeepEqual(got, want) {
		t.Errorf("toInspection() = %+v, want %+v", got, want)
	}
}

func TestToInspectionBeforePublish(t *testing.T) {
	resp := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:    "abc123",
			State: &types.ContainerState{Status: "exited", ExitCode: 2},
		},
	}

	got := toInspection(resp)
	if !got.Exited() || got.ExitCode != 2 {
		t.Errorf("toInspection() = %+v, want exited with code 2", got)
	}
	if got.Health != engine.HealthNone || len(got.Ports) != 0 {
		t.Errorf("toInspection() = %+v, want no health and no ports", got)
	}
}

func TestEnvList(t *testing.T) {
	if got := envList(nil); got != nil {
		t.Errorf("envList(nil) = %v, want nil", got)
	}
	got := envList(map[string]string{"B": "2", "A": "1=1"})
	if want := []string{"A=1=1", "B=2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("envList() = %v, want %v", got, want)
	}
}

func TestStopSeconds(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Nanosecond, 1},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{10 * time.Second, 10},
	}

	for _, tt := range tests {
		t.Run(tt.timeout.String(), func(t *testing.T) {
			if got := stopSeconds(tt.timeout); got != tt.want {
				t.Errorf("stopSeconds(%v) = %d, want %d", tt.timeout, got, tt.want)
			}
		})
	}
}
