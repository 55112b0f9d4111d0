package spec

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rickgorman/testbox/pkg/wait"
)

// NetworkModeHost shares the host's network stack with the container.
const NetworkModeHost = "host"

// Spec is the declarative description of a test container.
type Spec struct {
	// Image is a repository reference such as "postgres:16-alpine". Exactly one of
	// Image and Build is set.
	Image string
	Build *BuildContext

	// ExposedPorts are container ports, deduplicated and sorted.
	ExposedPorts []int
	Env          map[string]string
	Cmd          []string
	Name         string
	NetworkMode  string
	BindMounts   []BindMount

	// TmpfsMounts maps container paths to mount options such as "rw,size=64m".
	TmpfsMounts map[string]string

	// HealthCheck replaces the image's health check when set.
	HealthCheck  *HealthCheck
	WaitStrategy wait.Strategy
	LogDriver    string
	Labels       map[string]string
}

// BuildContext is a directory or git URL containing a Dockerfile.
type BuildContext struct {
	Path       string
	Dockerfile string
	Args       map[string]string

	// Tag names the built image. Empty means a tag derived from Path.
	Tag string
}

// BindMount mounts a host path into the container.
type BindMount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// String returns the mount in docker's "host:container[:ro]" notation.
func (m BindMount) String() string {
	s := m.HostPath + ":" + m.ContainerPath
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// HealthCheck is an engine-level health check.
type HealthCheck struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

// Reference returns the image reference, or a description of the build context.
func (s Spec) Reference() string {
	if s.Build != nil {
		return "build:" + s.Build.Path
	}
	return s.Image
}

// HostNetwork reports whether the container shares the host's network stack.
func (s Spec) HostNetwork() bool {
	return s.NetworkMode == NetworkModeHost
}

// Exposes reports whether port was declared.
func (s Spec) Exposes(port int) bool {
	return slices.Contains(s.ExposedPorts, port)
}

// EffectiveWaitStrategy returns the configured strategy. Without one, it waits for
// every exposed port, or only for the running state when no port is exposed.
func (s Spec) EffectiveWaitStrategy() wait.Strategy {
	if s.WaitStrategy != nil {
		return s.WaitStrategy
	}
	if len(s.ExposedPorts) > 0 {
		return wait.ForListeningPorts()
	}
	return wait.ForRunning()
}

// Clone returns a deep copy, wait strategy included.
func (s Spec) Clone() Spec {
	c := s
	c.WaitStrategy = wait.Clone(s.WaitStrategy)
	c.ExposedPorts = slices.Clone(s.ExposedPorts)
	c.Env = maps.Clone(s.Env)
	c.Cmd = slices.Clone(s.Cmd)
	c.BindMounts = slices.Clone(s.BindMounts)
	c.TmpfsMounts = maps.Clone(s.TmpfsMounts)
	c.Labels = maps.Clone(s.Labels)
	if s.Build != nil {
		b := *s.Build
		b.Args = maps.Clone(s.Build.Args)
		c.Build = &b
	}
	if s.HealthCheck != nil {
		hc := *s.HealthCheck
		hc.Test = slices.Clone(s.HealthCheck.Test)
		c.HealthCheck = &hc
	}
	return c
}

// Validate reports every problem with the specification at once.
func (s Spec) Validate() error {
	var errs []error

	switch {
	case s.Image == "" && s.Build == nil:
		errs = append(errs, errors.New("image or build context is required"))
	case s.Image != "" && s.Build != nil:
		errs = append(errs, errors.New("image and build context are mutually exclusive"))
	case s.Build != nil && strings.TrimSpace(s.Build.Path) == "":
		errs = append(errs, errors.New("build context path is empty"))
	}

	for _, p := range s.ExposedPorts {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("invalid port %d: must be between 1 and 65535", p))
		}
	}

	for k := range s.Env {
		if k == "" || strings.Contains(k, "=") {
			errs = append(errs, fmt.Errorf("invalid environment variable name %q", k))
		}
	}

	for _, m := range s.BindMounts {
		if m.HostPath == "" {
			errs = append(errs, fmt.Errorf("bind mount %s: host path is empty", m))
		}
		if !path.IsAbs(m.ContainerPath) {
			errs = append(errs, fmt.Errorf("bind mount %s: container path must be absolute", m))
		}
	}

	for p := range s.TmpfsMounts {
		if !path.IsAbs(p) {
			errs = append(errs, fmt.Errorf("tmpfs mount %q: path must be absolute", p))
		}
	}

	if hc := s.HealthCheck; hc != nil {
		if len(hc.Test) == 0 {
			errs = append(errs, errors.New("health check test is empty"))
		}
		if hc.Interval < 0 || hc.Timeout < 0 || hc.StartPeriod < 0 {
			errs = append(errs, errors.New("health check durations must not be negative"))
		}
		if hc.Retries < 0 {
			errs = append(errs, errors.New("health check retries must not be negative"))
		}
	}

	return errors.Join(errs...)
}

// normalizePorts sorts and deduplicates ports.
func normalizePorts(ports []int) []int {
	if len(ports) == 0 {
		return nil
	}
	out := slices.Clone(ports)
	slices.Sort(out)
	return slices.Compact(out)
}
