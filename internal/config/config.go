package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rickgorman/testbox/internal/container"
	"github.com/rickgorman/testbox/internal/git"
	"github.com/rickgorman/testbox/pkg/spec"
	"github.com/rickgorman/testbox/pkg/wait"
)

// DefaultFileName is looked up at the repository root.
const DefaultFileName = "testbox.yaml"

// File is a parsed fixture file.
type File struct {
	Path       string      `yaml:"-"`
	Dir        string      `yaml:"-"`
	Containers []Container `yaml:"containers"`
}

// Container is one entry of the containers list.
type Container struct {
	Name        string            `yaml:"name"`
	Image       string            `yaml:"image"`
	Ports       []string          `yaml:"ports"`
	Env         map[string]string `yaml:"env"`
	EnvFile     string            `yaml:"env_file"`
	Cmd         []string          `yaml:"cmd"`
	NetworkMode string            `yaml:"network_mode"`
	Mounts      []string          `yaml:"mounts"`
	Tmpfs       map[string]string `yaml:"tmpfs"`
	LogDriver   string            `yaml:"log_driver"`
	Labels      map[string]string `yaml:"labels"`
	Build       *Build            `yaml:"build"`
	HealthCheck *HealthCheck      `yaml:"healthcheck"`
	Wait        *Wait             `yaml:"wait"`
}

// Build describes an image built from a local directory or a git URL.
type Build struct {
	Context    string            `yaml:"context"`
	Dockerfile string            `yaml:"dockerfile"`
	Args       map[string]string `yaml:"args"`
	Tag        string            `yaml:"tag"`
}

// HealthCheck overrides the image's health check.
type HealthCheck struct {
	Test        []string      `yaml:"test"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	StartPeriod time.Duration `yaml:"start_period"`
}

// Wait selects a readiness strategy by name. See wait.Names for the options.
type Wait struct {
	Strategy   string        `yaml:"strategy"`
	Ports      []int         `yaml:"ports"`
	Pattern    string        `yaml:"pattern"`
	Regexp     bool          `yaml:"regexp"`
	Occurrence int           `yaml:"occurrence"`
	Path       string        `yaml:"path"`
	StatusCode int           `yaml:"status_code"`
	Command    []string      `yaml:"command"`
	Timeout    time.Duration `yaml:"timeout"`
	Interval   time.Duration `yaml:"interval"`
}

// DefaultPath returns testbox.yaml at the root of the current git repository, or in
// the working directory outside of one.
func DefaultPath() (string, error) {
	root, err := git.WorkingRepoRoot()
	if err != nil {
		return "", fmt.Errorf("failed to locate repository root: %w", err)
	}
	return filepath.Join(root, DefaultFileName), nil
}

// Load reads and parses the fixture file at path. An empty path means DefaultPath.
func Load(path string) (*File, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	f, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	f.Path = abs
	return f, nil
}

// Parse decodes a fixture file whose relative paths resolve against dir.
func Parse(data []byte, dir string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture file: %w", err)
	}
	f.Dir = dir

	if len(f.Containers) == 0 {
		return nil, errors.New("fixture file declares no containers")
	}

	seen := make(map[string]bool, len(f.Containers))
	for i, c := range f.Containers {
		if c.Name == "" {
			return nil, fmt.Errorf("containers[%d]: name is required", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("containers[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
	}
	return &f, nil
}

// Find returns the entry called name.
func (f *File) Find(name string) (Container, bool) {
	for _, c := range f.Containers {
		if c.Name == name {
			return c, true
		}
	}
	return Container{}, false
}

// Specs converts every entry, in file order.
func (f *File) Specs() ([]spec.Spec, error) {
	specs := make([]spec.Spec, 0, len(f.Containers))
	var errs []error
	for _, c := range f.Containers {
		s, err := c.Spec(f.Dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		specs = append(specs, s)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return specs, nil
}

// Spec converts the entry into a container specification. Relative paths resolve
// against dir.
func (c Container) Spec(dir string) (spec.Spec, error) {
	var b *spec.Builder
	switch {
	case c.Image != "" && c.Build != nil:
		return spec.Spec{}, errors.New("image and build are mutually exclusive")
	case c.Build != nil:
		b = spec.FromBuildContext(resolveContext(c.Build.Context, dir))
		if c.Build.Dockerfile != "" {
			b.WithDockerfile(c.Build.Dockerfile)
		}
		if c.Build.Tag != "" {
			b.WithTag(c.Build.Tag)
		}
		for k, v := range c.Build.Args {
			b.WithBuildArg(k, v)
		}
	default:
		b = spec.New(c.Image)
	}

	b.WithName(c.Name)

	for _, p := range c.Ports {
		port, err := container.ParsePort(p)
		if err != nil {
			return spec.Spec{}, err
		}
		b.WithExposedPorts(port)
	}

	// Inline env wins over the env file.
	if c.EnvFile != "" {
		b.WithEnvFile(resolvePath(c.EnvFile, dir))
	}
	b.WithEnvMap(c.Env)

	if len(c.Cmd) > 0 {
		b.WithCmd(c.Cmd...)
	}
	if c.NetworkMode != "" {
		b.WithNetworkMode(c.NetworkMode)
	}

	for _, m := range c.Mounts {
		mount, err := container.ParseBindMount(m, dir)
		if err != nil {
			return spec.Spec{}, err
		}
		if mount.ReadOnly {
			b.WithReadOnlyBindMount(mount.HostPath, mount.ContainerPath)
		} else {
			b.WithBindMount(mount.HostPath, mount.ContainerPath)
		}
	}

	for path, opts := range c.Tmpfs {
		b.WithTmpfs(path, opts)
	}
	if c.LogDriver != "" {
		b.WithLogDriver(c.LogDriver)
	}
	for k, v := range c.Labels {
		b.WithLabel(k, v)
	}

	if hc := c.HealthCheck; hc != nil {
		b.WithHealthCheck(spec.HealthCheck{
			Test:        hc.Test,
			Interval:    hc.Interval,
			Timeout:     hc.Timeout,
			StartPeriod: hc.StartPeriod,
			Retries:     hc.Retries,
		})
	}

	if w := c.Wait; w != nil {
		strategy, err := wait.FromConfig(wait.Config{
			Strategy:   w.Strategy,
			Ports:      w.Ports,
			Pattern:    w.Pattern,
			Regexp:     w.Regexp,
			Occurrence: w.Occurrence,
			Path:       w.Path,
			StatusCode: w.StatusCode,
			Command:    w.Command,
			Timeout:    w.Timeout,
			Interval:   w.Interval,
		})
		if err != nil {
			return spec.Spec{}, err
		}
		b.WithWaitStrategy(strategy)
	}

	return b.Build()
}

func resolvePath(path, dir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func resolveContext(path, dir string) string {
	if path == "" || git.IsGitURL(path) {
		return path
	}
	return resolvePath(path, dir)
}
