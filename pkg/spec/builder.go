package spec

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rickgorman/testbox/pkg/wait"
)

// Builder assembles a Spec. Its methods modify the builder in place and return it
// for chaining; Build hands out an independent copy.
type Builder struct {
	spec Spec
	errs []error
}

// New starts a specification for a pre-built image.
func New(image string) *Builder {
	return &Builder{spec: Spec{Image: image}}
}

// FromBuildContext starts a specification whose image is built from path, a local
// directory or a git URL.
func FromBuildContext(path string) *Builder {
	return &Builder{spec: Spec{Build: &BuildContext{Path: path}}}
}

// WithExposedPorts declares container ports. Duplicates are ignored.
func (b *Builder) WithExposedPorts(ports ...int) *Builder {
	b.spec.ExposedPorts = append(b.spec.ExposedPorts, ports...)
	return b
}

// WithEnv sets one environment variable.
func (b *Builder) WithEnv(key, value string) *Builder {
	if b.spec.Env == nil {
		b.spec.Env = make(map[string]string)
	}
	b.spec.Env[key] = value
	return b
}

// WithEnvMap sets several environment variables.
func (b *Builder) WithEnvMap(env map[string]string) *Builder {
	for k, v := range env {
		b.WithEnv(k, v)
	}
	return b
}

// WithEnvFile loads KEY=VALUE pairs from a dotenv file. Variables set later win.
func (b *Builder) WithEnvFile(path string) *Builder {
	env, err := godotenv.Read(path)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("failed to read env file %s: %w", path, err))
		return b
	}
	return b.WithEnvMap(env)
}

// WithCmd overrides the image's default command.
func (b *Builder) WithCmd(args ...string) *Builder {
	b.spec.Cmd = append([]string(nil), args...)
	return b
}

// WithName sets the container name. The engine assigns one otherwise.
func (b *Builder) WithName(name string) *Builder {
	b.spec.Name = name
	return b
}

// WithNetworkMode sets the network mode, for example "host" or "bridge".
func (b *Builder) WithNetworkMode(mode string) *Builder {
	b.spec.NetworkMode = mode
	return b
}

// WithBindMount mounts hostPath at containerPath.
func (b *Builder) WithBindMount(hostPath, containerPath string) *Builder {
	b.spec.BindMounts = append(b.spec.BindMounts, BindMount{HostPath: hostPath, ContainerPath: containerPath})
	return b
}

// WithReadOnlyBindMount mounts hostPath read-only at containerPath.
func (b *Builder) WithReadOnlyBindMount(hostPath, containerPath string) *Builder {
	b.spec.BindMounts = append(b.spec.BindMounts, BindMount{HostPath: hostPath, ContainerPath: containerPath, ReadOnly: true})
	return b
}

// WithTmpfs mounts a tmpfs at containerPath with the given options.
func (b *Builder) WithTmpfs(containerPath, options string) *Builder {
	if b.spec.TmpfsMounts == nil {
		b.spec.TmpfsMounts = make(map[string]string)
	}
	b.spec.TmpfsMounts[containerPath] = options
	return b
}

// WithHealthCheck injects a health check, replacing the one from the image.
func (b *Builder) WithHealthCheck(hc HealthCheck) *Builder {
	b.spec.HealthCheck = &hc
	return b
}

// WithWaitStrategy selects how readiness is decided.
func (b *Builder) WithWaitStrategy(s wait.Strategy) *Builder {
	b.spec.WaitStrategy = s
	return b
}

// WithLogDriver selects the engine log driver.
func (b *Builder) WithLogDriver(driver string) *Builder {
	b.spec.LogDriver = driver
	return b
}

// WithLabel adds a container label.
func (b *Builder) WithLabel(key, value string) *Builder {
	if b.spec.Labels == nil {
		b.spec.Labels = make(map[string]string)
	}
	b.spec.Labels[key] = value
	return b
}

// WithBuildArg sets a build argument. It requires a build context.
func (b *Builder) WithBuildArg(key, value string) *Builder {
	if !b.requireBuild("build arg " + key) {
		return b
	}
	if b.spec.Build.Args == nil {
		b.spec.Build.Args = make(map[string]string)
	}
	b.spec.Build.Args[key] = value
	return b
}

// WithDockerfile names the Dockerfile inside the build context.
func (b *Builder) WithDockerfile(name string) *Builder {
	if b.requireBuild("dockerfile") {
		b.spec.Build.Dockerfile = name
	}
	return b
}

// WithTag names the built image.
func (b *Builder) WithTag(tag string) *Builder {
	if b.requireBuild("tag") {
		b.spec.Build.Tag = tag
	}
	return b
}

func (b *Builder) requireBuild(what string) bool {
	if b.spec.Build == nil {
		b.errs = append(b.errs, fmt.Errorf("%s set on an image specification without build context", what))
		return false
	}
	return true
}

// Build validates the specification and returns a copy that no later builder call
// can change.
func (b *Builder) Build() (Spec, error) {
	s := b.spec.Clone()
	s.ExposedPorts = normalizePorts(s.ExposedPorts)

	if err := errors.Join(append(append([]error(nil), b.errs...), s.Validate())...); err != nil {
		return Spec{}, fmt.Errorf("invalid container specification: %w", err)
	}
	return s, nil
}

// MustBuild is like Build but panics on an invalid specification.
func (b *Builder) MustBuild() Spec {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
