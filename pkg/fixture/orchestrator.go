package fixture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rickgorman/testbox/internal/container"
	"github.com/rickgorman/testbox/internal/git"
	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/hash"
	"github.com/rickgorman/testbox/pkg/spec"
)

const (
	// DefaultPortGrace bounds how long a started container may take to publish its ports.
	DefaultPortGrace = 5 * time.Second

	// DefaultStartupTimeout bounds a whole Start call.
	DefaultStartupTimeout = 2 * time.Minute

	// DefaultStopTimeout is how long a container gets to stop before it is killed.
	DefaultStopTimeout = 10 * time.Second
)

// Labels set on every container testbox creates.
const (
	LabelManaged = "testbox.managed"
	LabelSession = "testbox.session"
)

// Orchestrator starts containers from specifications and waits until they are ready.
// It is safe for concurrent use; each Start call owns the container it creates.
type Orchestrator struct {
	eng            engine.Engine
	logger         *slog.Logger
	portGrace      time.Duration
	startupTimeout time.Duration
	stopTimeout    time.Duration
	session        string
	pullProgress   io.Writer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Logging is discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPortGrace sets how long to wait for the engine to publish ports after start.
func WithPortGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.portGrace = d
		}
	}
}

// WithStartupTimeout bounds each Start call, image resolution included.
func WithStartupTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.startupTimeout = d
		}
	}
}

// WithStopTimeout sets the grace period given to containers on stop.
func WithStopTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

// WithSessionLabel sets the value of the testbox.session label.
func WithSessionLabel(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.session = id
		}
	}
}

// WithPullProgress receives the engine's pull progress.
func WithPullProgress(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.pullProgress = w
	}
}

// New creates an orchestrator on top of eng.
func New(eng engine.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		eng:            eng,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		portGrace:      DefaultPortGrace,
		startupTimeout: DefaultStartupTimeout,
		stopTimeout:    DefaultStopTimeout,
		session:        uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.logger = o.logger.With(slog.String("logger", "testbox"))
	return o
}

// NewDocker creates an orchestrator on the Docker engine configured from the
// environment (DOCKER_HOST and friends).
func NewDocker(opts ...Option) (*Orchestrator, error) {
	cli, err := container.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return New(cli, opts...), nil
}

// Session returns the value of the testbox.session label.
func (o *Orchestrator) Session() string {
	return o.session
}

// Close releases the engine connection if the engine holds one.
func (o *Orchestrator) Close() error {
	if closer, ok := o.eng.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Start resolves the image, creates and starts the container and blocks until its
// wait strategy reports it ready. On any failure after create the container is
// stopped and removed before the *StartupError is returned.
func (o *Orchestrator) Start(ctx context.Context, s spec.Spec) (_ *Container, retErr error) {
	s = s.Clone()
	ref := s.Reference()
	logger := o.logger.With(slog.String("image", ref))

	if err := s.Validate(); err != nil {
		return nil, &StartupError{Stage: StageValidate, Image: ref, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, o.startupTimeout)
	defer cancel()
	started := time.Now()

	image, err := o.resolveImage(ctx, s, logger)
	if err != nil {
		return nil, &StartupError{Stage: StageImage, Image: ref, Err: fmt.Errorf("%w: %w", ErrBuildFailed, err)}
	}

	id, err := o.eng.CreateContainer(ctx, createOptions(s, image, o.session))
	if err != nil {
		return nil, &StartupError{Stage: StageCreate, Image: image, Err: fmt.Errorf("%w: %w", ErrStartFailed, err)}
	}
	logger = logger.With(slog.String("container_id", shortID(id)))

	c := &Container{
		eng:         o.eng,
		logger:      logger,
		spec:        s,
		id:          id,
		name:        s.Name,
		image:       image,
		portGrace:   o.portGrace,
		stopTimeout: o.stopTimeout,
	}
	defer func() {
		if retErr == nil {
			return
		}
		if err := c.Stop(ctx); err != nil {
			logger.Error("cleanup after failed start", slog.Any("error", err))
		}
	}()

	if err := o.eng.StartContainer(ctx, id); err != nil {
		return nil, o.stageError(StageStart, c, fmt.Errorf("%w: %w", ErrStartFailed, err))
	}
	logger.Debug("container started")

	strategy := s.EffectiveWaitStrategy()
	if err := strategy.WaitUntilReady(ctx, target{c: c}); err != nil {
		logger.Warn("container not ready", slog.String("strategy", fmt.Sprintf("%T", strategy)), slog.Any("error", err))
		return nil, o.stageError(StageWait, c, err)
	}

	if len(s.ExposedPorts) > 0 && !s.HostNetwork() {
		if _, err := c.resolvePorts(ctx); err != nil {
			return nil, o.stageError(StageResolvePorts, c, fmt.Errorf("%w: %w", ErrWaitFailed, err))
		}
	}

	if insp, err := o.eng.InspectContainer(ctx, id); err == nil && insp.Name != "" {
		c.name = strings.TrimPrefix(insp.Name, "/")
	}

	logger.Info("container ready",
		slog.String("name", c.name),
		slog.Duration("elapsed", time.Since(started)),
	)
	return c, nil
}

func (o *Orchestrator) stageError(stage Stage, c *Container, err error) *StartupError {
	return &StartupError{Stage: stage, Image: c.image, ContainerID: c.id, Err: err}
}

// resolveImage builds the image from its build context or makes sure the reference
// is available locally.
func (o *Orchestrator) resolveImage(ctx context.Context, s spec.Spec, logger *slog.Logger) (string, error) {
	if s.Build == nil {
		if err := o.eng.PullImage(ctx, s.Image, o.pullProgress); err != nil {
			return "", fmt.Errorf("failed to pull %s: %w", s.Image, err)
		}
		return s.Image, nil
	}

	opts, err := buildOptions(*s.Build)
	if err != nil {
		return "", err
	}
	logger.Info("building image", slog.String("context", opts.ContextPath), slog.String("tag", opts.Tag))
	image, err := o.eng.BuildImage(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("failed to build %s: %w", opts.ContextPath, err)
	}
	return image, nil
}

// buildOptions resolves a local build context to an absolute path and derives the
// default tag from it.
func buildOptions(b spec.BuildContext) (engine.BuildOptions, error) {
	path := b.Path
	if !git.IsGitURL(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return engine.BuildOptions{}, fmt.Errorf("failed to resolve build context %s: %w", path, err)
		}
		path = abs
	}

	tag := b.Tag
	if tag == "" {
		tag = "testbox-" + hash.PathHash(path) + ":latest"
	}
	return engine.BuildOptions{
		ContextPath: path,
		Dockerfile:  b.Dockerfile,
		Args:        maps.Clone(b.Args),
		Tag:         tag,
	}, nil
}

// createOptions maps a specification onto the engine's create call.
func createOptions(s spec.Spec, image, session string) engine.CreateOptions {
	opts := engine.CreateOptions{
		Image:        image,
		Name:         s.Name,
		ExposedPorts: append([]int(nil), s.ExposedPorts...),
		Env:          maps.Clone(s.Env),
		Cmd:          append([]string(nil), s.Cmd...),
		NetworkMode:  s.NetworkMode,
		TmpfsMounts:  maps.Clone(s.TmpfsMounts),
		LogDriver:    s.LogDriver,
		Labels:       make(map[string]string, len(s.Labels)+2),
	}

	for _, m := range s.BindMounts {
		opts.BindMounts = append(opts.BindMounts, engine.BindMount{
			HostPath:      m.HostPath,
			ContainerPath: m.ContainerPath,
			ReadOnly:      m.ReadOnly,
		})
	}

	if hc := s.HealthCheck; hc != nil {
		opts.HealthCheck = &engine.HealthCheck{
			Test:        append([]string(nil), hc.Test...),
			Interval:    hc.Interval,
			Timeout:     hc.Timeout,
			StartPeriod: hc.StartPeriod,
			Retries:     hc.Retries,
		}
	}

	maps.Copy(opts.Labels, s.Labels)
	opts.Labels[LabelManaged] = "true"
	opts.Labels[LabelSession] = session
	return opts
}
