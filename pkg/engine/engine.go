// Package engine defines the boundary between testbox and the container engine.
//
// The Engine interface is the only way the orchestrator and the wait strategies talk to
// the engine. internal/container implements it on top of the Docker SDK and
// pkg/engine/enginetest implements it in memory for tests.
package engine

import (
	"context"
	"errors"
	"io"
	"time"
)

// Container states as reported by Inspection.Status.
const (
	StatusCreated    = "created"
	StatusRunning    = "running"
	StatusPaused     = "paused"
	StatusRestarting = "restarting"
	StatusRemoving   = "removing"
	StatusExited     = "exited"
	StatusDead       = "dead"
)

// Health states as reported by Inspection.Health. An empty string means the
// container has no health check.
const (
	HealthNone      = ""
	HealthStarting  = "starting"
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

var (
	// ErrNotFound is returned when the engine does not know the container.
	ErrNotFound = errors.New("container not found")

	// ErrPortNotPublished is returned when a container port has no host binding.
	ErrPortNotPublished = errors.New("port not published")
)

// Engine is the control surface of a container engine. Implementations must be safe
// for concurrent use by multiple goroutines.
type Engine interface {
	// BuildImage builds an image from a build context and returns its reference.
	BuildImage(ctx context.Context, opts BuildOptions) (string, error)

	// PullImage makes sure ref is available locally, pulling it when missing.
	PullImage(ctx context.Context, ref string, progress io.Writer) error

	// CreateContainer creates a container and returns its id.
	CreateContainer(ctx context.Context, opts CreateOptions) (string, error)

	// StartContainer starts a created container.
	StartContainer(ctx context.Context, id string) error

	// StopContainer stops a container. Stopping an absent container is not an error.
	StopContainer(ctx context.Context, id string, timeout time.Duration) error

	// RemoveContainer force removes a container. Removing an absent container is not an error.
	RemoveContainer(ctx context.Context, id string) error

	// InspectContainer reports the current state of a container.
	InspectContainer(ctx context.Context, id string) (Inspection, error)

	// Exec runs cmd inside the container and waits for it to finish.
	Exec(ctx context.Context, id string, cmd []string) (ExecResult, error)

	// StreamLogs opens the container log from the beginning and follows it.
	StreamLogs(ctx context.Context, id string) (LogStream, error)

	// Host returns the address under which published ports are reachable.
	Host(ctx context.Context) (string, error)
}

// BuildOptions describes an image build.
type BuildOptions struct {
	ContextPath string
	Dockerfile  string
	Args        map[string]string
	Tag         string
}

// BindMount mounts a host path into the container.
type BindMount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// HealthCheck is the engine-level health check injected at create time.
type HealthCheck struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

// CreateOptions holds everything the engine needs to create a container.
type CreateOptions struct {
	Image        string
	Name         string
	ExposedPorts []int
	Env          map[string]string
	Cmd          []string
	NetworkMode  string
	BindMounts   []BindMount
	TmpfsMounts  map[string]string
	HealthCheck  *HealthCheck
	LogDriver    string
	Labels       map[string]string
}

// Inspection is a snapshot of a container's state.
type Inspection struct {
	ID          string
	Name        string
	Status      string
	Running     bool
	ExitCode    int
	Health      string
	NetworkMode string

	// Ports maps container ports to published host ports. It may be empty
	// right after start while the engine is still publishing.
	Ports map[int]int
}

// Exited reports whether the container has stopped running for good.
func (i Inspection) Exited() bool {
	return i.Status == StatusExited || i.Status == StatusDead
}

// ExecResult is the outcome of a command run inside a container. A non-zero
// ExitCode is a normal result, not an error.
type ExecResult struct {
	Output   string
	ExitCode int
}
