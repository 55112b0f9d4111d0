// Package enginetest provides an in-memory engine.Engine for tests.
//
// Containers are scripted per image through a Behavior: when their ports get published,
// whether anything listens on them, which health states they report and which log lines
// they print. Published ports are backed by real TCP listeners on 127.0.0.1 so
// port-based readiness can be exercised without a container daemon.
package enginetest

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
)

// Behavior scripts how containers created from an image behave.
type Behavior struct {
	// PublishDelay delays the appearance of port bindings in inspections.
	PublishDelay time.Duration
	// NeverPublish keeps port bindings empty forever.
	NeverPublish bool
	// ListenDelay delays the moment published ports accept connections.
	ListenDelay time.Duration
	// NoListen publishes ports that never accept connections.
	NoListen bool

	// Health is returned by successive inspections. The last entry repeats.
	Health []string

	// Logs are printed once the container starts.
	Logs []string
	// LogDelay is the pause before each log line.
	LogDelay time.Duration
	// Follow keeps log streams open after the last line.
	Follow bool

	// ExitImmediately makes the container exit right after start.
	ExitImmediately bool
	// ExitCode is reported once the container exited.
	ExitCode int

	// Exec handles commands run in the container. Defaults to echoing the command.
	Exec func(cmd []string) (engine.ExecResult, error)

	CreateErr error
	StartErr  error
	StopErr   error
	RemoveErr error
}

// Container is the fake engine's record of a created container.
type Container struct {
	ID      string
	Name    string
	Options engine.CreateOptions

	behavior    Behavior
	startedAt   time.Time
	started     bool
	stopped     bool
	removed     bool
	inspects    int
	stopCalls   int
	removeCalls int
	hostPorts   map[int]int
	listeners   []net.Listener
	timers      []*time.Timer
}

// Engine is an in-memory engine.Engine.
type Engine struct {
	// HostAddr is returned by Host. Defaults to 127.0.0.1.
	HostAddr string
	// BuildErr fails every image build.
	BuildErr error
	// PullErr fails every image pull.
	PullErr error

	mu         sync.Mutex
	behaviors  map[string]Behavior
	fallback   Behavior
	containers map[string]*Container
	order      []string
	builds     []engine.BuildOptions
	pulls      []string
	nextID     int
}

var _ engine.Engine = (*Engine)(nil)

// New creates an empty fake engine.
func New() *Engine {
	return &Engine{
		HostAddr:   "127.0.0.1",
		behaviors:  make(map[string]Behavior),
		containers: make(map[string]*Container),
	}
}

// SetBehavior scripts containers created from image.
func (e *Engine) SetBehavior(image string, b Behavior) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.behaviors[image] = b
}

// SetDefaultBehavior scripts containers whose image has no behavior of its own.
func (e *Engine) SetDefaultBehavior(b Behavior) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = b
}

// BuildImage records the build and returns its tag.
func (e *Engine) BuildImage(ctx context.Context, opts engine.BuildOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builds = append(e.builds, opts)
	if e.BuildErr != nil {
		return "", e.BuildErr
	}
	if opts.Tag == "" {
		return "enginetest-build:latest", nil
	}
	return opts.Tag, nil
}

// PullImage records the pull.
func (e *Engine) PullImage(ctx context.Context, ref string, progress io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pulls = append(e.pulls, ref)
	return e.PullErr
}

// CreateContainer records a new container.
func (e *Engine) CreateContainer(ctx context.Context, opts engine.CreateOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.behaviors[opts.Image]
	if !ok {
		b = e.fallback
	}
	if b.CreateErr != nil {
		return "", b.CreateErr
	}

	e.nextID++
	id := fmt.Sprintf("%012x", e.nextID)
	name := opts.Name
	if name == "" {
		name = "enginetest_" + id
	}
	e.containers[id] = &Container{
		ID:        id,
		Name:      name,
		Options:   opts,
		behavior:  b,
		hostPorts: make(map[int]int),
	}
	e.order = append(e.order, id)
	return id, nil
}

// StartContainer starts the container and publishes its ports.
func (e *Engine) StartContainer(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.containers[id]
	if !ok || c.removed {
		return fmt.Errorf("start %s: %w", id, engine.ErrNotFound)
	}
	if c.behavior.StartErr != nil {
		return c.behavior.StartErr
	}
	c.started = true
	c.startedAt = time.Now()

	if c.Options.NetworkMode == "host" {
		return nil
	}
	for _, port := range c.Options.ExposedPorts {
		hostPort, err := reservePort()
		if err != nil {
			return fmt.Errorf("reserve host port: %w", err)
		}
		c.hostPorts[port] = hostPort
		if c.behavior.NoListen {
			continue
		}
		c.timers = append(c.timers, time.AfterFunc(c.behavior.ListenDelay, func() {
			e.listen(c, hostPort)
		}))
	}
	return nil
}

func (e *Engine) listen(c *Container, hostPort int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.stopped || c.removed {
		return
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", hostPort))
	if err != nil {
		return
	}
	c.listeners = append(c.listeners, ln)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
}

// StopContainer stops the container. Unknown containers are ignored.
func (e *Engine) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.containers[id]
	if !ok {
		return nil
	}
	c.stopCalls++
	if c.behavior.StopErr != nil {
		return c.behavior.StopErr
	}
	c.shutdown()
	return nil
}

// RemoveContainer removes the container. Unknown containers are ignored.
func (e *Engine) RemoveContainer(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.containers[id]
	if !ok {
		return nil
	}
	c.removeCalls++
	if c.behavior.RemoveErr != nil {
		return c.behavior.RemoveErr
	}
	c.shutdown()
	c.removed = true
	return nil
}

func (c *Container) shutdown() {
	c.stopped = true
	for _, t := range c.timers {
		t.Stop()
	}
	for _, ln := range c.listeners {
		_ = ln.Close()
	}
	c.listeners = nil
}

// InspectContainer reports the scripted state of the container.
func (e *Engine) InspectContainer(ctx context.Context, id string) (engine.Inspection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.containers[id]
	if !ok || c.removed {
		return engine.Inspection{}, fmt.Errorf("inspect %s: %w", id, engine.ErrNotFound)
	}

	insp := engine.Inspection{
		ID:          c.ID,
		Name:        c.Name,
		NetworkMode: c.Options.NetworkMode,
		Ports:       make(map[int]int),
	}
	switch {
	case !c.started:
		insp.Status = engine.StatusCreated
	case c.stopped || c.behavior.ExitImmediately:
		insp.Status = engine.StatusExited
		insp.ExitCode = c.behavior.ExitCode
	default:
		insp.Status = engine.StatusRunning
		insp.Running = true
	}

	if insp.Running && !c.behavior.NeverPublish && time.Since(c.startedAt) >= c.behavior.PublishDelay {
		for port, hostPort := range c.hostPorts {
			insp.Ports[port] = hostPort
		}
	}

	if n := len(c.behavior.Health); n > 0 && c.started {
		idx := c.inspects
		if idx >= n {
			idx = n - 1
		}
		insp.Health = c.behavior.Health[idx]
		c.inspects++
	}
	return insp, nil
}

// Exec runs the scripted exec handler.
func (e *Engine) Exec(ctx context.Context, id string, cmd []string) (engine.ExecResult, error) {
	e.mu.Lock()
	c, ok := e.containers[id]
	var handler func([]string) (engine.ExecResult, error)
	running := ok && c.started && !c.stopped && !c.removed
	if ok {
		handler = c.behavior.Exec
	}
	e.mu.Unlock()

	if !ok {
		return engine.ExecResult{}, fmt.Errorf("exec %s: %w", id, engine.ErrNotFound)
	}
	if !running {
		return engine.ExecResult{}, fmt.Errorf("container %s is not running", id)
	}
	if handler != nil {
		return handler(cmd)
	}
	return engine.ExecResult{Output: strings.Join(cmd, " ") + "\n"}, nil
}

// StreamLogs replays the scripted log lines from the beginning.
func (e *Engine) StreamLogs(ctx context.Context, id string) (engine.LogStream, error) {
	e.mu.Lock()
	c, ok := e.containers[id]
	var b Behavior
	if ok {
		b = c.behavior
	}
	e.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("logs %s: %w", id, engine.ErrNotFound)
	}

	pr, pw := io.Pipe()
	go func() {
		for _, line := range b.Logs {
			if b.LogDelay > 0 {
				select {
				case <-ctx.Done():
					_ = pw.CloseWithError(ctx.Err())
					return
				case <-time.After(b.LogDelay):
				}
			}
			if _, err := io.WriteString(pw, line+"\n"); err != nil {
				return
			}
		}
		if b.Follow {
			<-ctx.Done()
			_ = pw.CloseWithError(ctx.Err())
			return
		}
		_ = pw.Close()
	}()
	return engine.ScanLines(pr), nil
}

// Host returns HostAddr.
func (e *Engine) Host(ctx context.Context) (string, error) {
	return e.HostAddr, nil
}

// Container returns a snapshot of the container record, if any.
func (e *Engine) Container(id string) (Container, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.containers[id]
	if !ok {
		return Container{}, false
	}
	return Container{ID: c.ID, Name: c.Name, Options: c.Options}, true
}

// ContainerIDs returns the ids of all containers in creation order.
func (e *Engine) ContainerIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// StopCalls returns how often StopContainer was called for id.
func (e *Engine) StopCalls(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.containers[id]; ok {
		return c.stopCalls
	}
	return 0
}

// RemoveCalls returns how often RemoveContainer was called for id.
func (e *Engine) RemoveCalls(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.containers[id]; ok {
		return c.removeCalls
	}
	return 0
}

// Removed reports whether the container was removed.
func (e *Engine) Removed(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.containers[id]
	return ok && c.removed
}

// HostPort returns the host port reserved for a container port.
func (e *Engine) HostPort(id string, port int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.containers[id]; ok {
		return c.hostPorts[port]
	}
	return 0
}

// Builds returns the recorded image builds.
func (e *Engine) Builds() []engine.BuildOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.BuildOptions(nil), e.builds...)
}

// Pulls returns the recorded image pulls.
func (e *Engine) Pulls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.pulls...)
}

// Close releases every listener held by the fake.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.containers {
		c.shutdown()
	}
	return nil
}

// reservePort asks the kernel for a free port and releases it again.
func reservePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, err
	}
	return port, nil
}
