package fixture

import (
	"errors"
	"fmt"

	"github.com/rickgorman/testbox/pkg/wait"
)

var (
	// ErrStartupFailed is matched by every error returned from Orchestrator.Start.
	ErrStartupFailed = errors.New("container startup failed")

	// ErrBuildFailed means the image could not be built or pulled.
	ErrBuildFailed = errors.New("image build failed")

	// ErrStartFailed means the engine rejected the create or start call.
	ErrStartFailed = errors.New("container start failed")

	// ErrWaitTimedOut means the container did not become ready in time.
	ErrWaitTimedOut = wait.ErrTimedOut

	// ErrWaitFailed means the container reached a state from which it cannot
	// become ready.
	ErrWaitFailed = wait.ErrFailed

	// ErrPortNotExposed means a port was queried that the specification never declared.
	ErrPortNotExposed = errors.New("port not exposed")

	// ErrExecFailed means a command could not be dispatched to the container.
	ErrExecFailed = errors.New("exec failed")
)

// Stage names the step of Start that failed.
type Stage string

const (
	StageValidate     Stage = "validate"
	StageImage        Stage = "resolve image"
	StageCreate       Stage = "create"
	StageStart        Stage = "start"
	StageWait         Stage = "wait"
	StageResolvePorts Stage = "resolve ports"
)

// StartupError describes a failed Start. The container, if one was created, has
// already been stopped and removed.
type StartupError struct {
	Stage       Stage
	Image       string
	ContainerID string
	Err         error
}

func (e *StartupError) Error() string {
	if e.ContainerID != "" {
		return fmt.Sprintf("start %s (container %s): %s: %v", e.Image, shortID(e.ContainerID), e.Stage, e.Err)
	}
	return fmt.Sprintf("start %s: %s: %v", e.Image, e.Stage, e.Err)
}

func (e *StartupError) Is(target error) bool {
	return target == ErrStartupFailed
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// shortID truncates a container id the way docker prints it.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
