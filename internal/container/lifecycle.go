package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rickgorman/testbox/pkg/engine"
)

// CreateContainer creates a container with every exposed port published on an
// ephemeral host port.
func (c *Client) CreateContainer(ctx context.Context, opts engine.CreateOptions) (string, error) {
	hostConfig, err := buildHostConfig(opts)
	if err != nil {
		return "", err
	}

	resp, err := c.cli.ContainerCreate(
		ctx,
		buildContainerConfig(opts),
		hostConfig,
		nil,
		nil,
		opts.Name,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return resp.ID, nil
}

// StartContainer starts a created container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// StopContainer stops a container, killing it after timeout.
func (c *Client) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	seconds := stopSeconds(timeout)
	err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds})
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// stopSeconds converts a stop timeout to docker's whole seconds, rounding up so a
// positive timeout never becomes an immediate kill.
func stopSeconds(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	return int((timeout + time.Second - 1) / time.Second)
}

// RemoveContainer force removes a container and its anonymous volumes.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	options := container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}

	err := c.cli.ContainerRemove(ctx, id, options)
	if err != nil && !isNotFoundError(err) && !isRemovalInProgress(err) {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// InspectContainer reports the state, health and published ports of a container.
func (c *Client) InspectContainer(ctx context.Context, id string) (engine.Inspection, error) {
	resp, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		if isNotFoundError(err) {
			return engine.Inspection{}, fmt.Errorf("inspect %s: %w", id, engine.ErrNotFound)
		}
		return engine.Inspection{}, fmt.Errorf("failed to inspect container: %w", err)
	}
	return toInspection(resp), nil
}

// Exec runs cmd in the container and returns its combined output and exit code.
func (c *Client) Exec(ctx context.Context, id string, cmd []string) (engine.ExecResult, error) {
	created, err := c.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return engine.ExecResult{}, fmt.Errorf("failed to create exec: %w", err)
	}

	attached, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return engine.ExecResult{}, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attached.Close()

	var output bytes.Buffer
	w := &syncWriter{w: &output}
	if _, err := stdcopy.StdCopy(w, w, attached.Reader); err != nil {
		return engine.ExecResult{}, fmt.Errorf("failed to read exec output: %w", err)
	}

	info, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return engine.ExecResult{}, fmt.Errorf("failed to inspect exec: %w", err)
	}
	return engine.ExecResult{Output: output.String(), ExitCode: info.ExitCode}, nil
}

// StreamLogs follows stdout and stderr of the container from the beginning.
func (c *Client) StreamLogs(ctx context.Context, id string) (engine.LogStream, error) {
	rc, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("logs %s: %w", id, engine.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open logs: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		w := &syncWriter{w: pw}
		_, err := stdcopy.StdCopy(w, w, rc)
		_ = pw.CloseWithError(err)
	}()
	return engine.ScanLines(&demuxedLogs{PipeReader: pr, raw: rc}), nil
}

// demuxedLogs closes the raw docker stream together with the demultiplexed pipe.
type demuxedLogs struct {
	*io.PipeReader
	raw io.Closer
}

func (d *demuxedLogs) Close() error {
	err := d.raw.Close()
	_ = d.PipeReader.Close()
	return err
}

// syncWriter serializes stdout and stderr frames written to the same sink.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
