package container

import (
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/rickgorman/testbox/pkg/engine"
)

// buildContainerConfig creates a container.Config from CreateOptions.
func buildContainerConfig(opts engine.CreateOptions) *container.Config {
	config := &container.Config{
		Image:  opts.Image,
		Env:    envList(opts.Env),
		Labels: opts.Labels,
	}

	if len(opts.Cmd) > 0 {
		config.Cmd = append([]string(nil), opts.Cmd...)
	}

	if len(opts.ExposedPorts) > 0 {
		config.ExposedPorts = exposedPortSet(opts.ExposedPorts)
	}

	if hc := opts.HealthCheck; hc != nil {
		config.Healthcheck = &container.HealthConfig{
			Test:        append([]string(nil), hc.Test...),
			Interval:    hc.Interval,
			Timeout:     hc.Timeout,
			StartPeriod: hc.StartPeriod,
			Retries:     hc.Retries,
		}
	}

	return config
}

// buildHostConfig creates a container.HostConfig from CreateOptions.
func buildHostConfig(opts engine.CreateOptions) (*container.HostConfig, error) {
	hostConfig := &container.HostConfig{}

	// Set network mode
	if opts.NetworkMode != "" {
		hostConfig.NetworkMode = container.NetworkMode(opts.NetworkMode)
	}

	// Publish every exposed port on an ephemeral host port
	if len(opts.ExposedPorts) > 0 && !hostConfig.NetworkMode.IsHost() {
		hostConfig.PortBindings = ephemeralBindings(opts.ExposedPorts)
	}

	// Add bind mounts
	if len(opts.BindMounts) > 0 {
		mounts := make([]mount.Mount, 0, len(opts.BindMounts))
		for _, bm := range opts.BindMounts {
			source, err := resolveHostPath(bm.HostPath)
			if err != nil {
				return nil, err
			}
			mounts = append(mounts, mount.Mount{
				Type:     mount.TypeBind,
				Source:   source,
				Target:   bm.ContainerPath,
				ReadOnly: bm.ReadOnly,
			})
		}
		hostConfig.Mounts = mounts
	}

	if len(opts.TmpfsMounts) > 0 {
		hostConfig.Tmpfs = make(map[string]string, len(opts.TmpfsMounts))
		for path, options := range opts.TmpfsMounts {
			hostConfig.Tmpfs[path] = options
		}
	}

	if opts.LogDriver != "" {
		hostConfig.LogConfig = container.LogConfig{Type: opts.LogDriver}
	}

	return hostConfig, nil
}

// toInspection converts a docker inspection into the engine's view.
func toInspection(resp types.ContainerJSON) engine.Inspection {
	insp := engine.Inspection{Ports: map[int]int{}}
	if resp.ContainerJSONBase != nil {
		insp.ID = resp.ID
		insp.Name = strings.TrimPrefix(resp.Name, "/")
		if s := resp.State; s != nil {
			insp.Status = s.Status
			insp.Running = s.Running
			insp.ExitCode = s.ExitCode
			if s.Health != nil {
				insp.Health = s.Health.Status
			}
		}
		if resp.HostConfig != nil {
			insp.NetworkMode = string(resp.HostConfig.NetworkMode)
		}
	}
	if resp.NetworkSettings != nil {
		insp.Ports = publishedPorts(resp.NetworkSettings.Ports)
	}
	return insp
}

// envList converts an env map to docker's sorted KEY=VALUE list.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// isNotFoundError checks if an error is a "not found" error from Docker.
func isNotFoundError(err error) bool {
	return client.IsErrNotFound(err)
}

// isRemovalInProgress matches the conflict docker reports while a container is
// already being removed.
func isRemovalInProgress(err error) bool {
	return strings.Contains(err.Error(), "is already in progress")
}
