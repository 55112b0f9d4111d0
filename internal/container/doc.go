// Package container implements engine.Engine on top of the Docker SDK.
//
// The package provides four main components:
//
// 1. Docker Client Wrapper (docker.go)
//    - Client construction from the environment (DOCKER_HOST and friends)
//    - Image pulls and builds, from local directories or git repositories
//    - Host resolution for published ports
//
// 2. Container Lifecycle (lifecycle.go)
//    - Create, start, stop and remove containers
//    - Inspection, exec and log streaming
//
// 3. Port Mapping (ports.go)
//    - Container ports to nat.Port and back
//    - Published host ports from inspection results
//
// 4. Volume Management (volumes.go)
//    - Bind mount parsing ("host:container[:ro]")
//    - Home directory expansion and absolute host paths
//
// Basic usage:
//
//	client, err := container.NewClient()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	id, err := client.CreateContainer(ctx, engine.CreateOptions{
//	    Image:        "redis:7-alpine",
//	    ExposedPorts: []int{6379},
//	})
//
// Every exposed port is published on an ephemeral host port; read it back from
// InspectContainer once the container runs.
package container
