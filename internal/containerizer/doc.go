// Package containerizer provides the container runtime abstraction used by
// the inspector.
//
// # Core Components
//
// ContainerRuntime: interface over the runtime operations the inspector needs
//   - ListContainers: snapshot of running (and paused) containers
//   - GetContainer: inspect one container, nil when it is gone
//   - StreamEvents: container and network events since a point in time
//
// DockerRuntime: implementation on top of the Docker Engine API client
//   - Connects to a unix socket or any DOCKER_HOST address
//   - Filters containers by the expected labels
//   - Normalizes "health_status: ..." actions and drops exec events
//
// Podman is supported through its Docker compatible socket.
//
// # Container Snapshots
//
// Container values are snapshots. Networks are sorted by name and carry an
// optional address; Healthy is true when the container has no health check
// or reports healthy; Suspended is true when the container is paused.
//
// # Usage Example
//
//	runtime, err := containerizer.NewContainerRuntime("docker", containerizer.Options{
//	    Host:           "/var/run/docker.sock",
//	    ExpectedLabels: []string{"consul.inspector.enabled=true"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	events, errs := runtime.StreamEvents(ctx, time.Now())
//	for event := range events {
//	    ...
//	}
//	if err := <-errs; err != nil {
//	    ...
//	}
package containerizer
