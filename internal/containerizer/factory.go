package containerizer

import (
	"fmt"
	"strings"
)

// RuntimeType defines the type of container runtime
type RuntimeType string

const (
	RuntimeTypeDocker RuntimeType = "docker"
	RuntimeTypePodman RuntimeType = "podman"
)

// defaultPodmanHost is the rootful Podman socket serving the Docker API.
const defaultPodmanHost = "unix:///run/podman/podman.sock"

// NewContainerRuntime creates a new container runtime based on the specified type
func NewContainerRuntime(runtimeType string, opts Options) (ContainerRuntime, error) {
	rt := RuntimeType(strings.ToLower(runtimeType))

	switch rt {
	case RuntimeTypeDocker, "":
		// Default to Docker if not specified
		return NewDockerRuntime(opts)
	case RuntimeTypePodman:
		// Podman serves a Docker compatible API on its own socket.
		if opts.Host == "" {
			opts.Host = defaultPodmanHost
		}
		return NewDockerRuntime(opts)
	default:
		return nil, fmt.Errorf("unsupported container runtime: %s", runtimeType)
	}
}
