package containerizer

import (
	"context"
	"net/netip"
	"time"
)

// ContainerRuntime defines the interface for container runtime operations
// used by the inspector.
type ContainerRuntime interface {
	// ListContainers returns the running containers
	ListContainers(ctx context.Context) ([]*Container, error)

	// GetContainer returns a container by ID, or nil when it no longer
	// exists, has stopped or does not carry the expected labels.
	GetContainer(ctx context.Context, containerID string) (*Container, error)

	// StreamEvents streams container and network events that happened
	// after since. The event channel is closed when the stream ends; if it
	// ended because of a failure, the error is sent before closing.
	StreamEvents(ctx context.Context, since time.Time) (<-chan Event, <-chan error)
}

// Network is a network a container is attached to.
type Network struct {
	Name string
	// Address is the zero netip.Addr when the runtime reports no address.
	Address netip.Addr
}

// Container is a snapshot of a container. It is never modified once
// built; refreshed state replaces the whole value.
type Container struct {
	ID string
	// Networks are sorted by name.
	Networks  []Network
	Labels    map[string]string
	Healthy   bool
	Suspended bool
}

// ShortID returns the abbreviated container ID used in logs.
func (c *Container) ShortID() string {
	return ShortID(c.ID)
}

// WithState returns a copy of the container with the given flags.
func (c *Container) WithState(healthy, suspended bool) *Container {
	clone := *c
	clone.Healthy = healthy
	clone.Suspended = suspended
	return &clone
}

// EventType is the kind of object an event refers to.
type EventType string

const (
	EventTypeContainer EventType = "container"
	EventTypeNetwork   EventType = "network"
)

// Event actions with a meaning to the inspector. Runtimes may emit other
// actions as well.
const (
	ActionStart      = "start"
	ActionPause      = "pause"
	ActionUnpause    = "unpause"
	ActionDie        = "die"
	ActionHealthy    = "healthy"
	ActionUnhealthy  = "unhealthy"
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// Event is a single lifecycle or network notification for a container.
type Event struct {
	Type        EventType
	Action      string
	ContainerID string
}

// ShortID abbreviates a container ID to 12 characters.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
