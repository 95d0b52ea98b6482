package inspector

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"inspector/internal/containerizer"
	"inspector/internal/ecs"
)

// EventType is the kind of a lifecycle event emitted by the inspector.
type EventType int

const (
	EventDetected EventType = iota
	EventNetworksUpdated
	EventPaused
	EventUnpaused
	EventDisposed
	EventHealthy
	EventUnhealthy
	EventInspectionCompleted
)

func (t EventType) String() string {
	switch t {
	case EventDetected:
		return "Detected"
	case EventNetworksUpdated:
		return "NetworksUpdated"
	case EventPaused:
		return "Paused"
	case EventUnpaused:
		return "Unpaused"
	case EventDisposed:
		return "Disposed"
	case EventHealthy:
		return "Healthy"
	case EventUnhealthy:
		return "Unhealthy"
	case EventInspectionCompleted:
		return "InspectionCompleted"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Descriptor identifies the container an event refers to. Container is nil
// when the container was disposed before it could be inspected.
type Descriptor struct {
	ContainerID string
	Container   *containerizer.Container
}

// Event is a lifecycle notification for a named container.
type Event struct {
	Type        EventType
	ServiceName string

	// Descriptor is nil for EventInspectionCompleted.
	Descriptor *Descriptor
}

func (e Event) String() string {
	if e.Descriptor == nil {
		return e.Type.String()
	}
	return fmt.Sprintf("%s(%s, %s)", e.Type, e.ServiceName, containerizer.ShortID(e.Descriptor.ContainerID))
}

// NameSource records where the service name of a container came from.
type NameSource int

const (
	NameSourceNone NameSource = iota
	NameSourceLabel
	NameSourceTask
)

func (s NameSource) String() string {
	switch s {
	case NameSourceLabel:
		return "label"
	case NameSourceTask:
		return "task"
	default:
		return "none"
	}
}

// descriptor is the cached view of a container and its resolved name.
type descriptor struct {
	container   *containerizer.Container
	serviceName string
	source      NameSource
}

func (d *descriptor) named() bool {
	return d.serviceName != ""
}

func (d *descriptor) event(t EventType) Event {
	return Event{
		Type:        t,
		ServiceName: d.serviceName,
		Descriptor:  &Descriptor{ContainerID: d.container.ID, Container: d.container},
	}
}

// TaskResolver resolves ECS task identifiers to task groups.
type TaskResolver interface {
	// GetCredentials returns nil when no credentials are available
	GetCredentials(ctx context.Context) (*aws.Credentials, error)

	// DescribeTasks returns the tasks that could be resolved
	DescribeTasks(ctx context.Context, ids []ecs.TaskIdentifier) ([]ecs.Task, error)
}

// Default container labels.
const (
	DefaultServiceNameLabel = "consul.inspector.service.name"
	DefaultTaskARNLabel     = ecs.TaskARNLabel
)

// Config holds the labels the inspector reads from containers.
type Config struct {
	ServiceNameLabel string
	TaskARNLabel     string
}

func (c Config) withDefaults() Config {
	if c.ServiceNameLabel == "" {
		c.ServiceNameLabel = DefaultServiceNameLabel
	}
	if c.TaskARNLabel == "" {
		c.TaskARNLabel = DefaultTaskARNLabel
	}
	return c
}
