package reconciler

import (
	"context"
	"errors"
	"iter"
	"net/netip"
	"time"

	"inspector/internal/inspector"
)

// Metadata keys written on every registry entry.
const (
	// MetaContainerID links an entry back to the container it describes.
	MetaContainerID = "container_id"

	// MetaManagedInstanceID carries the ECS Anywhere managed instance.
	MetaManagedInstanceID = "managed_instance_id"
)

var (
	// ErrEntryNotFound is returned by a RegistryClient when the entry to
	// deregister does not exist.
	ErrEntryNotFound = errors.New("registry entry not found")

	// ErrNoAddress is returned when a container has no usable address.
	ErrNoAddress = errors.New("container has no address")

	// ErrAmbiguousAddress is returned when a container has several addresses.
	ErrAmbiguousAddress = errors.New("container has more than one address")
)

// HealthCheck is a registry side check of an entry. Exactly one of HTTP,
// TCP and UDP is set.
type HealthCheck struct {
	HTTP     string
	TCP      string
	UDP      string
	Interval time.Duration
	Timeout  time.Duration
}

// RegistryEntry is a service registration.
type RegistryEntry struct {
	ID      string
	Name    string
	Address netip.Addr
	Tags    []string

	// Metadata contains MetaContainerID for entries owned by the reconciler.
	Metadata map[string]string
	Check    *HealthCheck
}

// ContainerID returns the back-reference to the owning container.
func (e RegistryEntry) ContainerID() string {
	return e.Metadata[MetaContainerID]
}

// RegistryClient mutates the service registry.
type RegistryClient interface {
	// ListEntries returns every registered entry
	ListEntries(ctx context.Context) ([]RegistryEntry, error)

	// Register creates or replaces an entry
	Register(ctx context.Context, entry RegistryEntry) error

	// Deregister removes an entry; ErrEntryNotFound when it does not exist
	Deregister(ctx context.Context, id string) error
}

// EventSource produces the container lifecycle events to reconcile.
type EventSource interface {
	Inspect(ctx context.Context) iter.Seq2[inspector.Event, error]
}

// Default labels read when building entries.
const (
	DefaultHealthLabel         = "consul.inspector.service.health"
	DefaultHealthIntervalLabel = "consul.inspector.service.health.interval"
	DefaultHealthTimeoutLabel  = "consul.inspector.service.health.timeout"
	DefaultTagsLabel           = "consul.inspector.service.tags"

	DefaultHealthInterval = 10 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
)

// Config holds the settings of the reconciler.
type Config struct {
	// AdvertiseAddress is used for containers on the host network.
	AdvertiseAddress string

	// ManagedInstanceID is added to the metadata of every entry when set.
	ManagedInstanceID string

	HealthLabel         string
	HealthIntervalLabel string
	HealthTimeoutLabel  string
	TagsLabel           string
}

func (c Config) withDefaults() Config {
	if c.HealthLabel == "" {
		c.HealthLabel = DefaultHealthLabel
	}
	if c.HealthIntervalLabel == "" {
		c.HealthIntervalLabel = DefaultHealthIntervalLabel
	}
	if c.HealthTimeoutLabel == "" {
		c.HealthTimeoutLabel = DefaultHealthTimeoutLabel
	}
	if c.TagsLabel == "" {
		c.TagsLabel = DefaultTagsLabel
	}
	return c
}
