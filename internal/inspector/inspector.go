package inspector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"inspector/internal/containerizer"
	"inspector/pkg/logging"
)

const subsystem = "Inspector"

var (
	// ErrAlreadyInspected is returned when Inspect is iterated a second time.
	ErrAlreadyInspected = errors.New("inspection already started")

	// ErrStreamEnded is returned when the runtime closes its event stream.
	ErrStreamEnded = errors.New("runtime event stream ended")
)

// actionTypes maps container actions to the events they produce.
var actionTypes = map[string]EventType{
	containerizer.ActionStart:     EventDetected,
	containerizer.ActionPause:     EventPaused,
	containerizer.ActionUnpause:   EventUnpaused,
	containerizer.ActionDie:       EventDisposed,
	containerizer.ActionHealthy:   EventHealthy,
	containerizer.ActionUnhealthy: EventUnhealthy,
}

var networkActions = map[string]bool{
	containerizer.ActionConnect:    true,
	containerizer.ActionDisconnect: true,
}

// Inspector turns the runtime's container listing and event stream into
// service lifecycle events.
type Inspector struct {
	runtime  containerizer.ContainerRuntime
	resolver TaskResolver
	config   Config

	// cache is only accessed from the goroutine iterating Inspect.
	cache map[string]*descriptor

	started atomic.Bool
	now     func() time.Time
}

// New creates an inspector. resolver may be nil, in which case containers
// are only named by label.
func New(runtime containerizer.ContainerRuntime, resolver TaskResolver, config Config) *Inspector {
	return &Inspector{
		runtime:  runtime,
		resolver: resolver,
		config:   config.withDefaults(),
		cache:    make(map[string]*descriptor),
		now:      time.Now,
	}
}

// errStopped signals that the consumer stopped iterating.
var errStopped = errors.New("consumer stopped")

// Inspect returns the event sequence. It first reports every running,
// named container as Detected followed by exactly one InspectionCompleted,
// then follows the runtime's events until ctx is cancelled. The sequence
// can only be iterated once. A non-nil error is always the last element.
func (i *Inspector) Inspect(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if !i.started.CompareAndSwap(false, true) {
			yield(Event{}, ErrAlreadyInspected)
			return
		}

		emit := func(e Event) error {
			logging.Debug(subsystem, "Emitting %s", e)
			if !yield(e, nil) {
				return errStopped
			}
			return nil
		}

		err := i.run(ctx, emit)
		if err != nil && !errors.Is(err, errStopped) {
			yield(Event{}, err)
		}
	}
}

func (i *Inspector) run(ctx context.Context, emit func(Event) error) error {
	// Events between listing and subscribing must not be lost.
	since := i.now()

	if err := i.bootstrap(ctx, emit); err != nil {
		return err
	}

	events, errs := i.runtime.StreamEvents(ctx, since)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				select {
				case err := <-errs:
					return fmt.Errorf("failed to stream runtime events: %w", err)
				default:
				}
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamEnded
			}

			if err := i.handle(ctx, event, emit); err != nil {
				return err
			}
		}
	}
}

func (i *Inspector) bootstrap(ctx context.Context, emit func(Event) error) error {
	containers, err := i.runtime.ListContainers(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(containers))
	unique := make([]*containerizer.Container, 0, len(containers))
	for _, c := range containers {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		unique = append(unique, c)
	}

	descriptors, err := i.resolve(ctx, unique)
	if err != nil {
		return err
	}

	named := 0
	for _, d := range descriptors {
		i.cache[d.container.ID] = d
		if !d.named() {
			continue
		}
		named++
		if err := emit(d.event(EventDetected)); err != nil {
			return err
		}
	}

	logging.Info(subsystem, "Inspected %d containers, %d named", len(descriptors), named)
	return emit(Event{Type: EventInspectionCompleted})
}

func (i *Inspector) handle(ctx context.Context, event containerizer.Event, emit func(Event) error) error {
	isNetwork := event.Type == containerizer.EventTypeNetwork
	eventType, known := actionTypes[event.Action]
	if !known && !networkActions[event.Action] {
		logging.Debug(subsystem, "Discarding %s event %q for %s", event.Type, event.Action, containerizer.ShortID(event.ContainerID))
		return nil
	}

	id := event.ContainerID
	cached, isCached := i.cache[id]

	var fresh *descriptor
	announced := false

	switch {
	case !isCached && event.Action == containerizer.ActionDie:
		// Never seen, nothing left to inspect.
		return emit(Event{Type: EventDisposed, Descriptor: &Descriptor{ContainerID: id}})

	case !isCached:
		c, err := i.runtime.GetContainer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			// Gone already; a die event follows.
			logging.Debug(subsystem, "Container %s vanished before inspection", containerizer.ShortID(id))
			return nil
		}

		descriptors, err := i.resolve(ctx, []*containerizer.Container{c})
		if err != nil {
			return err
		}
		fresh = descriptors[0]
		i.cache[id] = fresh

		if fresh.named() {
			if err := emit(fresh.event(EventDetected)); err != nil {
				return err
			}
			announced = true
		}

	case event.Action == containerizer.ActionDie:
		// Dropped first so a lookup in flight cannot bring it back.
		delete(i.cache, id)
	}

	if isNetwork {
		if fresh != nil {
			// The fresh snapshot already carries the current networks.
			return nil
		}
		return i.handleNetworkChange(ctx, cached, emit)
	}

	if !known {
		return nil
	}

	current := fresh
	if current == nil {
		current = cached
	}
	if current == nil {
		panic(fmt.Sprintf("inspector: no descriptor for container %s on %s", id, event.Action))
	}

	if fresh == nil && event.Action != containerizer.ActionDie {
		current = i.updateState(current, event.Action)
	}

	if eventType == EventDetected && announced {
		return nil
	}
	if !current.named() {
		return nil
	}
	return emit(current.event(eventType))
}

// updateState replaces the cached container with one reflecting the action.
func (i *Inspector) updateState(d *descriptor, action string) *descriptor {
	c := d.container
	healthy, suspended := c.Healthy, c.Suspended

	switch action {
	case containerizer.ActionPause:
		suspended = true
	case containerizer.ActionUnpause:
		suspended = false
	case containerizer.ActionHealthy:
		healthy = true
	case containerizer.ActionUnhealthy:
		healthy = false
	default:
		return d
	}

	updated := &descriptor{container: c.WithState(healthy, suspended), serviceName: d.serviceName, source: d.source}
	i.cache[c.ID] = updated
	return updated
}

func (i *Inspector) handleNetworkChange(ctx context.Context, cached *descriptor, emit func(Event) error) error {
	if !cached.named() {
		return nil
	}

	c, err := i.runtime.GetContainer(ctx, cached.container.ID)
	if err != nil {
		return err
	}
	if c == nil {
		// Removed; the die event takes care of it.
		return nil
	}

	updated := &descriptor{container: c, serviceName: cached.serviceName, source: cached.source}
	i.cache[c.ID] = updated

	if !networksChanged(cached.container.Networks, c.Networks) {
		logging.Debug(subsystem, "Networks of %s are unchanged", c.ShortID())
		return nil
	}
	return emit(updated.event(EventNetworksUpdated))
}

// networksChanged compares two network sets by (name, address) pairs.
func networksChanged(before, after []containerizer.Network) bool {
	return !mapset.NewThreadUnsafeSet(before...).SymmetricDifference(mapset.NewThreadUnsafeSet(after...)).IsEmpty()
}
