package reconciler

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"

	"go.uber.org/multierr"

	"inspector/internal/containerizer"
	"inspector/internal/inspector"
	"inspector/pkg/logging"
)

const subsystem = "Reconciler"

// Deregistration reasons reported in metrics and logs.
const (
	reasonDuplicate    = "duplicate"
	reasonStale        = "stale"
	reasonDisqualified = "disqualified"
	reasonUnbuildable  = "unbuildable"
	reasonRenamed      = "renamed"
	reasonShutdown     = "shutdown"
)

// Reconciler keeps the registry in line with the inspector's events. It
// owns one registry entry per named container and removes all of them when
// it stops.
type Reconciler struct {
	registry RegistryClient
	source   EventSource
	config   Config
	metrics  *Metrics

	advertise netip.Addr

	// entries is keyed by container ID and only accessed from Run.
	entries map[string]RegistryEntry

	// observed collects container IDs seen before InspectionCompleted.
	observed map[string]bool

	onInspectionCompleted func()
}

// New creates a reconciler. metrics may be nil.
func New(registry RegistryClient, source EventSource, config Config, metrics *Metrics) *Reconciler {
	config = config.withDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	r := &Reconciler{
		registry: registry,
		source:   source,
		config:   config,
		metrics:  metrics,
		entries:  make(map[string]RegistryEntry),
	}

	if config.AdvertiseAddress != "" {
		addr, err := netip.ParseAddr(config.AdvertiseAddress)
		if err != nil {
			logging.Warn(subsystem, "Ignoring invalid advertise address %q", config.AdvertiseAddress)
		} else {
			r.advertise = addr
		}
	}
	return r
}

// OnInspectionCompleted registers fn to be called once the registry
// reflects the initial container scan.
func (r *Reconciler) OnInspectionCompleted(fn func()) {
	r.onInspectionCompleted = fn
}

// Run loads the current registry state and then reconciles events until
// ctx is cancelled or the event source fails. Every entry still owned on
// return is deregistered first.
func (r *Reconciler) Run(ctx context.Context) (err error) {
	defer func() {
		// Cleanup must run even though ctx is already cancelled.
		err = multierr.Append(err, r.cleanup(context.WithoutCancel(ctx)))
	}()

	if err := r.load(ctx); err != nil {
		return err
	}

	r.observed = make(map[string]bool)
	for event, err := range r.source.Inspect(ctx) {
		if err != nil {
			return fmt.Errorf("container inspection failed: %w", err)
		}
		if err := r.handle(ctx, event); err != nil {
			return err
		}
	}

	logging.Info(subsystem, "Event stream ended")
	return nil
}

// load adopts the entries of a previous run. Entries without a container
// back-reference are not ours; a second entry for the same container is
// removed.
func (r *Reconciler) load(ctx context.Context) error {
	entries, err := r.registry.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list registry entries: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	for _, entry := range entries {
		containerID := entry.ContainerID()
		if containerID == "" {
			logging.Debug(subsystem, "Leaving entry %s alone, it has no container reference", entry.ID)
			continue
		}

		if owner, exists := r.entries[containerID]; exists {
			logging.Warn(subsystem, "Entries %s and %s both reference container %s", owner.ID, entry.ID, containerizer.ShortID(containerID))
			if err := r.deregister(ctx, entry.ID, reasonDuplicate); err != nil {
				return err
			}
			continue
		}

		r.entries[containerID] = entry
	}

	r.metrics.setEntries(len(r.entries))
	logging.Info(subsystem, "Adopted %d registry entries", len(r.entries))
	return nil
}

func (r *Reconciler) handle(ctx context.Context, event inspector.Event) error {
	r.metrics.recordEvent(event.Type)

	if event.Type == inspector.EventInspectionCompleted {
		return r.completeInspection(ctx)
	}
	if event.Descriptor == nil {
		return nil
	}

	containerID := event.Descriptor.ContainerID
	if r.observed != nil {
		r.observed[containerID] = true
	}

	cached, hasCached := r.entries[containerID]

	if disqualified(event) {
		if hasCached {
			logging.Info(subsystem, "Removing %s of container %s after %s", cached.ID, containerizer.ShortID(containerID), event.Type)
			return r.drop(ctx, containerID, reasonDisqualified)
		}
		return nil
	}

	id := cached.ID
	if !hasCached || cached.Name != event.ServiceName {
		id = r.mintID(event.ServiceName, containerID)
	}

	entry, err := r.buildEntry(id, event.ServiceName, event.Descriptor.Container)
	if err != nil {
		logging.Warn(subsystem, "Cannot register container %s as %s: %v", containerizer.ShortID(containerID), event.ServiceName, err)
		if hasCached {
			return r.drop(ctx, containerID, reasonUnbuildable)
		}
		return nil
	}

	if hasCached && cached.ID != entry.ID {
		if err := r.drop(ctx, containerID, reasonRenamed); err != nil {
			return err
		}
	}

	if err := r.registry.Register(ctx, entry); err != nil {
		r.metrics.recordFailure("register")
		return fmt.Errorf("failed to register %s: %w", entry.ID, err)
	}
	r.entries[containerID] = entry
	r.metrics.recordRegistration()
	r.metrics.setEntries(len(r.entries))

	logging.Info(subsystem, "Registered %s (%s) at %s for container %s", entry.ID, entry.Name, entry.Address, containerizer.ShortID(containerID))
	return nil
}

// completeInspection removes entries of containers that were not seen
// during the initial scan.
func (r *Reconciler) completeInspection(ctx context.Context) error {
	observed := r.observed
	r.observed = nil

	for _, containerID := range r.containerIDs() {
		if observed[containerID] {
			continue
		}
		logging.Info(subsystem, "Removing stale entry %s of container %s", r.entries[containerID].ID, containerizer.ShortID(containerID))
		if err := r.drop(ctx, containerID, reasonStale); err != nil {
			return err
		}
	}

	logging.Info(subsystem, "Initial reconciliation completed with %d entries", len(r.entries))
	if r.onInspectionCompleted != nil {
		r.onInspectionCompleted()
	}
	return nil
}

func disqualified(event inspector.Event) bool {
	switch event.Type {
	case inspector.EventDisposed, inspector.EventPaused, inspector.EventUnhealthy:
		return true
	}
	c := event.Descriptor.Container
	return c == nil || c.Suspended || !c.Healthy
}

// drop deregisters the entry of a container and forgets it.
func (r *Reconciler) drop(ctx context.Context, containerID, reason string) error {
	entry := r.entries[containerID]
	if err := r.deregister(ctx, entry.ID, reason); err != nil {
		return err
	}
	delete(r.entries, containerID)
	r.metrics.setEntries(len(r.entries))
	return nil
}

func (r *Reconciler) deregister(ctx context.Context, id, reason string) error {
	err := r.registry.Deregister(ctx, id)
	if errors.Is(err, ErrEntryNotFound) {
		logging.Debug(subsystem, "Entry %s was already gone", id)
		err = nil
	}
	if err != nil {
		r.metrics.recordFailure("deregister")
		return fmt.Errorf("failed to deregister %s: %w", id, err)
	}

	r.metrics.recordDeregistration(reason)
	logging.Debug(subsystem, "Deregistered %s (%s)", id, reason)
	return nil
}

// cleanup deregisters every owned entry.
func (r *Reconciler) cleanup(ctx context.Context) error {
	if len(r.entries) == 0 {
		return nil
	}
	logging.Info(subsystem, "Deregistering %d entries", len(r.entries))

	var errs error
	for _, containerID := range r.containerIDs() {
		errs = multierr.Append(errs, r.drop(ctx, containerID, reasonShutdown))
	}
	return errs
}

func (r *Reconciler) containerIDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
