// Package reconciler keeps a Consul agent's service registry in line with
// the containers running next to it.
//
// # Overview
//
// The Reconciler consumes the semantic lifecycle events produced by the
// inspector package and turns them into register and deregister calls on a
// RegistryClient. It owns exactly one RegistryEntry per named container and
// links every entry back to its container through the MetaContainerID
// metadata key.
//
// # Lifecycle
//
//   - Startup: the registry is listed. Entries without a container
//     back-reference are left alone. A second entry claiming an already
//     adopted container is deregistered.
//   - Bootstrap: every container seen before InspectionCompleted keeps its
//     entry; entries of containers not seen are deregistered as stale.
//   - Live events: Disposed, Paused and Unhealthy events, as well as
//     suspended or unhealthy containers, remove the entry. Every other
//     event registers or updates it.
//   - Shutdown: every entry still owned is deregistered before Run returns,
//     even when the context has been cancelled.
//
// # Entry IDs
//
// An entry ID is derived from the service name with underscores replaced
// by hyphens. When the ID is taken by another container, the smallest free
// "_<n>" suffix starting at 2 is appended. The ID is kept for as long as
// the service name of the container does not change.
//
// # Addresses
//
// A container must have exactly one distinct IP address across its
// networks. Containers on the host network without an address of their own
// use the configured advertise address. Containers with no or several
// addresses are not registered.
//
// # Usage
//
//	r := reconciler.New(registry, inspector, reconciler.Config{
//	    AdvertiseAddress: "10.0.0.5",
//	}, reconciler.NewMetrics(prometheus.DefaultRegisterer))
//	r.OnInspectionCompleted(func() { log.Print("ready") })
//	if err := r.Run(ctx); err != nil {
//	    return fmt.Errorf("reconciliation failed: %w", err)
//	}
package reconciler
