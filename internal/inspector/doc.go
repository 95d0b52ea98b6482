// Package inspector turns the container runtime's state and event stream
// into service lifecycle events.
//
// # Event sequence
//
// Inspect returns a single-use iterator. It first lists the running
// containers and emits EventDetected for every container that has a
// service name, followed by exactly one EventInspectionCompleted. Afterwards
// it follows the runtime's event stream, starting at the time the listing
// was taken, and emits:
//
//	start               EventDetected
//	pause / unpause     EventPaused / EventUnpaused
//	health_status       EventHealthy / EventUnhealthy
//	die                 EventDisposed
//	connect/disconnect  EventNetworksUpdated, when the addresses changed
//
// Only containers with a service name produce events, except for
// EventDisposed which is emitted for any container the inspector has not
// seen before so that a consumer can clean up after a restart.
//
// # Service names
//
// A container is named by its service name label. Without one, the ECS
// task ARN label is resolved through a TaskResolver and the task group,
// with the "service:" prefix removed, becomes the name. Containers whose
// task cannot be resolved stay unnamed.
//
// # Errors
//
// A failing runtime or resolver ends the sequence with the error as its
// last element. Cancelling the context ends it without an error.
package inspector
