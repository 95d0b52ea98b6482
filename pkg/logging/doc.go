// Package logging provides the structured logger used across the inspector.
//
// It is a thin layer over Go's slog package that tags every record with a
// subsystem name, so output from the container inspector, the reconciler and
// the external clients can be told apart and filtered.
//
// # Log Levels
//   - **Debug**: per-event detail (runtime events, registry calls)
//   - **Info**: lifecycle messages (bootstrap, registrations)
//   - **Warn**: skipped items (malformed task ARNs, ambiguous addresses)
//   - **Error**: failed operations
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Bootstrap", "Starting inspector %s", version)
//	logging.Debug("Inspector", "Received %s event for %s", action, id)
//	logging.Error("Consul", err, "Failed to deregister %s", id)
//
// # Subsystems
//
//   - **Bootstrap**: process wiring and shutdown
//   - **Config**: configuration loading
//   - **ConsulConfig**: Consul configuration parsing and token watching
//   - **Inspector**: container inspection state machine
//   - **Reconciler**: registry synchronisation
//   - **Docker**, **ECS**, **Consul**: external clients
//   - **Metrics**: the Prometheus endpoint
//
// Logging is safe for concurrent use; Init may be called again to swap the
// handler.
package logging
