// Package app provides application bootstrap and lifecycle management for
// the inspector.
//
// # Architecture Overview
//
// The app package wires the clients and the reconciliation engine together:
//
//  1. **Bootstrap (`bootstrap.go`)**: logging setup and Application lifecycle
//  2. **Configuration (`config.go`)**: application runtime configuration
//  3. **Services (`services.go`)**: creates the container runtime, ECS task
//     resolver and Consul clients and connects inspector and reconciler
//  4. **Modes (`modes.go`)**: runs the service until it is stopped
//  5. **Metrics (`metrics.go`)**: the Prometheus endpoint
//
// # Service Lifecycle
//
// Run starts the following in one errgroup:
//
//   - the reconciler, consuming the inspector's events
//   - the metrics server, when an address is configured
//   - the token watcher, when the Consul ACL token comes from the agent
//     configuration; a changed token is handed to the registry client
//
// Once the initial container scan has been reconciled, READY=1 is sent to
// systemd. When the reconciler returns, STOPPING=1 is sent and the other
// goroutines are stopped. SIGINT and SIGTERM stop the reconciler, which
// removes its registrations before returning.
//
// # Usage
//
//	application, err := app.NewApplication(app.NewConfig(settings, false))
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
package app
