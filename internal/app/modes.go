package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"inspector/internal/consulconfig"
	"inspector/pkg/logging"
)

// sdNotify is replaced in tests.
var sdNotify = daemon.SdNotify

// runService runs the reconciler next to the metrics endpoint and the
// Consul token watcher.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): Triggers graceful shutdown
//   - SIGTERM: Triggers graceful shutdown (common in container environments)
//
// The reconciler returning, for any reason, stops the other goroutines.
func runService(ctx context.Context, cfg *Config, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer closeRuntime(services.Runtime)

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	services.Reconciler.OnInspectionCompleted(func() {
		notify(daemon.SdNotifyReady)
		logging.Info("Bootstrap", "Registry is in sync with the running containers")
	})

	g.Go(func() error {
		err := services.Reconciler.Run(gctx)
		notify(daemon.SdNotifyStopping)
		if err != nil {
			return err
		}
		cancel()
		return nil
	})

	if addr := cfg.Settings.Metrics.Address; addr != "" {
		server := newMetricsServer(addr, services.MetricsRegistry)
		g.Go(func() error {
			return serveMetrics(gctx, server)
		})
	}

	if watcher := newTokenWatcher(cfg, services); watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logging.Error("Bootstrap", err, "Inspector stopped")
		return err
	}
	logging.Info("Bootstrap", "Inspector stopped")
	return nil
}

// newTokenWatcher returns a watcher that hands token changes in the Consul
// agent configuration to the registry client, or nil when the token does
// not come from that configuration.
func newTokenWatcher(cfg *Config, services *Services) *consulconfig.TokenWatcher {
	settings := cfg.Settings
	if settings.Consul.ConfigPath == "" || settings.Consul.Token != settings.ConsulValues.Token() {
		return nil
	}

	return consulconfig.NewTokenWatcher(
		settings.Consul.ConfigPath,
		settings.Consul.Config,
		settings.Consul.Token,
		0,
		services.Registry.SetToken,
	)
}

func notify(state string) {
	sent, err := sdNotify(false, state)
	if err != nil {
		logging.Warn("Bootstrap", "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug("Bootstrap", "Notified systemd: %s", state)
	}
}
