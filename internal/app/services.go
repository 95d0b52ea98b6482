package app

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"inspector/internal/config"
	"inspector/internal/consul"
	"inspector/internal/containerizer"
	"inspector/internal/ecs"
	"inspector/internal/inspector"
	"inspector/internal/reconciler"
	"inspector/pkg/logging"
)

// Services holds the components wired together by the bootstrap.
type Services struct {
	// Runtime is the container runtime client.
	Runtime containerizer.ContainerRuntime

	// Registry is the Consul agent client.
	Registry *consul.Client

	// Inspector turns runtime events into lifecycle events.
	Inspector *inspector.Inspector

	// Reconciler drives the registry from the inspector's events.
	Reconciler *reconciler.Reconciler

	// MetricsRegistry holds every collector served on the metrics endpoint.
	MetricsRegistry *prometheus.Registry
}

// InitializeServices creates the clients and wires the inspector to the
// reconciler. No connections are made here; clients connect lazily.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := cfg.Settings

	runtime, err := containerizer.NewContainerRuntime(settings.Docker.Runtime, containerizer.Options{
		Host:           runtimeHost(settings.Docker),
		ExpectedLabels: settings.Docker.ExpectedLabels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create container runtime: %w", err)
	}

	registry, err := consul.NewClient(consul.Config{
		Address: settings.Consul.Address,
		Token:   settings.Consul.Token,
	})
	if err != nil {
		closeRuntime(runtime)
		return nil, err
	}

	var resolver inspector.TaskResolver
	if settings.ECS.CredentialsRelativeURI != "" {
		resolver = ecs.NewResolver(ecs.Config{
			RelativeURI:         settings.ECS.CredentialsRelativeURI,
			Endpoint:            settings.ECS.CredentialsEndpoint,
			CredentialsLifetime: settings.ECS.CredentialsLifetime,
		})
	} else {
		logging.Info("Bootstrap", "No container credentials configured, task names will not be resolved")
	}

	insp := inspector.New(runtime, resolver, inspector.Config{
		ServiceNameLabel: settings.Labels.ServiceName,
		TaskARNLabel:     settings.Labels.TaskARN,
	})

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rec := reconciler.New(registry, insp, reconciler.Config{
		AdvertiseAddress:    settings.Consul.AdvertiseAddress,
		ManagedInstanceID:   settings.ManagedInstance.ID,
		HealthLabel:         settings.Labels.Health,
		HealthIntervalLabel: settings.Labels.HealthInterval,
		HealthTimeoutLabel:  settings.Labels.HealthTimeout,
		TagsLabel:           settings.Labels.Tags,
	}, reconciler.NewMetrics(metricsRegistry))

	return &Services{
		Runtime:         runtime,
		Registry:        registry,
		Inspector:       insp,
		Reconciler:      rec,
		MetricsRegistry: metricsRegistry,
	}, nil
}

// closeRuntime releases the runtime client when it holds a connection.
func closeRuntime(runtime containerizer.ContainerRuntime) {
	if closer, ok := runtime.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logging.Warn("Bootstrap", "Failed to close container runtime client: %v", err)
		}
	}
}

// runtimeHost leaves the host empty for Podman when the Docker default
// socket is configured so that the Podman socket is used.
func runtimeHost(docker config.DockerConfig) string {
	if containerizer.RuntimeType(docker.Runtime) == containerizer.RuntimeTypePodman && docker.Socket == config.DefaultDockerSocket {
		return ""
	}
	return docker.Socket
}
