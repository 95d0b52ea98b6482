package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspector/internal/config"
	"inspector/internal/consulconfig"
	"inspector/internal/containerizer"
	"inspector/internal/inspector"
	"inspector/internal/reconciler"
)

type idleRuntime struct {
	listErr error
	closed  atomic.Bool
}

func (r *idleRuntime) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *idleRuntime) ListContainers(context.Context) ([]*containerizer.Container, error) {
	return nil, r.listErr
}

func (r *idleRuntime) GetContainer(context.Context, string) (*containerizer.Container, error) {
	return nil, nil
}

func (r *idleRuntime) StreamEvents(context.Context, time.Time) (<-chan containerizer.Event, <-chan error) {
	return make(chan containerizer.Event), make(chan error)
}

type emptyRegistry struct{}

func (emptyRegistry) ListEntries(context.Context) ([]reconciler.RegistryEntry, error) {
	return nil, nil
}

func (emptyRegistry) Register(context.Context, reconciler.RegistryEntry) error { return nil }

func (emptyRegistry) Deregister(context.Context, string) error { return nil }

// recordNotify captures systemd notifications for the duration of a test.
func recordNotify(t *testing.T) func() []string {
	t.Helper()
	var (
		mu     sync.Mutex
		states []string
	)
	original := sdNotify
	sdNotify = func(_ bool, state string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, state)
		return true, nil
	}
	t.Cleanup(func() { sdNotify = original })

	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), states...)
	}
}

func testServices(runtime containerizer.ContainerRuntime) *Services {
	insp := inspector.New(runtime, nil, inspector.Config{})
	return &Services{
		Runtime:         runtime,
		Inspector:       insp,
		Reconciler:      reconciler.New(emptyRegistry{}, insp, reconciler.Config{}, nil),
		MetricsRegistry: prometheus.NewRegistry(),
	}
}

func TestRunService_StopsOnCancel(t *testing.T) {
	states := recordNotify(t)
	runtime := &idleRuntime{}
	services := testServices(runtime)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runService(ctx, &Config{}, services)
	}()

	require.Eventually(t, func() bool {
		return len(states()) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runService did not return")
	}
	assert.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyStopping}, states())
	assert.True(t, runtime.closed.Load(), "runtime client is released")
}

func TestRunService_ReturnsReconcilerError(t *testing.T) {
	states := recordNotify(t)
	runtime := &idleRuntime{listErr: errors.New("daemon unreachable")}
	services := testServices(runtime)

	err := runService(context.Background(), &Config{}, services)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon unreachable")
	assert.Equal(t, []string{daemon.SdNotifyStopping}, states())
	assert.True(t, runtime.closed.Load())
}

func TestNewTokenWatcher(t *testing.T) {
	services := &Services{}
	values := consulconfig.Values{consulconfig.KeyAgentToken: "agent"}

	tests := []struct {
		name     string
		settings config.Config
		want     bool
	}{
		{
			name: "token from agent configuration",
			settings: config.Config{
				Consul:       config.ConsulConfig{ConfigPath: "/consul/config", Token: "agent"},
				ConsulValues: values,
			},
			want: true,
		},
		{
			name: "token overridden",
			settings: config.Config{
				Consul:       config.ConsulConfig{ConfigPath: "/consul/config", Token: "explicit"},
				ConsulValues: values,
			},
			want: false,
		},
		{
			name: "no configuration path",
			settings: config.Config{
				Consul:       config.ConsulConfig{Token: "agent"},
				ConsulValues: values,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			watcher := newTokenWatcher(&Config{Settings: tt.settings}, services)
			assert.Equal(t, tt.want, watcher != nil)
		})
	}
}

func TestRuntimeHost(t *testing.T) {
	assert.Equal(t, "", runtimeHost(config.DockerConfig{Runtime: "podman", Socket: config.DefaultDockerSocket}))
	assert.Equal(t, "/run/user/1000/podman/podman.sock", runtimeHost(config.DockerConfig{Runtime: "podman", Socket: "/run/user/1000/podman/podman.sock"}))
	assert.Equal(t, config.DefaultDockerSocket, runtimeHost(config.DockerConfig{Runtime: "docker", Socket: config.DefaultDockerSocket}))
}

func TestInitializeServices(t *testing.T) {
	settings := config.Config{
		Docker: config.DockerConfig{Runtime: "docker", Socket: config.DefaultDockerSocket},
		Consul: config.ConsulConfig{Address: "http://127.0.0.1:8500"},
		ECS:    config.ECSConfig{CredentialsRelativeURI: "/v2/credentials/x", CredentialsLifetime: time.Minute},
	}

	services, err := InitializeServices(NewConfig(settings, true))
	require.NoError(t, err)
	assert.NotNil(t, services.Runtime)
	assert.NotNil(t, services.Registry)
	assert.NotNil(t, services.Inspector)
	assert.NotNil(t, services.Reconciler)

	families, err := services.MetricsRegistry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	settings.Docker.Runtime = "rkt"
	_, err = InitializeServices(NewConfig(settings, true))
	assert.Error(t, err)
}

func TestMetricsServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	reconciler.NewMetrics(registry)

	server := newMetricsServer("127.0.0.1:0", registry)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "consul_inspector_entries")

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveMetrics(ctx, server) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
