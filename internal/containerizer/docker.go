package containerizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"inspector/pkg/logging"
)

const dockerSubsystem = "Docker"

const (
	stateRunning = "running"
	statePaused  = "paused"

	healthStatusPrefix = "health_status"
	execActionPrefix   = "exec_"
)

// Options configures a Docker API based runtime.
type Options struct {
	// Host is the daemon address. A bare path is treated as a unix socket.
	// The DOCKER_HOST environment is used when empty.
	Host string

	// ExpectedLabels restricts the runtime to containers carrying every
	// listed label, given as "name" or "name=value".
	ExpectedLabels []string
}

// dockerAPI is the subset of the Docker client used by DockerRuntime.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	Close() error
}

// DockerRuntime implements ContainerRuntime using the Docker Engine API
type DockerRuntime struct {
	api            dockerAPI
	expectedLabels []expectedLabel
}

type expectedLabel struct {
	name  string
	value string
	exact bool
}

func (l expectedLabel) String() string {
	if l.exact {
		return l.name + "=" + l.value
	}
	return l.name
}

func parseExpectedLabels(labels []string) []expectedLabel {
	var parsed []expectedLabel
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		name, value, exact := strings.Cut(label, "=")
		parsed = append(parsed, expectedLabel{name: name, value: value, exact: exact})
	}
	return parsed
}

// NewDockerRuntime creates a new Docker runtime instance
func NewDockerRuntime(opts Options) (*DockerRuntime, error) {
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(dockerHost(opts.Host)))
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return newDockerRuntime(cli, opts.ExpectedLabels), nil
}

func newDockerRuntime(api dockerAPI, expectedLabels []string) *DockerRuntime {
	return &DockerRuntime{
		api:            api,
		expectedLabels: parseExpectedLabels(expectedLabels),
	}
}

func dockerHost(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "unix://" + host
}

// Close releases the underlying client.
func (d *DockerRuntime) Close() error {
	return d.api.Close()
}

func (d *DockerRuntime) labelFilters() filters.Args {
	args := filters.NewArgs()
	for _, label := range d.expectedLabels {
		args.Add("label", label.String())
	}
	return args
}

// ListContainers returns running and paused containers carrying the
// expected labels.
func (d *DockerRuntime) ListContainers(ctx context.Context) ([]*Container, error) {
	summaries, err := d.api.ContainerList(ctx, container.ListOptions{Filters: d.labelFilters()})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	containers := make([]*Container, 0, len(summaries))
	for _, summary := range summaries {
		if summary.State != stateRunning && summary.State != statePaused {
			continue
		}
		containers = append(containers, fromSummary(summary))
	}

	logging.Debug(dockerSubsystem, "Listed %d containers", len(containers))
	return containers, nil
}

// GetContainer inspects a single container. Containers that are gone, stopped
// or missing an expected label yield nil.
func (d *DockerRuntime) GetContainer(ctx context.Context, containerID string) (*Container, error) {
	shortID := ShortID(containerID)

	resp, err := d.api.ContainerInspect(ctx, containerID)
	if cerrdefs.IsNotFound(err) {
		logging.Debug(dockerSubsystem, "Container %s not found", shortID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container %s: %w", shortID, err)
	}

	if !live(resp) {
		logging.Debug(dockerSubsystem, "Container %s is not running", shortID)
		return nil, nil
	}

	var labels map[string]string
	if resp.Config != nil {
		labels = resp.Config.Labels
	}
	for _, expected := range d.expectedLabels {
		value, ok := labels[expected.name]
		if !ok || (expected.exact && value != expected.value) {
			logging.Debug(dockerSubsystem, "Container %s does not carry expected label %s", shortID, expected)
			return nil, nil
		}
	}

	return fromInspect(resp), nil
}

// StreamEvents streams container and network events since the given time.
// Exec events are dropped and health status actions are reduced to
// "healthy" and "unhealthy".
func (d *DockerRuntime) StreamEvents(ctx context.Context, since time.Time) (<-chan Event, <-chan error) {
	out := make(chan Event)
	errs := make(chan error, 1)

	eventFilters := filters.NewArgs()
	eventFilters.Add("type", string(events.ContainerEventType))
	eventFilters.Add("type", string(events.NetworkEventType))

	messages, streamErrs := d.api.Events(ctx, events.ListOptions{
		Since:   strconv.FormatInt(since.Unix(), 10),
		Filters: eventFilters,
	})

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return

			case err := <-streamErrs:
				if err == nil || errors.Is(err, context.Canceled) {
					return
				}
				if errors.Is(err, io.EOF) {
					err = fmt.Errorf("docker event stream closed: %w", err)
				}
				errs <- err
				return

			case msg := <-messages:
				event, ok := convertEvent(msg)
				if !ok {
					continue
				}
				logging.Debug(dockerSubsystem, "Received %s %s event for %s", event.Type, event.Action, ShortID(event.ContainerID))

				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errs
}

func convertEvent(msg events.Message) (Event, bool) {
	if msg.Type != events.ContainerEventType && msg.Type != events.NetworkEventType {
		return Event{}, false
	}

	action := string(msg.Action)
	if strings.HasPrefix(action, execActionPrefix) {
		return Event{}, false
	}
	if strings.HasPrefix(action, healthStatusPrefix) {
		_, status, _ := strings.Cut(action, ":")
		action = strings.TrimSpace(status)
	}

	containerID := msg.Actor.ID
	if msg.Type == events.NetworkEventType {
		if id := msg.Actor.Attributes["container"]; id != "" {
			containerID = id
		}
	}

	return Event{
		Type:        EventType(msg.Type),
		Action:      action,
		ContainerID: containerID,
	}, true
}

func fromSummary(summary container.Summary) *Container {
	var endpoints map[string]*network.EndpointSettings
	if summary.NetworkSettings != nil {
		endpoints = summary.NetworkSettings.Networks
	}

	return &Container{
		ID:        summary.ID,
		Networks:  convertNetworks(summary.ID, endpoints),
		Labels:    copyLabels(summary.Labels),
		Healthy:   healthyFromStatus(summary.Status),
		Suspended: summary.State == statePaused,
	}
}

// live reports whether the container is running or paused. Stopped containers
// linger until removed and still answer inspections.
func live(resp container.InspectResponse) bool {
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return false
	}
	return resp.State.Running || resp.State.Paused
}

func fromInspect(resp container.InspectResponse) *Container {
	c := &Container{Healthy: true}
	if resp.ContainerJSONBase != nil {
		c.ID = resp.ID
		if state := resp.State; state != nil {
			c.Suspended = state.Paused
			if state.Health != nil {
				c.Healthy = string(state.Health.Status) == string(container.Healthy)
			}
		}
	}
	if resp.Config != nil {
		c.Labels = copyLabels(resp.Config.Labels)
	} else {
		c.Labels = map[string]string{}
	}
	if resp.NetworkSettings != nil {
		c.Networks = convertNetworks(c.ID, resp.NetworkSettings.Networks)
	}
	return c
}

// healthyFromStatus reads the health from a status line such as
// "Up 3 minutes (healthy)". Containers without a health check are healthy.
func healthyFromStatus(status string) bool {
	open := strings.LastIndex(status, "(")
	if open < 0 || !strings.HasSuffix(status, ")") {
		return true
	}
	health := status[open+1 : len(status)-1]
	switch {
	case health == string(container.Healthy):
		return true
	case health == string(container.Unhealthy), strings.HasPrefix(health, "health:"):
		return false
	default:
		return true
	}
}

func convertNetworks(containerID string, endpoints map[string]*network.EndpointSettings) []Network {
	networks := make([]Network, 0, len(endpoints))
	for name, endpoint := range endpoints {
		n := Network{Name: name}
		if endpoint != nil && endpoint.IPAddress != "" {
			addr, err := netip.ParseAddr(endpoint.IPAddress)
			if err != nil {
				logging.Warn(dockerSubsystem, "Container %s reports invalid address %q on network %s", ShortID(containerID), endpoint.IPAddress, name)
			} else {
				n.Address = addr
			}
		}
		networks = append(networks, n)
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].Name < networks[j].Name })
	return networks
}

func copyLabels(labels map[string]string) map[string]string {
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	return copied
}
