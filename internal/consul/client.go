// Package consul implements the reconciler's registry client on top of the
// local Consul agent API.
package consul

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"sort"
	"sync/atomic"

	"github.com/hashicorp/consul/api"

	"inspector/internal/reconciler"
	"inspector/pkg/logging"
)

const subsystem = "Consul"

// Config holds the agent connection settings.
type Config struct {
	// Address is either host:port, a URL or unix:///path/to/socket.
	Address string

	// Token is the ACL token sent with every request.
	Token string
}

// Client registers services with the local Consul agent.
type Client struct {
	address string
	client  atomic.Pointer[api.Client]
}

// NewClient creates a client for the agent at cfg.Address.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{address: cfg.Address}
	if err := c.connect(cfg.Token); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(token string) error {
	apiConfig := api.DefaultConfig()
	if c.address != "" {
		apiConfig.Address = c.address
	}
	apiConfig.Token = token

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return fmt.Errorf("failed to create consul client for %s: %w", c.address, err)
	}
	c.client.Store(client)
	return nil
}

// SetToken replaces the ACL token used for subsequent requests.
func (c *Client) SetToken(token string) {
	if err := c.connect(token); err != nil {
		logging.Error(subsystem, err, "Keeping previous token")
		return
	}
	logging.Info(subsystem, "ACL token updated")
}

// ListEntries returns the services registered with the agent.
func (c *Client) ListEntries(ctx context.Context) ([]reconciler.RegistryEntry, error) {
	q := &api.QueryOptions{}
	services, err := c.client.Load().Agent().ServicesWithFilterOpts("", q.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list agent services: %w", err)
	}

	entries := make([]reconciler.RegistryEntry, 0, len(services))
	for _, service := range services {
		entries = append(entries, fromAgentService(service))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	logging.Debug(subsystem, "Agent has %d services", len(entries))
	return entries, nil
}

// Register creates or replaces the service registration of entry.
func (c *Client) Register(ctx context.Context, entry reconciler.RegistryEntry) error {
	opts := api.ServiceRegisterOpts{}.WithContext(ctx)
	if err := c.client.Load().Agent().ServiceRegisterOpts(toRegistration(entry), opts); err != nil {
		return fmt.Errorf("failed to register service %s: %w", entry.ID, err)
	}
	return nil
}

// Deregister removes the service registration with the given id. A missing
// service yields reconciler.ErrEntryNotFound.
func (c *Client) Deregister(ctx context.Context, id string) error {
	q := &api.QueryOptions{}
	err := c.client.Load().Agent().ServiceDeregisterOpts(id, q.WithContext(ctx))
	if err == nil {
		return nil
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return fmt.Errorf("service %s: %w", id, reconciler.ErrEntryNotFound)
	}
	return fmt.Errorf("failed to deregister service %s: %w", id, err)
}

func toRegistration(entry reconciler.RegistryEntry) *api.AgentServiceRegistration {
	reg := &api.AgentServiceRegistration{
		ID:   entry.ID,
		Name: entry.Name,
		Tags: entry.Tags,
		Meta: entry.Metadata,
	}
	if entry.Address.IsValid() {
		reg.Address = entry.Address.String()
	}

	if check := entry.Check; check != nil {
		reg.Check = &api.AgentServiceCheck{
			HTTP:     check.HTTP,
			TCP:      check.TCP,
			UDP:      check.UDP,
			Interval: check.Interval.String(),
			Timeout:  check.Timeout.String(),
		}
	}
	return reg
}

func fromAgentService(service *api.AgentService) reconciler.RegistryEntry {
	entry := reconciler.RegistryEntry{
		ID:       service.ID,
		Name:     service.Service,
		Tags:     service.Tags,
		Metadata: service.Meta,
	}
	if addr, err := netip.ParseAddr(service.Address); err == nil {
		entry.Address = addr
	}
	return entry
}
