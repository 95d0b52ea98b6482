package reconciler

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"inspector/internal/containerizer"
	"inspector/pkg/logging"
)

const hostNetwork = "host"

// mintID returns an entry ID for name that no other container's entry uses:
// the name with underscores replaced by hyphens, suffixed with the smallest
// free "_<n>" (n >= 2) when taken.
func (r *Reconciler) mintID(name, containerID string) string {
	used := make(map[string]bool, len(r.entries))
	for owner, entry := range r.entries {
		if owner != containerID {
			used[entry.ID] = true
		}
	}

	candidate := strings.ReplaceAll(name, "_", "-")
	if !used[candidate] {
		return candidate
	}
	for n := 2; ; n++ {
		id := fmt.Sprintf("%s_%d", candidate, n)
		if !used[id] {
			return id
		}
	}
}

// selectAddress picks the single address of a container. Containers on the
// host network without an address of their own use the advertise address.
func selectAddress(c *containerizer.Container, advertise netip.Addr) (netip.Addr, error) {
	var (
		addresses []netip.Addr
		seen      = make(map[netip.Addr]bool)
		onHost    bool
	)
	for _, n := range c.Networks {
		if n.Name == hostNetwork {
			onHost = true
		}
		if !n.Address.IsValid() || seen[n.Address] {
			continue
		}
		seen[n.Address] = true
		addresses = append(addresses, n.Address)
	}

	switch len(addresses) {
	case 0:
		if onHost && advertise.IsValid() {
			return advertise, nil
		}
		return netip.Addr{}, ErrNoAddress
	case 1:
		return addresses[0], nil
	default:
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrAmbiguousAddress, addresses)
	}
}

// buildEntry builds the registry entry for a container.
func (r *Reconciler) buildEntry(id, name string, c *containerizer.Container) (RegistryEntry, error) {
	addr, err := selectAddress(c, r.advertise)
	if err != nil {
		return RegistryEntry{}, err
	}

	metadata := map[string]string{MetaContainerID: c.ID}
	if r.config.ManagedInstanceID != "" {
		metadata[MetaManagedInstanceID] = r.config.ManagedInstanceID
	}

	return RegistryEntry{
		ID:       id,
		Name:     name,
		Address:  addr,
		Tags:     parseTags(c.Labels[r.config.TagsLabel]),
		Metadata: metadata,
		Check:    r.healthCheck(c, addr),
	}, nil
}

func parseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// healthCheck builds the check from the health label, e.g.
// "http://:8080/health" or "tcp://:5432". A missing host is replaced with
// the entry address.
func (r *Reconciler) healthCheck(c *containerizer.Container, addr netip.Addr) *HealthCheck {
	raw := c.Labels[r.config.HealthLabel]
	if raw == "" {
		return nil
	}

	target, err := url.Parse(raw)
	if err != nil {
		logging.Warn(subsystem, "Ignoring malformed health check %q of container %s: %v", raw, c.ShortID(), err)
		return nil
	}

	host := target.Hostname()
	if host == "" {
		host = addr.String()
	}
	if port := target.Port(); port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	check := &HealthCheck{
		Interval: labelDuration(c, r.config.HealthIntervalLabel, DefaultHealthInterval),
		Timeout:  labelDuration(c, r.config.HealthTimeoutLabel, DefaultHealthTimeout),
	}

	switch strings.ToLower(target.Scheme) {
	case "http", "https":
		target.Host = host
		check.HTTP = target.String()
	case "tcp":
		check.TCP = host
	case "udp":
		check.UDP = host
	default:
		logging.Warn(subsystem, "Ignoring health check %q of container %s: unsupported scheme", raw, c.ShortID())
		return nil
	}
	return check
}

func labelDuration(c *containerizer.Container, label string, fallback time.Duration) time.Duration {
	raw := c.Labels[label]
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logging.Warn(subsystem, "Ignoring invalid duration %q in label %s of container %s", raw, label, c.ShortID())
		return fallback
	}
	return d
}
