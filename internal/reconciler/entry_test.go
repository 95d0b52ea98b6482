package reconciler

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspector/internal/containerizer"
)

func TestSelectAddress(t *testing.T) {
	advertise := netip.MustParseAddr("192.168.1.10")
	hostNet := containerizer.Network{Name: hostNetwork}

	tests := []struct {
		name      string
		networks  []containerizer.Network
		advertise netip.Addr
		want      string
		wantErr   error
	}{
		{
			name:     "single address",
			networks: []containerizer.Network{{Name: "a", Address: netip.MustParseAddr("10.0.0.1")}},
			want:     "10.0.0.1",
		},
		{
			name: "same address on two networks",
			networks: []containerizer.Network{
				{Name: "a", Address: netip.MustParseAddr("10.0.0.1")},
				{Name: "b", Address: netip.MustParseAddr("10.0.0.1")},
			},
			want: "10.0.0.1",
		},
		{
			name: "ambiguous",
			networks: []containerizer.Network{
				{Name: "a", Address: netip.MustParseAddr("10.0.0.1")},
				{Name: "b", Address: netip.MustParseAddr("10.0.0.2")},
			},
			wantErr: ErrAmbiguousAddress,
		},
		{
			name:      "host network uses advertise address",
			networks:  []containerizer.Network{hostNet},
			advertise: advertise,
			want:      "192.168.1.10",
		},
		{
			name:     "host network without advertise address",
			networks: []containerizer.Network{hostNet},
			wantErr:  ErrNoAddress,
		},
		{
			name:      "no address off the host network",
			networks:  []containerizer.Network{{Name: "none"}},
			advertise: advertise,
			wantErr:   ErrNoAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectAddress(&containerizer.Container{ID: "c1", Networks: tt.networks}, tt.advertise)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNew_AdvertiseAddress(t *testing.T) {
	r := New(newFakeRegistry(), &fakeSource{}, Config{AdvertiseAddress: "10.1.1.1"}, nil)
	assert.Equal(t, netip.MustParseAddr("10.1.1.1"), r.advertise)

	r = New(newFakeRegistry(), &fakeSource{}, Config{AdvertiseAddress: "not-an-ip"}, nil)
	assert.False(t, r.advertise.IsValid())
}

func TestHealthCheck(t *testing.T) {
	r := New(newFakeRegistry(), &fakeSource{}, Config{}, nil)
	addr := netip.MustParseAddr("10.0.0.7")

	tests := []struct {
		name   string
		labels map[string]string
		want   *HealthCheck
	}{
		{
			name:   "no label",
			labels: map[string]string{},
			want:   nil,
		},
		{
			name:   "http without host",
			labels: map[string]string{DefaultHealthLabel: "http://:8080/health"},
			want:   &HealthCheck{HTTP: "http://10.0.0.7:8080/health", Interval: DefaultHealthInterval, Timeout: DefaultHealthTimeout},
		},
		{
			name:   "https with host",
			labels: map[string]string{DefaultHealthLabel: "https://localhost:8443/ready"},
			want:   &HealthCheck{HTTP: "https://localhost:8443/ready", Interval: DefaultHealthInterval, Timeout: DefaultHealthTimeout},
		},
		{
			name: "tcp with durations",
			labels: map[string]string{
				DefaultHealthLabel:         "tcp://:5432",
				DefaultHealthIntervalLabel: "30s",
				DefaultHealthTimeoutLabel:  "2s",
			},
			want: &HealthCheck{TCP: "10.0.0.7:5432", Interval: 30 * time.Second, Timeout: 2 * time.Second},
		},
		{
			name: "invalid durations fall back",
			labels: map[string]string{
				DefaultHealthLabel:         "tcp://:5432",
				DefaultHealthIntervalLabel: "often",
				DefaultHealthTimeoutLabel:  "-1s",
			},
			want: &HealthCheck{TCP: "10.0.0.7:5432", Interval: DefaultHealthInterval, Timeout: DefaultHealthTimeout},
		},
		{
			name:   "udp without host",
			labels: map[string]string{DefaultHealthLabel: "udp://:53"},
			want:   &HealthCheck{UDP: "10.0.0.7:53", Interval: DefaultHealthInterval, Timeout: DefaultHealthTimeout},
		},
		{
			name:   "udp with host",
			labels: map[string]string{DefaultHealthLabel: "UDP://127.0.0.1:5353"},
			want:   &HealthCheck{UDP: "127.0.0.1:5353", Interval: DefaultHealthInterval, Timeout: DefaultHealthTimeout},
		},
		{
			name:   "unsupported scheme",
			labels: map[string]string{DefaultHealthLabel: "grpc://:9000"},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &containerizer.Container{ID: "c1", Labels: tt.labels}
			assert.Equal(t, tt.want, r.healthCheck(c, addr))
		})
	}
}

func TestBuildEntry(t *testing.T) {
	r := New(newFakeRegistry(), &fakeSource{}, Config{ManagedInstanceID: "mi-0abc"}, nil)
	c := container("c1", "10.0.0.1")
	c.Labels[DefaultTagsLabel] = "blue, primary,,"

	entry, err := r.buildEntry("web", "web", c)
	require.NoError(t, err)

	assert.Equal(t, "web", entry.ID)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), entry.Address)
	assert.Equal(t, []string{"blue", "primary"}, entry.Tags)
	assert.Equal(t, map[string]string{MetaContainerID: "c1", MetaManagedInstanceID: "mi-0abc"}, entry.Metadata)
	assert.Nil(t, entry.Check)
	assert.Equal(t, "c1", entry.ContainerID())

	_, err = r.buildEntry("web", "web", container("c2"))
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestMintID(t *testing.T) {
	r := New(newFakeRegistry(), &fakeSource{}, Config{}, nil)
	r.entries = map[string]RegistryEntry{
		"c1": owned("my-svc", "my_svc", "c1"),
		"c2": owned("my-svc_2", "my_svc", "c2"),
	}

	assert.Equal(t, "my-svc_3", r.mintID("my_svc", "c3"))
	assert.Equal(t, "my-svc", r.mintID("my_svc", "c1"), "own entry does not collide")
	assert.Equal(t, "other", r.mintID("other", "c3"))
}
