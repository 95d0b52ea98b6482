package config

import (
	"time"

	"inspector/internal/consulconfig"
)

// Config is the effective configuration of the inspector.
type Config struct {
	Log             LogConfig             `mapstructure:"log" yaml:"log"`
	Docker          DockerConfig          `mapstructure:"docker" yaml:"docker"`
	Labels          LabelConfig           `mapstructure:"labels" yaml:"labels"`
	Consul          ConsulConfig          `mapstructure:"consul" yaml:"consul"`
	ECS             ECSConfig             `mapstructure:"ecs" yaml:"ecs"`
	ManagedInstance ManagedInstanceConfig `mapstructure:"managed_instance" yaml:"managed_instance"`
	Metrics         MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`

	// ConsulValues is the parsed Consul agent configuration.
	ConsulValues consulconfig.Values `mapstructure:"-" yaml:"-"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Debug  bool   `mapstructure:"debug" yaml:"debug"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// DockerConfig selects the container runtime.
type DockerConfig struct {
	Runtime        string   `mapstructure:"runtime" yaml:"runtime"` // docker or podman
	Socket         string   `mapstructure:"socket" yaml:"socket"`
	ExpectedLabels []string `mapstructure:"expected_labels" yaml:"expected_labels"`
}

// LabelConfig names the container labels the inspector reads.
type LabelConfig struct {
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
	TaskARN        string `mapstructure:"task_arn" yaml:"task_arn"`
	Health         string `mapstructure:"health" yaml:"health"`
	HealthInterval string `mapstructure:"health_interval" yaml:"health_interval"`
	HealthTimeout  string `mapstructure:"health_timeout" yaml:"health_timeout"`
	Tags           string `mapstructure:"tags" yaml:"tags"`
}

// ConsulConfig locates the Consul agent.
type ConsulConfig struct {
	// ConfigPath is the agent configuration file or directory.
	ConfigPath string `mapstructure:"config_path" yaml:"config_path"`

	// Config is inline agent configuration, plain or base64 encoded.
	Config string `mapstructure:"config" yaml:"config"`

	Address          string `mapstructure:"address" yaml:"address"`
	Token            string `mapstructure:"token" yaml:"token"`
	AdvertiseAddress string `mapstructure:"advertise_address" yaml:"advertise_address"`
}

// ECSConfig configures task name resolution.
type ECSConfig struct {
	CredentialsRelativeURI string        `mapstructure:"credentials_relative_uri" yaml:"credentials_relative_uri"`
	CredentialsEndpoint    string        `mapstructure:"credentials_endpoint" yaml:"credentials_endpoint"`
	CredentialsLifetime    time.Duration `mapstructure:"credentials_lifetime" yaml:"credentials_lifetime"`
}

// ManagedInstanceConfig points at the ECS Anywhere registration file.
type ManagedInstanceConfig struct {
	Required bool   `mapstructure:"required" yaml:"required"`
	FilePath string `mapstructure:"file_path" yaml:"file_path"`

	// ID is read from FilePath.
	ID string `mapstructure:"id" yaml:"id"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}
