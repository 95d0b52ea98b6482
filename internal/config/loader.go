package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"inspector/internal/consulconfig"
	"inspector/pkg/logging"
)

const subsystem = "Config"

// NewViper returns a viper instance with defaults and environment bindings
// in place. Callers bind their flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		bind := append([]string{key, envName(key)}, names...)
		// BindEnv only fails without a key.
		_ = v.BindEnv(bind...)
	}
	return v
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Load builds the effective configuration. Sources in increasing order of
// precedence: defaults, Consul agent configuration, the YAML file named by
// KeyConfigFile, environment and flags.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		if err := mergeFile(v, path); err != nil {
			return Config{}, err
		}
	}

	values, err := consulconfig.Load(v.GetString(KeyConsulConfigPath), v.GetString(KeyConsulConfig))
	if err != nil {
		return Config{}, NewConfigurationError(v.GetString(KeyConsulConfigPath), "consul", "parse", err.Error())
	}
	applyConsulValues(v, values)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.ConsulValues = values
	cfg.Docker.ExpectedLabels = splitList(cfg.Docker.ExpectedLabels)

	if !cfg.ManagedInstance.Required {
		cfg.ManagedInstance.Required = managedInstanceRequired()
	}
	id, err := loadManagedInstanceID(cfg.ManagedInstance)
	if err != nil {
		return Config{}, err
	}
	cfg.ManagedInstance.ID = id

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile merges a YAML configuration file into v.
func mergeFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewConfigurationError(path, "file", "io", err.Error())
	}

	var settings map[string]any
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return NewConfigurationError(path, "file", "parse", err.Error())
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to merge %s: %w", path, err)
	}

	logging.Info(subsystem, "Loaded configuration from %s", path)
	return nil
}

// applyConsulValues makes the agent configuration the baseline for the
// Consul connection settings.
func applyConsulValues(v *viper.Viper, values consulconfig.Values) {
	if socket := values.SocketPath(); socket != "" {
		v.SetDefault(KeyConsulAddress, "unix://"+socket)
	}
	if token := values.Token(); token != "" {
		v.SetDefault(KeyConsulToken, token)
	}
	if addr := values.AdvertiseAddress(); addr != "" {
		v.SetDefault(KeyConsulAdvertiseAddress, addr)
	}
}

func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func managedInstanceRequired() bool {
	for _, name := range managedInstanceRequiredEnv {
		if _, ok := os.LookupEnv(name); ok {
			return true
		}
	}
	return false
}

type managedInstanceRegistration struct {
	ManagedInstanceID string `json:"ManagedInstanceID"`
	Region            string `json:"Region"`
}

// loadManagedInstanceID reads the instance ID from the registration file.
// A missing file is only an error when registration is required.
func loadManagedInstanceID(cfg ManagedInstanceConfig) (string, error) {
	if cfg.FilePath == "" {
		return "", nil
	}

	data, err := os.ReadFile(cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		if cfg.Required {
			return "", NewConfigurationErrorWithDetails(cfg.FilePath, "managed_instance", "io",
				"managed instance registration is required but the registration file does not exist",
				fmt.Sprintf("set by %s", strings.Join(managedInstanceRequiredEnv, " or ")),
				[]string{"Register the instance with ECS Anywhere", "Point " + envName(KeyManagedInstanceFilePath) + " at the registration file"})
		}
		return "", nil
	}
	if err != nil {
		return "", NewConfigurationError(cfg.FilePath, "managed_instance", "io", err.Error())
	}

	var registration managedInstanceRegistration
	if err := json.Unmarshal(data, &registration); err != nil {
		return "", NewConfigurationError(cfg.FilePath, "managed_instance", "parse", err.Error())
	}

	logging.Info(subsystem, "Running on managed instance %s", registration.ManagedInstanceID)
	return registration.ManagedInstanceID, nil
}
