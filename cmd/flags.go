package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"inspector/internal/config"
)

// Flag names shared by the commands that load the configuration.
const (
	flagConfig           = "config"
	flagDebug            = "debug"
	flagLogFormat        = "log-format"
	flagDockerRuntime    = "docker-runtime"
	flagDockerSocket     = "docker-socket"
	flagConsulConfigPath = "consul-config-path"
	flagConsulAddress    = "consul-address"
	flagConsulSocket     = "consul-socket"
	flagConsulToken      = "consul-token"
	flagMetricsAddress   = "metrics-address"
)

// flagKeys maps flags onto configuration keys.
var flagKeys = map[string]string{
	flagConfig:           config.KeyConfigFile,
	flagDebug:            config.KeyLogDebug,
	flagLogFormat:        config.KeyLogFormat,
	flagDockerRuntime:    config.KeyDockerRuntime,
	flagDockerSocket:     config.KeyDockerSocket,
	flagConsulConfigPath: config.KeyConsulConfigPath,
	flagConsulAddress:    config.KeyConsulAdvertiseAddress,
	flagConsulToken:      config.KeyConsulToken,
	flagMetricsAddress:   config.KeyMetricsAddress,
}

// addConfigFlags registers the configuration flags on cmd.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.String(flagConfig, "", "YAML configuration file")
	flags.Bool(flagDebug, false, "Enable debug logging")
	flags.String(flagLogFormat, "", "Log format: text or json")
	flags.String(flagDockerRuntime, "", "Container runtime: docker or podman")
	flags.String(flagDockerSocket, "", "Container runtime socket (default /var/run/docker.sock)")
	flags.String(flagConsulConfigPath, "", "Consul agent configuration file or directory (default /consul/config)")
	flags.String(flagConsulAddress, "", "Address advertised for containers on the host network")
	flags.String(flagConsulSocket, "", "Consul agent HTTP API unix socket")
	flags.String(flagConsulToken, "", "Consul ACL token")
	flags.String(flagMetricsAddress, "", "Address to serve Prometheus metrics on, e.g. :9102")
}

// loadSettings builds the effective configuration, with flags taking
// precedence over every other source.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	v := config.NewViper()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	// The socket is a shorthand for a unix:// agent address.
	if f := flags.Lookup(flagConsulSocket); f != nil && f.Changed {
		v.Set(config.KeyConsulAddress, "unix://"+f.Value.String())
	}
	return nil
}
