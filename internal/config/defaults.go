package config

import (
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyLogDebug  = "log.debug"
	KeyLogFormat = "log.format"

	KeyDockerRuntime        = "docker.runtime"
	KeyDockerSocket         = "docker.socket"
	KeyDockerExpectedLabels = "docker.expected_labels"

	KeyServiceNameLabel    = "labels.service_name"
	KeyTaskARNLabel        = "labels.task_arn"
	KeyHealthLabel         = "labels.health"
	KeyHealthIntervalLabel = "labels.health_interval"
	KeyHealthTimeoutLabel  = "labels.health_timeout"
	KeyTagsLabel           = "labels.tags"

	KeyConsulConfigPath       = "consul.config_path"
	KeyConsulConfig           = "consul.config"
	KeyConsulAddress          = "consul.address"
	KeyConsulToken            = "consul.token"
	KeyConsulAdvertiseAddress = "consul.advertise_address"

	KeyECSRelativeURI          = "ecs.credentials_relative_uri"
	KeyECSCredentialsEndpoint  = "ecs.credentials_endpoint"
	KeyECSCredentialsLifetime  = "ecs.credentials_lifetime"
	KeyManagedInstanceRequired = "managed_instance.required"
	KeyManagedInstanceFilePath = "managed_instance.file_path"

	KeyMetricsAddress = "metrics.address"

	// KeyConfigFile is the optional YAML configuration file.
	KeyConfigFile = "config"
)

const (
	DefaultDockerSocket            = "/var/run/docker.sock"
	DefaultConsulConfigPath        = "/consul/config"
	DefaultManagedInstanceFilePath = "/amazon/ssm/registration"
	DefaultCredentialsLifetime     = 10 * time.Minute
)

// envPrefix is prepended to every key for environment lookups, e.g.
// INSPECTOR_DOCKER_SOCKET.
const envPrefix = "INSPECTOR"

// legacyEnv lists the environment variable names understood in addition
// to the INSPECTOR_ ones.
var legacyEnv = map[string][]string{
	KeyDockerSocket:            {"DOCKER_SOCKET_PATH"},
	KeyDockerExpectedLabels:    {"DOCKER_EXPECTED_CONTAINER_LABELS"},
	KeyServiceNameLabel:        {"DOCKER_CONTAINER_LABELS_SERVICE_NAME"},
	KeyHealthLabel:             {"DOCKER_CONTAINER_LABELS_SERVICE_HEALTH_NAME"},
	KeyHealthIntervalLabel:     {"DOCKER_CONTAINER_LABELS_SERVICE_HEALTH_INTERVAL_NAME"},
	KeyHealthTimeoutLabel:      {"DOCKER_CONTAINER_LABELS_SERVICE_HEALTH_TIMEOUT_NAME"},
	KeyConsulConfigPath:        {"CONSUL_CONFIG_PATH"},
	KeyConsulConfig:            {"CONSUL_CONFIG"},
	KeyECSRelativeURI:          {"AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"},
	KeyManagedInstanceFilePath: {"MANAGED_INSTANCE_REGISTRATION_FILE_PATH"},
}

// managedInstanceRequiredEnv marks the registration file as required by
// merely being present. Both spellings are accepted.
var managedInstanceRequiredEnv = []string{
	"MANAGED_INSTANCE_REGISTRATION_REGUIRED",
	"MANAGED_INSTANCE_REGISTRATION_REQUIRED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogDebug, false)
	v.SetDefault(KeyLogFormat, "text")

	v.SetDefault(KeyDockerRuntime, "docker")
	v.SetDefault(KeyDockerSocket, DefaultDockerSocket)
	v.SetDefault(KeyDockerExpectedLabels, []string{})

	v.SetDefault(KeyServiceNameLabel, "")
	v.SetDefault(KeyTaskARNLabel, "")
	v.SetDefault(KeyHealthLabel, "")
	v.SetDefault(KeyHealthIntervalLabel, "")
	v.SetDefault(KeyHealthTimeoutLabel, "")
	v.SetDefault(KeyTagsLabel, "")

	v.SetDefault(KeyConsulConfigPath, DefaultConsulConfigPath)
	v.SetDefault(KeyConsulConfig, "")
	v.SetDefault(KeyConsulAddress, "")
	v.SetDefault(KeyConsulToken, "")
	v.SetDefault(KeyConsulAdvertiseAddress, "")

	v.SetDefault(KeyECSRelativeURI, "")
	v.SetDefault(KeyECSCredentialsEndpoint, "")
	v.SetDefault(KeyECSCredentialsLifetime, DefaultCredentialsLifetime)

	v.SetDefault(KeyManagedInstanceRequired, false)
	v.SetDefault(KeyManagedInstanceFilePath, DefaultManagedInstanceFilePath)

	v.SetDefault(KeyMetricsAddress, "")
}
