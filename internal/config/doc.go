// Package config builds the effective configuration of the inspector.
//
// Configuration is assembled with viper from, in increasing order of
// precedence:
//
//   - built-in defaults
//   - the Consul agent configuration (CONSUL_CONFIG_PATH, CONSUL_CONFIG)
//   - an optional YAML file passed with --config
//   - environment variables
//   - command line flags
//
// Every key can be set through an INSPECTOR_ prefixed variable, e.g.
// INSPECTOR_DOCKER_SOCKET for docker.socket. The variable names of earlier
// releases such as DOCKER_SOCKET_PATH keep working.
//
// # Consul agent configuration
//
// The agent configuration supplies the defaults for the Consul connection:
//
//	advertise_addr        -> consul.advertise_address
//	acl.tokens.inspector  -> consul.token (acl.tokens.agent as fallback)
//	addresses.http        -> consul.address (the unix:// entry)
//
// # Managed instances
//
// On ECS Anywhere hosts the instance ID is read from the registration file
// (managed_instance.file_path, default /amazon/ssm/registration) and added to
// every registry entry. Setting MANAGED_INSTANCE_REGISTRATION_REQUIRED makes
// a missing file fatal.
//
// # File format
//
//	log:
//	  debug: false
//	  format: text
//	docker:
//	  runtime: docker
//	  socket: /var/run/docker.sock
//	  expected_labels: ["com.example.managed"]
//	labels:
//	  service_name: consul.inspector.service.name
//	consul:
//	  config_path: /consul/config
//	metrics:
//	  address: ":9102"
package config
