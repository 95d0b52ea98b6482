package config

import (
	"fmt"
	"net/netip"
	"strings"

	"inspector/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the effective configuration.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if err := ValidateOneOf(KeyLogFormat, cfg.Log.Format, []string{"text", "json"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateOneOf(KeyDockerRuntime, cfg.Docker.Runtime, []string{"docker", "podman"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if cfg.ECS.CredentialsLifetime <= 0 {
		errs.Add(KeyECSCredentialsLifetime, "must be positive", cfg.ECS.CredentialsLifetime)
	}

	// An unusable advertise address only disables the host network fallback.
	if addr := cfg.Consul.AdvertiseAddress; addr != "" {
		if _, err := netip.ParseAddr(addr); err != nil {
			logging.Warn(subsystem, "Advertise address %q is not an IP address", addr)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
