package app

import (
	"inspector/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Settings is the effective inspector configuration
	Settings config.Config

	// Silent suppresses all log output
	Silent bool
}

// NewConfig creates a new application configuration
func NewConfig(settings config.Config, silent bool) *Config {
	return &Config{
		Settings: settings,
		Silent:   silent,
	}
}
