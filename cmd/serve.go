package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"inspector/internal/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Synchronize containers with the Consul agent",
		Long: `Starts watching the container runtime and registers every named container
with the local Consul agent until the process is stopped.

Configuration is read from, in increasing order of precedence:
  - the Consul agent configuration (CONSUL_CONFIG_PATH, CONSUL_CONFIG)
  - the YAML file given with --config
  - INSPECTOR_ prefixed environment variables
  - command line flags

On SIGINT or SIGTERM every registration made by this process is removed
before it exits.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	application, err := app.NewApplication(app.NewConfig(settings, false))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}
