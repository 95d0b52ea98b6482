package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"inspector/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs the inspector.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: initialize logging, create clients and wire services
//  2. Execution phase: reconcile until cancelled
//
// Example usage:
//
//	settings, err := config.Load(v)
//	if err != nil {
//	    return err
//	}
//	application, err := app.NewApplication(app.NewConfig(settings, false))
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication configures logging and initializes all services. It
// returns an error if a client cannot be created.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Settings.Log.Debug {
		appLogLevel = logging.LevelDebug
	}

	format, err := logging.ParseFormat(cfg.Settings.Log.Format)
	if err != nil {
		return nil, err
	}

	var logOutput io.Writer = os.Stdout
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.Init(appLogLevel, format, logOutput)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Run executes the application until ctx is cancelled, a termination
// signal arrives or reconciliation fails. Every registration made by this
// process is removed before Run returns.
func (a *Application) Run(ctx context.Context) error {
	return runService(ctx, a.config, a.services)
}
