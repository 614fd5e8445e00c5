// Package app wires config, logging, and the component registry into the
// shared startup and shutdown sequence used by all audio-backend binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polygraf/audio-backend/internal/component"
	"github.com/polygraf/audio-backend/internal/config"
	"github.com/polygraf/audio-backend/internal/logger"
)

// App holds the shared runtime of a single service binary.
type App struct {
	Name       string
	Config     *config.Config
	Logger     *logger.Logger
	Components *component.Registry

	gracefulTimeout time.Duration
}

// New loads configuration, builds the logger, and prepares an empty
// component registry for the named service.
func New(serviceName string, opts ...config.LoaderOption) (*App, error) {
	cfg, err := config.Load(serviceName, opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(&cfg.Logging, serviceName)
	return &App{
		Name:            serviceName,
		Config:          cfg,
		Logger:          log,
		Components:      component.NewRegistry(log),
		gracefulTimeout: 15 * time.Second,
	}, nil
}

// Register adds a component to the registry.
func (a *App) Register(c component.Component) error {
	return a.Components.Register(c)
}

// Run starts all components, blocks until SIGINT or SIGTERM, then stops
// them in reverse order.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("starting service", logger.Fields(
		"name", a.Name, "environment", a.Config.Environment))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			a.Logger.Warn("component unhealthy at startup", logger.Fields(
				logger.FieldComponent, h.Name, logger.FieldStatus, string(h.Status),
				"message", h.Message))
		}
	}

	a.Logger.Info("service ready")
	a.waitForSignal(ctx)

	return a.shutdown()
}

func (a *App) waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("shutdown signal received", logger.Fields("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("context cancelled")
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	if err := a.Components.StopAll(ctx); err != nil {
		return fmt.Errorf("stop components: %w", err)
	}
	a.Logger.Info("service stopped")
	return nil
}
