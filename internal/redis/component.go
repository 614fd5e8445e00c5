package redis

import (
	"context"
	"fmt"

	"github.com/polygraf/audio-backend/internal/component"
	"github.com/polygraf/audio-backend/internal/logger"
)

// Component wraps Client and implements component.Component for
// lifecycle management. The client is created eagerly so stores and
// queues can be wired before StartAll; connections are established
// lazily by go-redis, and Start verifies connectivity.
type Component struct {
	client *Client
	log    *logger.Logger
}

// NewComponent creates a Redis component for use with the component registry.
func NewComponent(cfg Config, log *logger.Logger) (*Component, error) {
	client, err := New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("redis component: %w", err)
	}
	return &Component{
		client: client,
		log:    log.WithComponent("redis"),
	}, nil
}

var _ component.Component = (*Component)(nil)

// Client returns the underlying *Client.
func (c *Component) Client() *Client {
	return c.client
}

// Name returns the component name.
func (c *Component) Name() string { return "redis" }

// Start verifies connectivity to the Redis server.
func (c *Component) Start(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("redis start ping: %w", err)
	}
	return nil
}

// Stop gracefully closes the Redis connection.
func (c *Component) Stop(_ context.Context) error {
	return c.client.Close()
}

// Health reports connectivity to the Redis server.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name()}
	if err := c.client.Ping(ctx); err != nil {
		h.Status = component.StatusUnhealthy
		h.Message = err.Error()
		return h
	}
	h.Status = component.StatusHealthy
	return h
}
