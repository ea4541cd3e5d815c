package sse

import (
	"context"
	"fmt"

	"github.com/skillsenselab/streamhub/component"
)

// Component wraps a Hub as a lifecycle-managed component so the entrypoint
// can start and stop it alongside the HTTP server.
type Component struct {
	hub *Hub
}

var _ component.Component = (*Component)(nil)

// NewComponent wraps the given hub.
func NewComponent(hub *Hub) *Component {
	return &Component{hub: hub}
}

// Hub returns the underlying Hub for event broadcasting and route registration.
func (c *Component) Hub() *Hub { return c.hub }

// Name returns the component name.
func (c *Component) Name() string { return "sse" }

// Start launches the hub's heartbeat loop.
func (c *Component) Start(ctx context.Context) error {
	return c.hub.Start(ctx)
}

// Stop shuts the hub down, closing every open stream.
func (c *Component) Stop(ctx context.Context) error {
	c.hub.Shutdown()
	return nil
}

// Health reports the hub's health with the current connection count.
func (c *Component) Health(ctx context.Context) component.Health {
	stats := c.hub.Stats()
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d connections open", stats.TotalConnections),
	}
}
