package sse

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/skillsenselab/streamhub/sse"

// hubMetrics holds the OpenTelemetry instruments the hub records to. All
// methods are nil-safe so the hub works unchanged when instrument creation
// fails or no meter provider is installed.
type hubMetrics struct {
	eventsSent        metric.Int64Counter
	eventsFailed      metric.Int64Counter
	heartbeats        metric.Int64Counter
	connectionsActive metric.Int64UpDownCounter
	connectionsReaped metric.Int64Counter
}

// newHubMetrics creates the hub's metric instruments.
func newHubMetrics() (*hubMetrics, error) {
	meter := otel.Meter(meterName)

	eventsSent, err := meter.Int64Counter("sse.events.sent",
		metric.WithDescription("Events successfully written to client streams"),
	)
	if err != nil {
		return nil, err
	}

	eventsFailed, err := meter.Int64Counter("sse.events.failed",
		metric.WithDescription("Event writes that failed and evicted their connection"),
	)
	if err != nil {
		return nil, err
	}

	heartbeats, err := meter.Int64Counter("sse.heartbeats",
		metric.WithDescription("Heartbeat ticks broadcast to all connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionsActive, err := meter.Int64UpDownCounter("sse.connections.active",
		metric.WithDescription("Currently open client streams"),
	)
	if err != nil {
		return nil, err
	}

	connectionsReaped, err := meter.Int64Counter("sse.connections.reaped",
		metric.WithDescription("Connections evicted for staleness"),
	)
	if err != nil {
		return nil, err
	}

	return &hubMetrics{
		eventsSent:        eventsSent,
		eventsFailed:      eventsFailed,
		heartbeats:        heartbeats,
		connectionsActive: connectionsActive,
		connectionsReaped: connectionsReaped,
	}, nil
}

func (m *hubMetrics) recordSend(ctx context.Context, eventType string, sent, failed int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))
	if sent > 0 {
		m.eventsSent.Add(ctx, int64(sent), attrs)
	}
	if failed > 0 {
		m.eventsFailed.Add(ctx, int64(failed), attrs)
	}
}

func (m *hubMetrics) recordHeartbeat(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeats.Add(ctx, 1)
}

func (m *hubMetrics) recordConnections(ctx context.Context, delta int) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, int64(delta))
}

func (m *hubMetrics) recordReaped(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.connectionsReaped.Add(ctx, int64(n))
}
