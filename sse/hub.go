package sse

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	stderrors "errors"

	"github.com/skillsenselab/streamhub/errors"
	"github.com/skillsenselab/streamhub/logger"
)

var errConnectionClosed = stderrors.New("sse: connection closed")

// Config holds hub configuration.
type Config struct {
	// HeartbeatInterval is the time between heartbeat ticks.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	// ConnectionTimeout is the staleness threshold for reaping.
	ConnectionTimeout time.Duration `yaml:"connection_timeout" mapstructure:"connection_timeout"`
	// MaxConnections caps concurrently open streams.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections"`
	// DisableHeartbeat turns off the periodic tick and the staleness reaper.
	DisableHeartbeat bool `yaml:"disable_heartbeat" mapstructure:"disable_heartbeat"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = 60 * time.Second
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 1000
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("hub.heartbeat_interval must be non-negative (got: %s)", c.HeartbeatInterval)
	}
	if c.ConnectionTimeout < 0 {
		return fmt.Errorf("hub.connection_timeout must be non-negative (got: %s)", c.ConnectionTimeout)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("hub.max_connections must be non-negative (got: %d)", c.MaxConnections)
	}
	return nil
}

// Option configures a Hub.
type Option func(*Hub)

// WithOnConnect installs an observer invoked after a connection registers.
func WithOnConnect(fn func(*Connection)) Option {
	return func(h *Hub) { h.onConnect = fn }
}

// WithOnDisconnect installs an observer invoked after a connection is
// actually removed.
func WithOnDisconnect(fn func(*Connection)) Option {
	return func(h *Hub) { h.onDisconnect = fn }
}

// Hub owns the connection registry and routes events to matching streams.
// Each event is encoded once per Send call and the same buffer is written to
// every matching connection. A write failure evicts only the failing
// connection; there is no per-connection queue, so a slow consumer harms
// only itself.
type Hub struct {
	cfg      Config
	registry *Registry
	log      *logger.Logger
	metrics  *hubMetrics

	onConnect    func(*Connection)
	onDisconnect func(*Connection)

	startedAt  time.Time
	eventsSent atomic.Uint64
	heartbeats atomic.Uint64

	mu       sync.Mutex
	started  bool
	shutdown bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewHub creates a hub with the given configuration. The heartbeat loop does
// not run until Start is called.
func NewHub(cfg Config, opts ...Option) *Hub {
	cfg.ApplyDefaults()

	h := &Hub{
		cfg:       cfg,
		registry:  NewRegistry(),
		log:       logger.WithComponent("sse_hub"),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	metrics, err := newHubMetrics()
	if err != nil {
		h.log.Warn("metric instruments unavailable", logger.ErrorFields("init_metrics", err))
	} else {
		h.metrics = metrics
	}

	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Config returns the hub's effective configuration.
func (h *Hub) Config() Config { return h.cfg }

// Start launches the heartbeat loop. Safe to call once; a no-op when
// heartbeats are disabled.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return errors.ServiceUnavailable("event hub")
	}
	if h.started || h.cfg.DisableHeartbeat {
		h.started = true
		return nil
	}
	h.started = true

	h.wg.Add(1)
	go h.run()
	return nil
}

// run is the heartbeat loop.
func (h *Hub) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

// tick broadcasts one heartbeat, refreshes liveness on every connection that
// survived the broadcast, then reaps stale connections. The ordering means a
// just-added connection is safe through its first tick, and a connection
// whose write failed is already gone before touch.
func (h *Hub) tick() {
	now := time.Now().UnixMilli()
	result, err := h.Send(Event{
		Type: EventTypeHeartbeat,
		Data: heartbeatPayload{Timestamp: now},
	}, All)
	if err != nil {
		h.log.Error("heartbeat broadcast failed", logger.ErrorFields("heartbeat", err))
		return
	}
	h.heartbeats.Add(1)
	h.metrics.recordHeartbeat(context.Background())

	h.registry.TouchAll()

	stale := h.registry.ListStale(h.cfg.ConnectionTimeout)
	for _, c := range stale {
		h.RemoveConnection(c.ID())
	}
	if len(stale) > 0 || result.Failed > 0 {
		h.log.Info("heartbeat tick", logger.Fields(
			"sent", result.Sent,
			"failed", result.Failed,
			"reaped", len(stale),
		))
	}
	h.metrics.recordReaped(context.Background(), len(stale))
}

// CreateConnection admits a new stream. It allocates an id, registers the
// connection, and writes the connected event as the first bytes on the
// stream. Fails when the hub is at capacity or shut down.
func (h *Hub) CreateConnection(userID, sessionID string, metadata map[string]string, w StreamWriter) (*Connection, error) {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return nil, errors.ServiceUnavailable("event hub")
	}
	h.mu.Unlock()

	if h.registry.Len() >= h.cfg.MaxConnections {
		return nil, errors.CapacityExceeded(h.cfg.MaxConnections)
	}

	var conn *Connection
	for {
		conn = NewConnection(newConnectionID(), userID, sessionID, metadata, w)
		if h.registry.Add(conn) {
			break
		}
		// id collision: mint a new one
	}

	frame, err := Event{
		Type: EventTypeConnected,
		Data: connectedPayload{ConnectionID: conn.ID(), Timestamp: time.Now().UnixMilli()},
	}.Marshal()
	if err == nil {
		err = conn.Write(frame)
	}
	if err != nil {
		h.RemoveConnection(conn.ID())
		return nil, errors.WriteFailed(conn.ID(), err)
	}

	h.metrics.recordConnections(context.Background(), 1)
	h.log.Debug("connection registered", logger.Fields(
		logger.FieldConnectionID, conn.ID(),
		logger.FieldUserID, userID,
		logger.FieldSessionID, sessionID,
		"total", h.registry.Len(),
	))

	if h.onConnect != nil {
		h.onConnect(conn)
	}
	return conn, nil
}

// RemoveConnection closes and deregisters a connection. Idempotent; returns
// true only for the call that actually removed it. The disconnect observer
// fires only on that call.
func (h *Hub) RemoveConnection(id string) bool {
	conn := h.registry.Remove(id)
	if conn == nil {
		return false
	}

	if err := conn.Close(); err != nil {
		// The peer is usually already gone; a close race is harmless.
		h.log.Warn("error closing connection writer", logger.Fields(
			logger.FieldConnectionID, id,
			logger.FieldError, err.Error(),
		))
	}

	h.metrics.recordConnections(context.Background(), -1)
	h.log.Debug("connection removed", logger.Fields(
		logger.FieldConnectionID, id,
		"total", h.registry.Len(),
	))

	if h.onDisconnect != nil {
		h.onDisconnect(conn)
	}
	return true
}

// Send encodes the event once and writes it to every connection matching the
// selector. Write failures are isolated per connection: the failing
// connection is evicted, Failed is incremented, and the loop continues.
func (h *Hub) Send(event Event, sel Selector) (SendResult, error) {
	targets := h.registry.List(sel)

	frame, err := event.Marshal()
	if err != nil {
		return SendResult{}, err
	}

	var result SendResult
	for _, c := range targets {
		if err := c.Write(frame); err != nil {
			result.Failed++
			h.log.Warn("write failed, evicting connection", logger.Fields(
				logger.FieldConnectionID, c.ID(),
				logger.FieldEventType, event.Type,
				logger.FieldError, err.Error(),
			))
			h.RemoveConnection(c.ID())
			continue
		}
		result.Sent++
	}

	h.eventsSent.Add(uint64(result.Sent))
	h.metrics.recordSend(context.Background(), event.Type, result.Sent, result.Failed)

	if event.Type != EventTypeHeartbeat {
		h.log.Debug("event fanned out", logger.Fields(
			logger.FieldEventType, event.Type,
			"sent", result.Sent,
			"failed", result.Failed,
		))
	}
	return result, nil
}

// Broadcast sends the event to every open connection.
func (h *Hub) Broadcast(event Event) (SendResult, error) {
	return h.Send(event, All)
}

// SendToUser sends the event to every connection of one user.
func (h *Hub) SendToUser(userID string, event Event) (SendResult, error) {
	return h.Send(event, Selector{UserID: userID})
}

// SendToSession sends the event to every connection in one session.
func (h *Hub) SendToSession(sessionID string, event Event) (SendResult, error) {
	return h.Send(event, Selector{SessionID: sessionID})
}

// SendToConnection sends the event to a single connection.
func (h *Hub) SendToConnection(connectionID string, event Event) (SendResult, error) {
	return h.Send(event, Selector{ConnectionID: connectionID})
}

// Stats returns a snapshot of hub state.
func (h *Hub) Stats() HubStats {
	snap := h.registry.Snapshot()
	return HubStats{
		TotalConnections:     snap.TotalConnections,
		Authenticated:        snap.Authenticated,
		Anonymous:            snap.Anonymous,
		ConnectionsByUser:    snap.ConnectionsByUser,
		ConnectionsBySession: snap.ConnectionsBySession,
		EventsSent:           h.eventsSent.Load(),
		HeartbeatsSent:       h.heartbeats.Load(),
		UptimeSeconds:        int64(time.Since(h.startedAt).Seconds()),
		StartedAt:            h.startedAt,
	}
}

// ActiveConnections returns status snapshots for connections matching the
// selector.
func (h *Hub) ActiveConnections(sel Selector) []ConnectionStatus {
	conns := h.registry.List(sel)
	out := make([]ConnectionStatus, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Status())
	}
	return out
}

// Shutdown stops the heartbeat loop and removes every connection. Idempotent.
// No new connection is admitted after shutdown begins.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return
	}
	h.shutdown = true
	close(h.done)
	h.mu.Unlock()

	h.wg.Wait()

	removed := h.registry.Clear()
	for _, c := range removed {
		if err := c.Close(); err != nil {
			h.log.Warn("error closing connection writer", logger.Fields(
				logger.FieldConnectionID, c.ID(),
				logger.FieldError, err.Error(),
			))
		}
		h.metrics.recordConnections(context.Background(), -1)
		if h.onDisconnect != nil {
			h.onDisconnect(c)
		}
	}

	h.log.Info("hub shut down", logger.Fields("closed_connections", len(removed)))
}

// --- Process-wide default hub ---

var (
	defaultMu  sync.Mutex
	defaultHub *Hub
)

// Default returns the process-wide hub, lazily creating and starting it with
// default configuration on first use.
func Default() *Hub {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHub == nil {
		defaultHub = NewHub(Config{})
		_ = defaultHub.Start(context.Background())
	}
	return defaultHub
}

// Configure replaces the process-wide hub with one built from cfg, shutting
// down any previous instance. Returns the new hub.
func Configure(cfg Config, opts ...Option) *Hub {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHub != nil {
		defaultHub.Shutdown()
	}
	defaultHub = NewHub(cfg, opts...)
	_ = defaultHub.Start(context.Background())
	return defaultHub
}

// ResetDefault shuts down and discards the process-wide hub. Intended for
// tests.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHub != nil {
		defaultHub.Shutdown()
		defaultHub = nil
	}
}
