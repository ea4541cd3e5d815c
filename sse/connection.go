package sse

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// StreamWriter is the output sink of one connection. The HTTP layer provides
// an implementation that pushes bytes to the peer; tests provide fakes.
//
// Write must return an error when the peer is unreachable or the underlying
// buffer cannot accept the bytes within the writer's own deadline. Close must
// be safe to call more than once.
type StreamWriter interface {
	Write(p []byte) error
	Close() error
}

// Connection is a single open stream to one client. Its id, user, session,
// metadata and writer are set at creation and never mutated; lastSeen, the
// sent-events counter and the closed state change over its lifetime.
type Connection struct {
	id        string
	userID    string
	sessionID string
	metadata  map[string]string
	writer    StreamWriter
	createdAt time.Time

	lastSeen   atomic.Int64 // unix millis, refreshed by heartbeat delivery
	eventsSent atomic.Uint64

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewConnection builds a connection around the given writer. The id is
// allocated by the caller (the hub) so collisions can be detected against the
// registry before the connection is visible.
func NewConnection(id, userID, sessionID string, metadata map[string]string, w StreamWriter) *Connection {
	c := &Connection{
		id:        id,
		userID:    userID,
		sessionID: sessionID,
		metadata:  metadata,
		writer:    w,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
	c.lastSeen.Store(time.Now().UnixMilli())
	return c
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string { return c.id }

// UserID returns the caller identity, or "" for anonymous connections.
func (c *Connection) UserID() string { return c.userID }

// SessionID returns the logical session grouping, or "".
func (c *Connection) SessionID() string { return c.sessionID }

// Metadata returns the connection metadata map. Callers must not mutate it.
func (c *Connection) Metadata() map[string]string { return c.metadata }

// Write sends a pre-encoded frame to the peer. Writes on one connection are
// serialized; writes to different connections proceed independently.
func (c *Connection) Write(p []byte) error {
	if c.closed.Load() {
		return errConnectionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.writer.Write(p); err != nil {
		return err
	}
	c.eventsSent.Add(1)
	return nil
}

// Close shuts the stream down. Idempotent; a close error from an
// already-dead peer is returned to the caller to log, never to act on.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.writer.Close()
	})
	return err
}

// Done is closed when the connection has been shut down, letting the HTTP
// handler unblock and end the response.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Touch refreshes the liveness timestamp.
func (c *Connection) Touch() {
	c.lastSeen.Store(time.Now().UnixMilli())
}

// LastSeen returns the liveness timestamp in unix milliseconds.
func (c *Connection) LastSeen() int64 { return c.lastSeen.Load() }

// staleBefore reports whether the connection's last-seen timestamp predates
// the given cutoff.
func (c *Connection) staleBefore(cutoff int64) bool {
	return c.lastSeen.Load() < cutoff
}

// ConnectionStatus is a point-in-time snapshot of one connection, as served
// by the stats endpoint.
type ConnectionStatus struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId,omitempty"`
	SessionID   string            `json:"sessionId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ConnectedAt int64             `json:"connectedAt"`
	LastSeen    int64             `json:"lastSeen"`
	EventsSent  uint64            `json:"eventsSent"`
}

// Status returns a snapshot of the connection.
func (c *Connection) Status() ConnectionStatus {
	return ConnectionStatus{
		ID:          c.id,
		UserID:      c.userID,
		SessionID:   c.sessionID,
		Metadata:    c.metadata,
		ConnectedAt: c.createdAt.UnixMilli(),
		LastSeen:    c.lastSeen.Load(),
		EventsSent:  c.eventsSent.Load(),
	}
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newConnectionID mints an id of the form sse_<millis>_<9 random chars>.
// Uniqueness within the process is enforced by the registry insert; the hub
// regenerates on the (practically impossible) collision.
func newConnectionID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("sse_%d_%s", time.Now().UnixMilli(), suffix)
}
