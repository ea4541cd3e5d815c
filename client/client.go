// Package client consumes a streamhub event stream over HTTP. It parses the
// wire frames, dispatches events to typed handlers, and reconnects with a
// bounded retry budget when the stream drops.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/skillsenselab/streamhub/logger"
	"github.com/skillsenselab/streamhub/resilience"
)

// Event types handled internally and never forwarded to user handlers.
const (
	eventConnected = "connected"
	eventHeartbeat = "heartbeat"
)

// State is the client connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Event is one decoded, dispatched message.
type Event struct {
	// Type is the event name.
	Type string
	// Data is the decoded JSON payload.
	Data any
	// ID is the frame id, "" when absent.
	ID string
}

// Config holds client configuration.
type Config struct {
	// URL is the stream endpoint (e.g. "http://host:8080/api/sse").
	URL string
	// Token is an optional bearer token sent with every connect.
	Token string
	// HTTPClient overrides the transport. The default has no global timeout;
	// cancellation comes from the Connect context.
	HTTPClient *http.Client
	// DisableReconnect turns off automatic reconnection.
	DisableReconnect bool
	// MaxReconnectAttempts bounds consecutive failed reconnects.
	MaxReconnectAttempts int
	// ReconnectDelay is the base delay between reconnect attempts. A retry
	// hint from the server replaces it.
	ReconnectDelay time.Duration
	// BackoffFactor multiplies the delay per attempt. The default 1.0 keeps
	// the delay fixed.
	BackoffFactor float64
	// MaxReconnectDelay caps the grown delay.
	MaxReconnectDelay time.Duration
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 1.0
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Client is a streamhub consumer. One stream request is active at a time;
// event dispatch runs on a single goroutine so handlers never overlap.
type Client struct {
	cfg  Config
	log  *logger.Logger
	subs *subscriptions

	mu            sync.Mutex
	state         State
	lastError     string
	connectionID  string
	lastHeartbeat time.Time
	attempts      int
	retryHintMs   int
	running       bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New creates a client for the given endpoint.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		cfg:   cfg,
		log:   logger.WithComponent("sse_client"),
		subs:  newSubscriptions(),
		state: StateDisconnected,
	}
}

// Subscribe registers a handler for an event type (or Wildcard) and returns
// an idempotent unsubscribe function.
func (c *Client) Subscribe(eventType string, h Handler) func() {
	return c.subs.add(eventType, h)
}

// Connect starts consuming the stream. It returns immediately; the stream is
// serviced on a background goroutine until the context is canceled,
// Disconnect is called, or the reconnect budget runs out. Calling Connect on
// a running client restarts the stream: the previous request is aborted
// first.
func (c *Client) Connect(ctx context.Context) error {
	c.Disconnect()

	c.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.attempts = 0
	c.setStateLocked(StateConnecting, "")
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Disconnect aborts the active request and cancels any pending reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.running = false
	c.setStateLocked(StateDisconnected, "")
	c.mu.Unlock()
}

// State returns the connection state and the last error message, which is
// non-empty only after an abnormal transition.
func (c *Client) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastError
}

// ConnectionID returns the server-minted id for the current stream, or ""
// before the connected event arrives.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// LastHeartbeat returns when the last heartbeat arrived.
func (c *Client) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

// run owns the connect/reconnect loop.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.setState(StateConnecting, "")

		err := c.stream(ctx)

		if ctx.Err() != nil {
			c.setState(StateDisconnected, "")
			return
		}

		errMsg := "stream ended"
		if err != nil {
			errMsg = err.Error()
		}

		if c.cfg.DisableReconnect {
			c.setState(StateDisconnected, errMsg)
			return
		}

		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		hint := c.retryHintMs
		c.mu.Unlock()

		if attempts > c.cfg.MaxReconnectAttempts {
			c.setState(StateDisconnected, fmt.Sprintf(
				"giving up after %d reconnect attempts: %s", c.cfg.MaxReconnectAttempts, errMsg))
			return
		}

		base := c.cfg.ReconnectDelay
		if hint > 0 {
			base = time.Duration(hint) * time.Millisecond
		}
		delay := resilience.Backoff(attempts, resilience.RetryConfig{
			InitialBackoff: base,
			BackoffFactor:  c.cfg.BackoffFactor,
			MaxBackoff:     c.cfg.MaxReconnectDelay,
		})

		c.log.Warn("stream dropped, reconnecting", logger.Fields(
			"attempt", attempts,
			"max_attempts", c.cfg.MaxReconnectAttempts,
			"delay", delay.String(),
			logger.FieldError, errMsg,
		))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateDisconnected, "")
			return
		case <-timer.C:
		}
	}
}

// stream issues one GET and consumes frames until the stream ends or fails.
func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.setState(StateConnected, "")

	r := NewReader(resp.Body)
	for {
		frame, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("stream ended")
			}
			return err
		}
		c.dispatch(frame)
	}
}

// dispatch decodes one frame and routes it. The internal connected and
// heartbeat events update client state and are never forwarded.
func (c *Client) dispatch(frame *Frame) {
	if frame.Retry > 0 {
		c.mu.Lock()
		c.retryHintMs = frame.Retry
		c.mu.Unlock()
	}

	var data any
	if frame.Data != "" {
		if err := json.Unmarshal([]byte(frame.Data), &data); err != nil {
			c.log.Warn("discarding unparseable frame", logger.Fields(
				logger.FieldEventType, frame.Type,
				logger.FieldError, err.Error(),
			))
			return
		}
	}

	switch frame.Type {
	case eventConnected:
		c.mu.Lock()
		if m, ok := data.(map[string]any); ok {
			if id, ok := m["connectionId"].(string); ok {
				c.connectionID = id
			}
		}
		// A clean connect resets the reconnect budget.
		c.attempts = 0
		c.mu.Unlock()
		return

	case eventHeartbeat:
		c.mu.Lock()
		c.lastHeartbeat = time.Now()
		c.mu.Unlock()
		return
	}

	event := Event{Type: frame.Type, Data: data, ID: frame.ID}
	for _, h := range c.subs.handlersFor(frame.Type) {
		c.invoke(h, event)
	}
}

// invoke calls one handler, containing panics so a broken handler never
// kills the stream.
func (c *Client) invoke(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("event handler panicked", logger.Fields(
				logger.FieldEventType, event.Type,
				"panic", fmt.Sprintf("%v", r),
			))
		}
	}()
	h(event)
}

func (c *Client) setState(s State, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s, errMsg)
}

func (c *Client) setStateLocked(s State, errMsg string) {
	c.state = s
	c.lastError = errMsg
}
