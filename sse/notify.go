package sse

// Producer-facing helpers over the process-wide hub. Host application code
// calls these directly instead of holding a hub reference.

// SendOption customizes the optional frame fields of a produced event.
type SendOption func(*Event)

// WithEventID sets the frame id echoed to clients.
func WithEventID(id string) SendOption {
	return func(e *Event) { e.ID = id }
}

// WithRetry sets the client reconnection-delay hint in milliseconds.
func WithRetry(ms int) SendOption {
	return func(e *Event) { e.Retry = ms }
}

func buildEvent(eventType string, data any, opts []SendOption) Event {
	e := Event{Type: eventType, Data: data}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// NotifyUser delivers an event to every connection of one user.
func NotifyUser(userID, eventType string, data any, opts ...SendOption) (SendResult, error) {
	return Default().SendToUser(userID, buildEvent(eventType, data, opts))
}

// NotifySession delivers an event to every connection in one session.
func NotifySession(sessionID, eventType string, data any, opts ...SendOption) (SendResult, error) {
	return Default().SendToSession(sessionID, buildEvent(eventType, data, opts))
}

// Broadcast delivers an event to every open connection.
func Broadcast(eventType string, data any, opts ...SendOption) (SendResult, error) {
	return Default().Broadcast(buildEvent(eventType, data, opts))
}

// NotifyFiltered delivers an event to connections matching the selector.
func NotifyFiltered(sel Selector, eventType string, data any, opts ...SendOption) (SendResult, error) {
	return Default().Send(buildEvent(eventType, data, opts), sel)
}

// GetStats returns a statistics snapshot of the process-wide hub.
func GetStats() HubStats {
	return Default().Stats()
}

// GetActiveConnections returns status snapshots of connections matching the
// selector on the process-wide hub.
func GetActiveConnections(sel Selector) []ConnectionStatus {
	return Default().ActiveConnections(sel)
}
