package sse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/skillsenselab/streamhub/errors"
)

// Event types the hub and its clients treat specially. Producers must not use
// these for normal payloads.
const (
	// EventTypeConnected is sent as the first frame on every new stream.
	EventTypeConnected = "connected"

	// EventTypeHeartbeat is the periodic liveness pulse.
	EventTypeHeartbeat = "heartbeat"
)

// Event is one message to deliver to a set of connections.
type Event struct {
	// Type is the event name (e.g. "user.message"). Required.
	Type string `json:"type"`
	// Data is the JSON-serializable payload. A nil Data is encoded as null.
	Data any `json:"data"`
	// ID is an optional opaque id echoed in the frame.
	ID string `json:"id,omitempty"`
	// Retry is an optional reconnection-delay hint in milliseconds.
	Retry int `json:"retry,omitempty"`
}

// Marshal renders the event in text/event-stream framing:
//
//	event: <type>\n
//	id: <id>\n          (only when set)
//	retry: <ms>\n       (only when set)
//	data: <json>\n      (one line per newline in the encoded payload)
//	\n
//
// The payload is JSON-encoded once and split on newlines so multi-line
// payloads survive the line-oriented wire format.
func (e Event) Marshal() ([]byte, error) {
	if e.Type == "" {
		return nil, errors.MissingField("type")
	}

	var payload []byte
	if raw, ok := e.Data.(json.RawMessage); ok && json.Valid(raw) {
		// Pre-encoded JSON is used verbatim so its line breaks reach the
		// data-line split below; json.Marshal would compact them away.
		payload = raw
	} else {
		var err error
		payload, err = json.Marshal(e.Data)
		if err != nil {
			return nil, errors.InvalidInput("data", "payload is not JSON-serializable").WithCause(err)
		}
	}

	var b bytes.Buffer
	b.Grow(len(payload) + len(e.Type) + len(e.ID) + 32)

	b.WriteString("event: ")
	b.WriteString(e.Type)
	b.WriteByte('\n')

	if e.ID != "" {
		b.WriteString("id: ")
		b.WriteString(e.ID)
		b.WriteByte('\n')
	}
	if e.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", e.Retry)
	}

	for _, segment := range bytes.Split(payload, []byte{'\n'}) {
		b.WriteString("data: ")
		b.Write(segment)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// connectedPayload is the body of the EventTypeConnected frame.
type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

// heartbeatPayload is the body of the EventTypeHeartbeat frame.
type heartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}
