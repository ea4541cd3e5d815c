package client

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/skillsenselab/streamhub/sse"
)

// The wire codec must round-trip: whatever the hub encodes, the consumer
// decodes back to an equal event.
func TestCodec_RoundTrip(t *testing.T) {
	cases := []sse.Event{
		{Type: "simple", Data: map[string]any{"n": float64(1)}},
		{Type: "with.id", Data: "payload", ID: "evt-42"},
		{Type: "with.retry", Data: float64(7), Retry: 1500},
		{Type: "nested", Data: map[string]any{
			"user": map[string]any{"id": "u1", "tags": []any{"a", "b"}},
			"ok":   true,
		}},
		{Type: "null.data", Data: nil},
	}

	for _, want := range cases {
		frame, err := want.Marshal()
		if err != nil {
			t.Fatalf("%s: Marshal failed: %v", want.Type, err)
		}

		r := NewReader(io.NopCloser(bytes.NewReader(frame)))
		got, err := r.Next()
		if err != nil {
			t.Fatalf("%s: Next failed: %v", want.Type, err)
		}

		if got.Type != want.Type {
			t.Errorf("%s: type mismatch: %q", want.Type, got.Type)
		}
		if got.ID != want.ID {
			t.Errorf("%s: id mismatch: %q", want.Type, got.ID)
		}
		if got.Retry != want.Retry {
			t.Errorf("%s: retry mismatch: %d", want.Type, got.Retry)
		}

		var data any
		if err := json.Unmarshal([]byte(got.Data), &data); err != nil {
			t.Fatalf("%s: payload did not survive: %v", want.Type, err)
		}
		if !reflect.DeepEqual(data, want.Data) {
			t.Errorf("%s: payload mismatch: got %#v, want %#v", want.Type, data, want.Data)
		}
	}
}

// A payload whose JSON encoding carries newlines is split across data lines
// on the wire and reassembled by the reader.
func TestCodec_RoundTrip_MultiLinePayload(t *testing.T) {
	raw := json.RawMessage("{\n  \"a\": 1\n}")
	frame, err := sse.Event{Type: "t", Data: raw}.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if got := strings.Count(string(frame), "data: "); got != 3 {
		t.Fatalf("expected 3 data lines on the wire, got %d", got)
	}

	r := NewReader(io.NopCloser(bytes.NewReader(frame)))
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(got.Data), &decoded); err != nil {
		t.Fatalf("reassembled payload unparseable: %v (%q)", err, got.Data)
	}
	if decoded["a"] != float64(1) {
		t.Errorf("payload mismatch: %#v", decoded)
	}
}
