package sse

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEvent_Marshal_Framing(t *testing.T) {
	frame, err := Event{Type: "user.message", Data: map[string]int{"n": 1}}.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got := string(frame)
	if !strings.HasPrefix(got, "event: user.message\n") {
		t.Errorf("expected event line first, got %q", got)
	}
	if !strings.Contains(got, "data: {\"n\":1}\n") {
		t.Errorf("expected data line, got %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Errorf("expected blank-line terminator, got %q", got)
	}
	if strings.Contains(got, "id: ") || strings.Contains(got, "retry: ") {
		t.Errorf("unset optional fields must produce no lines, got %q", got)
	}
}

func TestEvent_Marshal_OptionalFields(t *testing.T) {
	frame, err := Event{Type: "t", Data: "x", ID: "evt-1", Retry: 2500}.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got := string(frame)
	if !strings.Contains(got, "id: evt-1\n") {
		t.Errorf("expected id line, got %q", got)
	}
	if !strings.Contains(got, "retry: 2500\n") {
		t.Errorf("expected retry line, got %q", got)
	}
}

func TestEvent_Marshal_MultiLineData(t *testing.T) {
	// A payload whose JSON encoding contains newlines must be split into one
	// data line per newline.
	payload := "line1\nline2\nline3"
	raw, _ := json.Marshal(payload) // "line1\nline2\nline3" stays one JSON line

	frame, err := Event{Type: "t", Data: payload}.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	wantLines := 1 + bytes.Count(raw, []byte{'\n'})
	gotLines := strings.Count(string(frame), "data: ")
	if gotLines != wantLines {
		t.Errorf("expected %d data lines, got %d", wantLines, gotLines)
	}
}

func TestEvent_Marshal_RawNewlinePayload(t *testing.T) {
	// json.RawMessage can carry literal newlines through encoding; each
	// segment must become its own data line.
	raw := json.RawMessage("{\n\"a\": 1\n}")

	frame, err := Event{Type: "t", Data: raw}.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	gotLines := strings.Count(string(frame), "data: ")
	if gotLines != 3 {
		t.Errorf("expected 3 data lines, got %d in %q", gotLines, string(frame))
	}
}

func TestEvent_Marshal_EmptyType(t *testing.T) {
	if _, err := (Event{Data: "x"}).Marshal(); err == nil {
		t.Error("expected error for empty event type")
	}
}

func TestEvent_Marshal_UnserializableData(t *testing.T) {
	if _, err := (Event{Type: "t", Data: make(chan int)}).Marshal(); err == nil {
		t.Error("expected error for unserializable payload")
	}
}
