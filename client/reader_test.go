package client

import (
	"io"
	"strings"
	"testing"
)

func readerFor(s string) Reader {
	return NewReader(io.NopCloser(strings.NewReader(s)))
}

func TestReader_SingleFrame(t *testing.T) {
	r := readerFor("event: user.message\nid: m1\ndata: {\"n\":1}\n\n")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Type != "user.message" {
		t.Errorf("expected type user.message, got %q", frame.Type)
	}
	if frame.ID != "m1" {
		t.Errorf("expected id m1, got %q", frame.ID)
	}
	if frame.Data != `{"n":1}` {
		t.Errorf("expected payload, got %q", frame.Data)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
}

func TestReader_MultiLineData(t *testing.T) {
	r := readerFor("event: t\ndata: line1\ndata: line2\ndata: line3\n\n")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Data != "line1\nline2\nline3" {
		t.Errorf("expected joined data lines, got %q", frame.Data)
	}
}

func TestReader_MultipleFrames(t *testing.T) {
	r := readerFor("event: a\ndata: 1\n\nevent: b\ndata: 2\n\n")

	first, err := r.Next()
	if err != nil || first.Type != "a" {
		t.Fatalf("expected frame a, got %v (%v)", first, err)
	}
	second, err := r.Next()
	if err != nil || second.Type != "b" {
		t.Fatalf("expected frame b, got %v (%v)", second, err)
	}
	if second.Data != "2" {
		t.Errorf("expected second payload, got %q", second.Data)
	}
}

func TestReader_SkipsComments(t *testing.T) {
	r := readerFor(": keepalive 123\n\nevent: t\ndata: 1\n\n")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Type != "t" {
		t.Errorf("expected comment to be skipped, got %+v", frame)
	}
}

func TestReader_RetryField(t *testing.T) {
	r := readerFor("event: t\nretry: 2500\ndata: 1\n\n")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Retry != 2500 {
		t.Errorf("expected retry 2500, got %d", frame.Retry)
	}
}

func TestReader_NoSpaceAfterColon(t *testing.T) {
	r := readerFor("event:t\ndata:1\n\n")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Type != "t" || frame.Data != "1" {
		t.Errorf("expected compact form to parse, got %+v", frame)
	}
}

func TestReader_TruncatedFinalFrame(t *testing.T) {
	r := readerFor("event: t\ndata: 1\n")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Type != "t" {
		t.Errorf("expected truncated frame surfaced, got %+v", frame)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	r := readerFor("")
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF on empty stream, got %v", err)
	}
}
