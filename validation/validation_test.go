package validation

import (
	"strings"
	"testing"

	"github.com/skillsenselab/streamhub/errors"
)

type testPayload struct {
	EventType string `json:"eventType" validate:"required"`
	Data      any    `json:"data" validate:"required"`
	Label     string `json:"label" validate:"max=10"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(&testPayload{EventType: "t", Data: map[string]int{"n": 1}})
	if err != nil {
		t.Errorf("expected valid payload, got %v", err)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Validate(&testPayload{Data: 1})
	if err == nil {
		t.Fatal("expected validation error")
	}

	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.HTTPStatus != 400 {
		t.Errorf("expected 400, got %d", appErr.HTTPStatus)
	}
	if !strings.Contains(appErr.Message, "event_type") {
		t.Errorf("expected field name in message, got %q", appErr.Message)
	}
	if appErr.Details["fields"] == nil {
		t.Error("expected per-field details")
	}
}

func TestValidate_NilData(t *testing.T) {
	if err := Validate(&testPayload{EventType: "t"}); err == nil {
		t.Error("expected nil data to fail required")
	}
}

func TestValidate_MaxLength(t *testing.T) {
	err := Validate(&testPayload{EventType: "t", Data: 1, Label: "this is far too long"})
	if err == nil {
		t.Fatal("expected max-length violation")
	}
	if !strings.Contains(err.Error(), "at most 10") {
		t.Errorf("expected readable message, got %q", err.Error())
	}
}
