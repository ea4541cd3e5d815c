package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCapacityExceeded(t *testing.T) {
	err := CapacityExceeded(1000)

	if err.Code != ErrCodeCapacityExceeded {
		t.Errorf("expected CAPACITY_EXCEEDED, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if !err.Retryable {
		t.Error("expected capacity errors to be retryable")
	}
	if err.Details["max_connections"] != 1000 {
		t.Errorf("expected limit in details, got %v", err.Details)
	}
}

func TestUnauthorized_DefaultMessage(t *testing.T) {
	err := Unauthorized("")
	if err.Message == "" {
		t.Error("expected a default message")
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", err.HTTPStatus)
	}
}

func TestMissingField(t *testing.T) {
	err := MissingField("eventType")
	if err.Code != ErrCodeMissingField {
		t.Errorf("expected MISSING_FIELD, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", err.HTTPStatus)
	}
	if err.Details["field"] != "eventType" {
		t.Errorf("expected field in details, got %v", err.Details)
	}
}

func TestWriteFailed_WrapsCause(t *testing.T) {
	cause := stderrors.New("broken pipe")
	err := WriteFailed("sse_1_abc", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
	if err.Details["connection_id"] != "sse_1_abc" {
		t.Errorf("expected connection id in details, got %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("connection", "c1"))

	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to find the AppError")
	}
	if appErr.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", appErr.Code)
	}

	if _, ok := AsAppError(stderrors.New("plain")); ok {
		t.Error("expected plain errors not to convert")
	}
	if IsAppError(stderrors.New("plain")) {
		t.Error("expected plain errors not to be AppErrors")
	}
}

func TestToResponse(t *testing.T) {
	resp := Validation("bad input").ToResponse()
	if resp.Error.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", resp.Error.Code)
	}
	if resp.Error.Message != "bad input" {
		t.Errorf("expected message preserved, got %q", resp.Error.Message)
	}
}

func TestError_StringIncludesCause(t *testing.T) {
	err := Internal(stderrors.New("boom"))
	if got := err.Error(); got == "" || !stderrors.Is(err, err.Cause) {
		t.Errorf("unexpected error string %q", got)
	}
}
