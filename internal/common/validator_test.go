package common

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	Username string   `json:"username" validate:"required"`
	IDs      []string `json:"ids" validate:"required,min=1"`
}

func TestGenericEchoValidator(t *testing.T) {
	v := NewGenericEchoValidator()

	if err := v.Validate(&sampleRequest{Username: "admin", IDs: []string{"a"}}); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	err := v.Validate(&sampleRequest{IDs: []string{}})
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", httpErr.Code, http.StatusBadRequest)
	}
	message, _ := httpErr.Message.(string)
	if !strings.Contains(message, "username is required") || !strings.Contains(message, "ids needs at least 1 entries") {
		t.Errorf("unexpected message %q", message)
	}
}

func TestGenericEchoValidator_ZeroValue(t *testing.T) {
	var v GenericEchoValidator
	if err := v.Validate(&sampleRequest{}); err == nil {
		t.Fatal("expected error from lazily created validator")
	}
}
