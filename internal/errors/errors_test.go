package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

var predeclaredErrors = []*APIError{
	ErrUnauthenticatedError,
	ErrTokenExpiredError,
	ErrForbiddenError,
	ErrNotTaskOwnerError,
	ErrUserNotFoundError,
	ErrTaskNotFoundError,
	ErrSubmissionNotFoundError,
	ErrWithdrawalNotFoundError,
	ErrInsufficientFundsError,
	ErrInvalidTransitionError,
	ErrTaskClosedError,
	ErrRateLimitedError,
	ErrInternalServerError,
	ErrUpstreamUnavailableError,
}

// Codes embed their HTTP status in the first three digits, so the wire code
// alone identifies the class of failure.
func TestErrorCodes_MatchHTTPStatus(t *testing.T) {
	for _, apiErr := range predeclaredErrors {
		if apiErr.Code == "" {
			t.Fatalf("PROPERTY VIOLATION: error %q has no code", apiErr.Message)
		}
		if apiErr.Message == "" {
			t.Fatalf("PROPERTY VIOLATION: error %s has no message", apiErr.Code)
		}
		if !strings.HasPrefix(string(apiErr.Code), fmt.Sprintf("%d", apiErr.HTTPStatus)) {
			t.Fatalf("PROPERTY VIOLATION: code %s does not carry HTTP status %d",
				apiErr.Code, apiErr.HTTPStatus)
		}
	}
}

func TestErrorCodes_Unique(t *testing.T) {
	seen := map[ErrorCode]bool{}
	for _, apiErr := range predeclaredErrors {
		if seen[apiErr.Code] {
			t.Fatalf("PROPERTY VIOLATION: error code %s declared twice", apiErr.Code)
		}
		seen[apiErr.Code] = true
	}
}

func TestErrorResponse_SerializesEnvelope(t *testing.T) {
	resp := ErrorResponse{Error: *ErrTaskClosedError, RequestID: "req-123"}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal error response: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}
	if decoded["request_id"] != "req-123" {
		t.Fatalf("Expected request_id in envelope, got: %s", raw)
	}
	inner, ok := decoded["error"].(map[string]any)
	if !ok {
		t.Fatalf("Expected nested error object, got: %s", raw)
	}
	if inner["code"] != string(ErrTaskClosed) {
		t.Fatalf("Expected code %s, got: %v", ErrTaskClosed, inner["code"])
	}
	if _, leaked := inner["HTTPStatus"]; leaked {
		t.Fatalf("HTTP status must not appear on the wire: %s", raw)
	}
}

func TestNewValidationError(t *testing.T) {
	details := map[string]string{"payable_amount": "must be positive"}
	apiErr := NewValidationError(details)

	if apiErr.Code != ErrValidationFailed {
		t.Fatalf("Expected code %s, got %s", ErrValidationFailed, apiErr.Code)
	}
	if apiErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", apiErr.HTTPStatus)
	}
	if apiErr.Details == nil {
		t.Fatal("Details should be carried through")
	}
}

func TestNewInvalidArgumentError(t *testing.T) {
	apiErr := NewInvalidArgumentError("bad input")
	if apiErr.Error() != "bad input" {
		t.Fatalf("Expected message to back the error interface, got %q", apiErr.Error())
	}
	if apiErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", apiErr.HTTPStatus)
	}
}
