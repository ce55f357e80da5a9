package validator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// Mirrors the send-message request shape so the tests exercise the same
// tags the handlers declare.
type sendRequest struct {
	RecipientNumber string `json:"recipient_number" validate:"required,msisdn"`
	MessageBody     string `json:"message_body" validate:"required"`
}

func TestCustomValidator_ErrorsKeyOnWireFieldNames(t *testing.T) {
	cv := New()

	err := cv.Validate(sendRequest{})
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}

	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}

	if _, exists := ve.Errors["recipient_number"]; !exists {
		t.Errorf("expected 'recipient_number' in validation errors, got %v", ve.Errors)
	}
	if _, exists := ve.Errors["message_body"]; !exists {
		t.Errorf("expected 'message_body' in validation errors, got %v", ve.Errors)
	}
}

func TestCustomValidator_MsisdnRule(t *testing.T) {
	cv := New()

	valid := []string{"+27821234567", "27821234567", "14155552671"}
	for _, number := range valid {
		if err := cv.Validate(sendRequest{RecipientNumber: number, MessageBody: "hi"}); err != nil {
			t.Errorf("expected %q to validate, got %v", number, err)
		}
	}

	invalid := []string{"0821234567x", "+0821234567", "12345", "not-a-number"}
	for _, number := range invalid {
		err := cv.Validate(sendRequest{RecipientNumber: number, MessageBody: "hi"})
		if err == nil {
			t.Errorf("expected %q to be rejected", number)
			continue
		}
		ve, ok := err.(*ValidationError)
		if !ok {
			t.Errorf("expected *ValidationError for %q, got %T", number, err)
			continue
		}
		if msg := ve.Errors["recipient_number"]; msg != "recipient_number must be a mobile number in international format" {
			t.Errorf("unexpected msisdn message for %q: %q", number, msg)
		}
	}
}

func TestHandleValidationError_Returns422WithDetails(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	c := e.NewContext(req, rec)

	cv := New()
	err := cv.Validate(sendRequest{})
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}

	if err := HandleValidationError(c, err); err != nil {
		t.Fatalf("HandleValidationError returned error: %v", err)
	}

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}

	var body ValidationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if body.Success {
		t.Errorf("expected Success=false, got true")
	}
	if body.Error != "Validation failed" {
		t.Errorf("expected error='Validation failed', got %q", body.Error)
	}
	if len(body.Details) == 0 {
		t.Fatalf("expected details in validation response, got none")
	}
}
