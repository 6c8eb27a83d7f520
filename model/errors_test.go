package model

import "testing"

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrMisconfiguredProcess, Message: "process has no interactions"}
	want := "MISCONFIGURED_PROCESS: process has no interactions"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_implements_error(t *testing.T) {
	var _ error = (*ErrorEnvelope)(nil)
}

func TestNewMisconfiguredProcessError(t *testing.T) {
	e := NewMisconfiguredProcessError("interaction has no screens")
	if e.Code != ErrMisconfiguredProcess {
		t.Errorf("Code = %q, want %q", e.Code, ErrMisconfiguredProcess)
	}
	if e.Message != "interaction has no screens" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestTicketErrors_indistinguishableMessages(t *testing.T) {
	// An unknown request id must not be distinguishable from a foreign one
	// by the response body.
	notFound := NewTicketNotFoundError()
	mismatch := NewCallerMismatchError()
	certMismatch := NewCertificateMismatchError()

	if notFound.Message != mismatch.Message {
		t.Errorf("TICKET_NOT_FOUND message %q differs from CALLER_MISMATCH message %q",
			notFound.Message, mismatch.Message)
	}
	if notFound.Message != certMismatch.Message {
		t.Errorf("TICKET_NOT_FOUND message %q differs from CERTIFICATE_MISMATCH message %q",
			notFound.Message, certMismatch.Message)
	}
}

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(NewCallerMismatchError()); got != ErrCallerMismatch {
		t.Errorf("ErrorCode = %q, want %q", got, ErrCallerMismatch)
	}
	if got := ErrorCode(errPlain{}); got != ErrInternalError {
		t.Errorf("ErrorCode for plain error = %q, want %q", got, ErrInternalError)
	}
}

type errPlain struct{}

func (errPlain) Error() string { return "plain" }

func TestNewDecryptionFailedError(t *testing.T) {
	e := NewDecryptionFailedError("ssn")
	if e.Code != ErrDecryptionFailed {
		t.Errorf("Code = %q, want %q", e.Code, ErrDecryptionFailed)
	}
}

func TestNewValidationError(t *testing.T) {
	details := []FieldError{
		{Field: "email", Code: "REQUIRED", Message: "Email is required"},
	}
	e := NewValidationError(details)
	if e.Code != ErrValidationError {
		t.Errorf("Code = %q, want %q", e.Code, ErrValidationError)
	}
	if len(e.Details) != 1 {
		t.Fatalf("Details length = %d, want 1", len(e.Details))
	}
	if e.Details[0].Field != "email" {
		t.Errorf("Details[0].Field = %q, want %q", e.Details[0].Field, "email")
	}
}
