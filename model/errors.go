package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrForbidden       = "FORBIDDEN"
	ErrNotFound        = "NOT_FOUND"
	ErrConflict        = "CONFLICT"
	ErrValidationError = "VALIDATION_ERROR"
	ErrInternalError   = "INTERNAL_ERROR"
)

// Domain-specific error codes.
const (
	ErrMisconfiguredProcess = "MISCONFIGURED_PROCESS"
	ErrCallerMismatch       = "CALLER_MISMATCH"
	ErrCertificateMismatch  = "CERTIFICATE_MISMATCH"
	ErrTicketNotFound       = "TICKET_NOT_FOUND"
	ErrDecryptionFailed     = "DECRYPTION_FAILED"
)

// ErrorEnvelope is the standard error type carried across package boundaries
// and, at the edge, serialized to callers. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode returns the envelope code of err, or INTERNAL_ERROR for anything
// that is not an *ErrorEnvelope.
func ErrorCode(err error) string {
	if ee, ok := err.(*ErrorEnvelope); ok {
		return ee.Code
	}
	return ErrInternalError
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewMisconfiguredProcessError returns a MISCONFIGURED_PROCESS error. The
// topology of a process definition is incomplete; nothing can be rendered.
func NewMisconfiguredProcessError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrMisconfiguredProcess, Message: msg}
}

// NewCallerMismatchError returns a CALLER_MISMATCH error: the resolving
// caller's remote user differs from the one recorded on the ticket.
func NewCallerMismatchError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrCallerMismatch,
		Message: "Caller is not authorized for this request",
	}
}

// NewCertificateMismatchError returns a CERTIFICATE_MISMATCH error: the
// client certificate presented on resolve does not match the one recorded.
func NewCertificateMismatchError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrCertificateMismatch,
		Message: "Caller is not authorized for this request",
	}
}

// NewTicketNotFoundError returns a TICKET_NOT_FOUND error. The message is
// identical to the mismatch errors so an unknown request id cannot be told
// apart from a real-but-foreign ticket.
func NewTicketNotFoundError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrTicketNotFound,
		Message: "Caller is not authorized for this request",
	}
}

// NewDecryptionFailedError returns a DECRYPTION_FAILED error for a single
// field; pipeline execution continues for other fields.
func NewDecryptionFailedError(field string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrDecryptionFailed,
		Message: fmt.Sprintf("Value for field %q could not be read", field),
	}
}
