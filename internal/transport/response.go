// Package transport contains the HTTP router, middleware chain, and the
// request handlers exposing screens, tickets, and attachments.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/formflow/formflow/internal/observability"
	"github.com/formflow/formflow/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes. The three
// ticket rejection codes all map to 403 so an unknown request id cannot be
// told apart from a real-but-foreign ticket at the wire.
var statusForCode = map[string]int{
	model.ErrBadRequest:           http.StatusBadRequest,
	model.ErrUnauthorized:         http.StatusUnauthorized,
	model.ErrForbidden:            http.StatusForbidden,
	model.ErrNotFound:             http.StatusNotFound,
	model.ErrConflict:             http.StatusConflict,
	model.ErrValidationError:      http.StatusUnprocessableEntity,
	model.ErrInternalError:        http.StatusInternalServerError,
	model.ErrMisconfiguredProcess: http.StatusInternalServerError,
	model.ErrCallerMismatch:       http.StatusForbidden,
	model.ErrCertificateMismatch:  http.StatusForbidden,
	model.ErrTicketNotFound:       http.StatusForbidden,
	model.ErrDecryptionFailed:     http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code, stamped with the active trace id. Anything that is not
// an *ErrorEnvelope becomes a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok {
		ee = model.NewInternalError()
	}

	if ee.TraceID == "" {
		ee.TraceID = observability.TraceIDFromContext(r.Context())
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}
