package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// mapped via core.MapError to a user message with a support code. The HTTP
// status comes from the error's category, not from the handler.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  []FieldErrorEntry `json:"fields,omitempty"`
}

// FieldErrorEntry is one column-level validation failure.
type FieldErrorEntry struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Transport-level failures detected before the service is called.
var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
	errBadBody      = errors.New("invalid request body")
)

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var verrs core.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnknownKind), errors.Is(err, core.ErrUnknownFamily):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, core.ErrSequenceOverflow):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrMalformedInput), errors.Is(err, core.ErrInvalidOptions),
		errors.Is(err, errNoFile), errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error server-side and writes the
// user-facing JSON error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}

	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		for _, ve := range verrs {
			resp.Fields = append(resp.Fields, FieldErrorEntry{Field: ve.Field, Message: ve.Message})
		}
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, resp)
}
