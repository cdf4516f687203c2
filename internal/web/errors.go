package web

// errors.go turns errors into JSON responses. The technical error is
// logged with the request ID; the client gets the core.MapError message
// and code. The status comes from the error's type.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/JonMunkholm/ispcrm/internal/logging"
	"github.com/JonMunkholm/ispcrm/internal/sheet"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
	errBadPayload   = errors.New("invalid field value: request body must be a JSON object")
	errBadMonth     = errors.New("invalid field value: month must be 0-11")
)

// statusFor picks the HTTP status of err.
func statusFor(err error) int {
	var (
		malformed  *sheet.MalformedInputError
		scope      *core.InvalidScopeError
		unknown    *core.UnknownEntityError
		notFound   *core.NotFoundError
		validation *core.ValidationError
		maxBytes   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &malformed), errors.Is(err, sheet.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.As(err, &scope), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, errNoFile), errors.Is(err, errBadPayload), errors.Is(err, errBadMonth):
		return http.StatusBadRequest
	case errors.As(err, &unknown), errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, errFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	respondMessage(w, status, msg)
}

func respondMessage(w http.ResponseWriter, status int, msg core.UserMessage) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
