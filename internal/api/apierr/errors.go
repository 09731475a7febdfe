package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/wordsync/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeInvalidUnit          = "INVALID_UNIT"
	CodeInvalidField         = "INVALID_FIELD"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeNoIdentity           = "NO_IDENTITY"
	CodeIdentityMismatch     = "IDENTITY_MISMATCH"
	CodeNotLoaded            = "NOT_LOADED"
	CodeInsufficientCurrency = "INSUFFICIENT_CURRENCY"
	CodeProgressionComplete  = "PROGRESSION_COMPLETE"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeMalformedDocument    = "MALFORMED_DOCUMENT"
	CodeShuttingDown         = "SHUTTING_DOWN"
	CodeTimeout              = "TIMEOUT"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Local validation
	case errors.Is(err, model.ErrInvalidToken):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidToken, "Word is empty after normalization"}}
	case errors.Is(err, model.ErrInvalidUnit):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidUnit, "Invalid content unit"}}
	case errors.Is(err, model.ErrInvalidField):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidField, err.Error()}}
	case errors.Is(err, model.ErrInvalidAmount):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidAmount, "Amount must be positive"}}
	case errors.Is(err, model.ErrInsufficientCurrency):
		return &httpError{http.StatusConflict, APIError{CodeInsufficientCurrency, "Not enough currency"}}
	case errors.Is(err, model.ErrProgressionComplete):
		return &httpError{http.StatusConflict, APIError{CodeProgressionComplete, "No further levels"}}

	// Session state
	case errors.Is(err, model.ErrNoIdentity):
		return &httpError{http.StatusUnauthorized, APIError{CodeNoIdentity, "No player is signed in"}}
	case errors.Is(err, model.ErrProgressNotLoaded):
		return &httpError{http.StatusConflict, APIError{CodeNotLoaded, "Progress has not loaded yet"}}
	case errors.Is(err, model.ErrStoreClosed):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeShuttingDown, "Server is shutting down"}}

	// Remote store
	case errors.Is(err, model.ErrPermissionDenied):
		return &httpError{http.StatusForbidden, APIError{CodePermissionDenied, "Remote store denied access"}}
	case errors.Is(err, model.ErrTransientNetwork):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeStoreUnavailable, "Remote store unavailable"}}
	case errors.Is(err, model.ErrMalformedDocument):
		return &httpError{http.StatusBadGateway, APIError{CodeMalformedDocument, "Remote document is malformed"}}
	case errors.Is(err, context.DeadlineExceeded):
		return &httpError{http.StatusGatewayTimeout, APIError{CodeTimeout, "Timed out waiting for the remote store"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewIdentityMismatchError reports a request for a player other than the signed-in one
func NewIdentityMismatchError() error {
	return &httpError{http.StatusConflict, APIError{CodeIdentityMismatch, "Request is for a different player than the signed-in one"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
