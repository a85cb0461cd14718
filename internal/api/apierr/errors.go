package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/playeraccounts/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError. Account failures also carry the login diagnosis.
type ErrorResponse struct {
	Error     APIError              `json:"error"`
	ErrorCode string                `json:"error_code,omitempty"`
	Diagnosis *model.LoginDiagnosis `json:"diagnosis,omitempty"`
}

// Common error codes
const (
	CodeInvalidRequest          = "INVALID_REQUEST"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeNotFound                = "NOT_FOUND"
	CodeConfirmationNotAccepted = "CONFIRMATION_NOT_ACCEPTED"
	CodeInvalidPassword         = "INVALID_PASSWORD"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeLinkExpired             = "LINK_EXPIRED"
	CodeLinkRefused             = "LINK_REFUSED"
	CodeDeviceRequired          = "DEVICE_REQUIRED"
	CodeLoginFailed             = "LOGIN_FAILED"
	CodeBanned                  = "ACCOUNT_BANNED"
	CodeMaintenance             = "MAINTENANCE"
	CodeUnavailable             = "SERVICE_UNAVAILABLE"
	CodeInternalError           = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status    int
	apiError  APIError
	diagnosis *model.LoginDiagnosis
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	body := ErrorResponse{Error: he.apiError, Diagnosis: he.diagnosis}
	if he.diagnosis != nil {
		body.ErrorCode = he.diagnosis.Code
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(body)
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Request shape and state machine errors
	switch {
	case errors.Is(err, model.ErrDeviceRequired):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeDeviceRequired, "A device is required"}}
	case errors.Is(err, model.ErrConfirmationNotAccepted):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeConfirmationNotAccepted, "Confirmation code was not accepted"}}
	case errors.Is(err, model.ErrInvalidPassword):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeInvalidPassword, "New password is not valid"}}
	case errors.Is(err, model.ErrInvalidTransition):
		return &httpError{status: http.StatusConflict, apiError: APIError{CodeInvalidTransition, err.Error()}}
	case errors.Is(err, model.ErrLinkExpired):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeLinkExpired, "Link code has expired"}}
	case errors.Is(err, model.ErrHasParent), errors.Is(err, model.ErrHasSso):
		return &httpError{status: http.StatusConflict, apiError: APIError{CodeLinkRefused, err.Error()}}
	case errors.Is(err, model.ErrInvalidIdentity):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeInvalidRequest, err.Error()}}
	}

	// Everything else is explained through the login diagnosis
	d := model.DiagnoseError(err)
	switch {
	case errors.Is(err, model.ErrMaintenance):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeMaintenance, "Service is in maintenance"}, &d}
	case errors.Is(err, model.ErrAccountBanned):
		return &httpError{http.StatusForbidden, APIError{CodeBanned, "Account is banned"}, &d}
	case errors.Is(err, model.ErrTokenAuthorityUnavailable):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeUnavailable, model.MessageUnavailable}, &d}
	case errors.Is(err, model.ErrRecordNotFound), errors.Is(err, model.ErrPlayerNotFound):
		d.Message = "Account not found"
		return &httpError{http.StatusNotFound, APIError{CodeNotFound, d.Message}, &d}
	case d.IsClassified():
		return &httpError{http.StatusBadRequest, APIError{CodeLoginFailed, d.Message}, &d}
	default:
		// integrity violations land here; the detail is only logged
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}, &d}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{status: http.StatusUnauthorized, apiError: APIError{CodeUnauthorized, "Authentication required"}}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError() error {
	return &httpError{status: http.StatusForbidden, apiError: APIError{CodeForbidden, "Admin key required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{status: http.StatusInternalServerError, apiError: APIError{CodeInternalError, "Internal server error"}}
}
