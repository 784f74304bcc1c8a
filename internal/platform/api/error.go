package api

import (
	"net/http"
)

// Error codes shared by the progress surfaces. Clients match on these, not
// on messages.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeAuthMissing     = "AUTH_MISSING"
	CodeAuthInvalid     = "AUTH_INVALID"
	CodeMissingID       = "MISSING_ID"
	CodeInvalidPayload  = "INVALID_PAYLOAD"
	CodeInvalidInterval = "INVALID_INTERVAL"
	CodeNotReady        = "NOT_READY"
	CodeInternal        = "INTERNAL"
)

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message, requestID string, details map[string]any) {
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message, Details: details, RequestID: requestID}})
}

func BadRequest(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusBadRequest, code, message, requestID, details)
}

func Unauthorized(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusUnauthorized, code, message, requestID, nil)
}

func Unavailable(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusServiceUnavailable, code, message, requestID, nil)
}

// Internal hides the cause; handlers log it with the request id instead.
func Internal(w http.ResponseWriter, requestID string) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error", requestID, nil)
}
