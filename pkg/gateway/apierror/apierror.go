// Package apierror maps internal errors onto the gateway's JSON error
// envelope.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
)

// APIError is the wire shape of a gateway error.
type APIError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Envelope wraps an APIError the way clients receive it.
type Envelope struct {
	Error *APIError `json:"error"`
}

// FromError converts any error into an envelope payload and HTTP status.
func FromError(err error, requestID string) (*APIError, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Type: "timeout_error", Message: "request timeout", RequestID: requestID}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &APIError{Type: "cancelled", Message: "request cancelled", RequestID: requestID}, http.StatusRequestTimeout
	}

	var sessionErr *realtime.Error
	if errors.As(err, &sessionErr) {
		return &APIError{Type: string(sessionErr.Kind), Message: sessionErr.Message, RequestID: requestID}, statusFromKind(sessionErr.Kind)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return &APIError{Type: httpErr.Type, Message: httpErr.Message, RequestID: requestID}, httpErr.Status
	}

	return &APIError{Type: "api_error", Message: err.Error(), RequestID: requestID}, http.StatusInternalServerError
}

// Write sends the envelope for err.
func Write(w http.ResponseWriter, err error, requestID string) {
	apiErr, status := FromError(err, requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: apiErr})
}

// HTTPError is an error with an explicit status, for handler-level
// validation failures.
type HTTPError struct {
	Status  int
	Type    string
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

// BadRequest builds a 400 error.
func BadRequest(message string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Type: "invalid_request_error", Message: message}
}

// NotFound builds a 404 error.
func NotFound(message string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Type: "not_found_error", Message: message}
}

// Unauthorized builds a 401 error.
func Unauthorized(message string) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Type: "authentication_error", Message: message}
}

func statusFromKind(kind realtime.ErrorKind) int {
	switch kind {
	case realtime.ErrSignaling:
		return http.StatusBadGateway
	case realtime.ErrNegotiationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
