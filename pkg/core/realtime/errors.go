package realtime

import (
	"fmt"
)

// ErrorKind categorizes session errors.
type ErrorKind string

const (
	// ErrMediaAccess means the microphone is unavailable or access was
	// denied. Fatal to session start, user-correctable.
	ErrMediaAccess ErrorKind = "media_access_error"
	// ErrSignaling means the remote signaling endpoint rejected the
	// offer/answer exchange.
	ErrSignaling ErrorKind = "signaling_error"
	// ErrNegotiationTimeout means ICE candidate gathering or the signaling
	// exchange never completed within the configured window.
	ErrNegotiationTimeout ErrorKind = "negotiation_timeout"
	// ErrConnectivityLost means the transport closed unexpectedly
	// mid-session, as opposed to a user-initiated end.
	ErrConnectivityLost ErrorKind = "connectivity_lost"
)

// Error is a session error with a stable kind for callers to switch on.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.cause }

// NewMediaAccessError wraps a microphone acquisition failure.
func NewMediaAccessError(cause error) *Error {
	return &Error{Kind: ErrMediaAccess, Message: "microphone unavailable", cause: cause}
}

// NewSignalingError reports a rejected signaling exchange. The message is
// surfaced verbatim when the endpoint supplied one.
func NewSignalingError(message string) *Error {
	return &Error{Kind: ErrSignaling, Message: message}
}

// NewNegotiationTimeout reports that candidate gathering or the signaling
// exchange exceeded its deadline.
func NewNegotiationTimeout(message string) *Error {
	return &Error{Kind: ErrNegotiationTimeout, Message: message}
}

// NewConnectivityLost reports an unexpected mid-session transport close.
func NewConnectivityLost(cause error) *Error {
	return &Error{Kind: ErrConnectivityLost, Message: "connection lost", cause: cause}
}

// AsError coerces err into a *Error, wrapping unknown errors as the given
// kind so callers always observe the session taxonomy.
func AsError(err error, fallback ErrorKind) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: fallback, Message: err.Error()}
}
