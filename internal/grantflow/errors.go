package grantflow

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable OAuth 2.0 error code carried on the wire in the
// `error` field (RFC 6749 sections 4.1.2.1 and 5.2). The set is closed.
type Kind string

const (
	KindInvalidArgument      Kind = "invalid_argument"
	KindInvalidRequest       Kind = "invalid_request"
	KindInvalidClient        Kind = "invalid_client"
	KindUnauthorizedClient   Kind = "unauthorized_client"
	KindInvalidGrant         Kind = "invalid_grant"
	KindInvalidScope         Kind = "invalid_scope"
	KindAccessDenied         Kind = "access_denied"
	KindUnsupportedGrantType Kind = "unsupported_grant_type"
	KindUnauthorizedRequest  Kind = "unauthorized_request"
	KindInvalidToken         Kind = "invalid_token"
	KindServerError          Kind = "server_error"
)

// Error is the engine's error variant: an OAuth error code, the HTTP status it
// maps to, and a human-readable description. Components return *Error for
// every protocol failure; anything else reaching a handler is coerced to
// server_error.
type Error struct {
	kind    Kind
	status  int
	message string
	cause   error
}

func (e *Error) Error() string { return e.message }

// Kind returns the OAuth error code written to the `error` field.
func (e *Error) Kind() Kind { return e.kind }

// Status returns the HTTP status the error maps to.
func (e *Error) Status() int { return e.status }

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, status int, format string, args ...any) *Error {
	return &Error{kind: kind, status: status, message: fmt.Sprintf(format, args...)}
}

func invalidArgument(format string, args ...any) *Error {
	return newError(KindInvalidArgument, http.StatusBadRequest, format, args...)
}

func invalidRequest(format string, args ...any) *Error {
	return newError(KindInvalidRequest, http.StatusBadRequest, format, args...)
}

func invalidClient(format string, args ...any) *Error {
	return newError(KindInvalidClient, http.StatusBadRequest, format, args...)
}

func unauthorizedClient(format string, args ...any) *Error {
	return newError(KindUnauthorizedClient, http.StatusBadRequest, format, args...)
}

func invalidGrant(format string, args ...any) *Error {
	return newError(KindInvalidGrant, http.StatusBadRequest, format, args...)
}

func invalidScope(format string, args ...any) *Error {
	return newError(KindInvalidScope, http.StatusBadRequest, format, args...)
}

func accessDenied(format string, args ...any) *Error {
	return newError(KindAccessDenied, http.StatusBadRequest, format, args...)
}

func unsupportedGrantType(format string, args ...any) *Error {
	return newError(KindUnsupportedGrantType, http.StatusBadRequest, format, args...)
}

func unauthorizedRequest(format string, args ...any) *Error {
	return newError(KindUnauthorizedRequest, http.StatusUnauthorized, format, args...)
}

func invalidToken(format string, args ...any) *Error {
	return newError(KindInvalidToken, http.StatusUnauthorized, format, args...)
}

func serverErrorf(format string, args ...any) *Error {
	return newError(KindServerError, http.StatusInternalServerError, format, args...)
}

// asOAuthError coerces err into the closed taxonomy. Errors that are not
// already *Error become server_error, keeping the original message for
// diagnostics without exposing internal types to the client.
func asOAuthError(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return &Error{
		kind:    KindServerError,
		status:  http.StatusInternalServerError,
		message: err.Error(),
		cause:   err,
	}
}
