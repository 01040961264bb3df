// Package apperrors carries the error kinds the ledger operations return, so
// callers can tell retryable failures from terminal ones without matching on
// message strings.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation flags malformed or out-of-range input; the caller can fix
	// the request and try again.
	KindValidation
	// KindNotFound flags a missing user, referral code or request id.
	KindNotFound
	// KindConflict flags duplicate registration, self-referral, already-active
	// and already-resolved cases; surfaced, never retried.
	KindConflict
	// KindInsufficientFunds flags a withdrawal exceeding availableBalance.
	KindInsufficientFunds
	// KindExternalService flags an unreachable or failing payment provider;
	// retry is at the caller's discretion.
	KindExternalService
	// KindConsistency flags persisted state that violates a ledger invariant;
	// the enclosing transaction aborts rather than partially applying.
	KindConsistency
	// KindUnauthorized flags a missing or invalid credential.
	KindUnauthorized
)

// Error is the concrete error type returned by services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a kind and message.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func InsufficientFunds(format string, args ...interface{}) *Error {
	return New(KindInsufficientFunds, format, args...)
}

func External(err error, format string, args ...interface{}) *Error {
	return Wrap(KindExternalService, err, format, args...)
}

func Consistency(format string, args ...interface{}) *Error {
	return New(KindConsistency, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindUnauthorized, format, args...)
}

// KindOf extracts the kind from any error in the chain; KindUnknown when the
// error carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case KindExternalService:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConsistency:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
