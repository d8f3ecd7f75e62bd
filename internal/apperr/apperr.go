// Package apperr defines the error taxonomy shared by the services and the
// HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidOrExpiredCode
	KindInvalidToken
	KindDelivery
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindInvalidOrExpiredCode:
		return "invalid_or_expired_code"
	case KindInvalidToken:
		return "invalid_token"
	case KindDelivery:
		return "delivery_error"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal_error"
	}
}

// Status is the HTTP status the boundary answers with for this kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidOrExpiredCode:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidToken, KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is a caller-facing failure. Message is safe to show to clients;
// Err carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func InvalidOrExpiredCode() *Error {
	return &Error{Kind: KindInvalidOrExpiredCode, Message: "otp code is invalid or expired"}
}

func InvalidToken(err error) *Error {
	return &Error{Kind: KindInvalidToken, Message: "token is invalid or expired", Err: err}
}

func Delivery(err error) *Error {
	return &Error{Kind: KindDelivery, Message: "failed to send otp code, please try again", Err: err}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Internal hides err from the client behind a generic message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf reports the kind of err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
