// Package apperr defines the error taxonomy shared by services and the HTTP layer.
//
// Services return *Error values (or wrap them); the HTTP layer translates them once
// into a status code and a flat JSON body.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindThrottle
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindThrottle:
		return "throttle"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a domain error with an explicit HTTP status chosen by the raising site.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Detail is only exposed in debug mode.
	Detail string
	// Fields are merged into the response body next to "error".
	Fields map[string]any
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// Is matches errors of the same kind and message so copies made by With and
// WithDetail still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// With returns a copy of e carrying an extra response field.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Fields = make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	cp.Fields[key] = value
	return &cp
}

// WithDetail returns a copy of e with a debug-only detail message.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

func New(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg}
}

func Validation(msg string) *Error {
	return New(KindValidation, http.StatusBadRequest, msg)
}

func NotFound(msg string) *Error {
	return New(KindNotFound, http.StatusNotFound, msg)
}

func Conflict(msg string) *Error {
	return New(KindConflict, http.StatusBadRequest, msg)
}

func Throttle(msg string) *Error {
	return New(KindThrottle, http.StatusBadRequest, msg)
}

func Unauthorized(detail string) *Error {
	return ErrAuthRequired.WithDetail(detail)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Orders
var (
	ErrChangesNotAllowed     = Conflict("changes are not allowed")
	ErrOrderNotFound         = NotFound("order not found")
	ErrDefaultAddressMissing = Validation("set a default address")
	ErrDefaultCardMissing    = Validation("set a default card")
	ErrWrongDateFormat       = Validation("wrong date format, expected DD.MM.YYYY")
	ErrWrongPage             = Validation("page must be positive")
)

// Catalog
var (
	ErrAddressNotFound = NotFound("address not found")
	ErrCardNotFound    = NotFound("card not found")
	ErrShopNotFound    = NotFound("shop not found")
	ErrObjectNotFound  = NotFound("object not found")
	ErrSectionNotFound = NotFound("not found")
	ErrNullField       = Validation("field may not be null")
	ErrCardNumber      = Validation("wrong card number length")
	ErrEmailFormat     = Validation("wrong email format")
	ErrBirthdayFormat  = Validation("wrong birthday format, expected YYYY-MM-DD")
)

// Auth and throttling
var (
	ErrAttemptsExceeded = Throttle("attempts exceeded")
	ErrTimeout          = Throttle("sms can be sent again in a minute")
	ErrCodeExpired      = Throttle("code has expired")
	ErrWrongCode        = Throttle("wrong sms code")
	ErrAuthRequired     = New(KindUnauthorized, http.StatusUnauthorized, "auth required")
	ErrSessionNotFound  = NotFound("session not found")
)
