package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed application error carrying an HTTP-style status class,
// a stable machine code, and a human-readable message. Failures from the
// service and repository layers are surfaced to handlers unmodified.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on the error code so sentinels below can be
// compared against wrapped instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for the taxonomy. Use With/Wrap to attach context.
var (
	ErrValidation         = &Error{Status: http.StatusBadRequest, Code: "VALIDATION", Message: "invalid input"}
	ErrInvalidCredentials = &Error{Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "invalid credentials"}
	ErrUnauthorized       = &Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "unauthorized"}
	ErrNotFound           = &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrConflict           = &Error{Status: http.StatusConflict, Code: "CONFLICT", Message: "already exists"}
	ErrTokenIssuance      = &Error{Status: http.StatusInternalServerError, Code: "TOKEN_ISSUANCE", Message: "failed to issue tokens"}
	ErrInternal           = &Error{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
)

// With returns a copy of base with a more specific message.
func With(base *Error, msg string) *Error {
	return &Error{Status: base.Status, Code: base.Code, Message: msg}
}

// Withf is With with fmt-style formatting.
func Withf(base *Error, format string, args ...any) *Error {
	return With(base, fmt.Sprintf(format, args...))
}

// Wrap returns a copy of base carrying cause for errors.Is/As chains and logs.
func Wrap(base *Error, cause error) *Error {
	return &Error{Status: base.Status, Code: base.Code, Message: base.Message, Err: cause}
}

// FromError extracts the typed error, or maps unknown errors to ErrInternal.
func FromError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(ErrInternal, err)
}
