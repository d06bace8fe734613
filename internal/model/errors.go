package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies operation failures so that callers branch on the
// category instead of inspecting message strings.
type ErrorKind int

const (
	// KindUnknown marks errors that carry no kind (infrastructure faults).
	KindUnknown ErrorKind = iota
	// KindNotFound: the referenced item, transaction or user does not exist.
	KindNotFound
	// KindUnauthorized: the acting user is not allowed to perform the operation.
	KindUnauthorized
	// KindInvalid: malformed or missing input.
	KindInvalid
	// KindConflict: the record's current state does not permit the operation.
	KindConflict
	// KindDuplicate: a uniqueness rule would be violated.
	KindDuplicate
	// KindInsufficientStock: the item's available quantity cannot cover the request.
	KindInsufficientStock
	// KindConsistency: an internal invariant would be violated. Always a bug,
	// never caused by valid external input.
	KindConsistency
)

// Error is a categorized domain error.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf extracts the ErrorKind from err, or KindUnknown if err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return newError(KindInvalid, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func Duplicate(format string, args ...any) *Error {
	return newError(KindDuplicate, format, args...)
}

func InsufficientStock(format string, args ...any) *Error {
	return newError(KindInsufficientStock, format, args...)
}

func Inconsistent(format string, args ...any) *Error {
	return newError(KindConsistency, format, args...)
}
