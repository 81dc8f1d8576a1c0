// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
)

// Kind buckets an error for transport mapping. Validation errors are
// field-scoped and map to 422; domain rule violations to 400; the rest
// follow the usual HTTP meanings.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDomainRule
	KindNotFound
	KindAuthorization
)

type Error struct {
	Kind  Kind
	Field string // set for validation errors only
	Msg   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Msg
	}
	return e.Msg
}

func Validation(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func DomainRule(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDomainRule, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Msg: fmt.Sprintf(format, args...)}
}

// KindOf unwraps err looking for an *Error; plain errors are KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// FieldOf returns the field of a validation error, empty otherwise.
func FieldOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Field
	}
	return ""
}
