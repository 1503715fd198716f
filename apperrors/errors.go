// Package apperrors defines the four stable error kinds the compiler surfaces
// to GraphQL clients: ValidationError, ArgumentError, CodecError, and
// DatabaseError. Each exposes an Extensions() map so graphql-go's error
// formatter attaches a stable "code" to the response without a custom
// execution wrapper.
package apperrors

import "fmt"

// Code is one of the four stable error kinds.
type Code string

const (
	CodeValidation Code = "VALIDATION_ERROR"
	CodeArgument   Code = "ARGUMENT_ERROR"
	CodeCodec      Code = "CODEC_ERROR"
	CodeDatabase   Code = "DATABASE_ERROR"
)

// Error is the common shape of every apperrors type: a stable code, a
// message, and an optional wrapped cause.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the stable error code.
func (e *Error) Code() string { return string(e.code) }

// Extensions satisfies graphql-go's extension-error interface so the code
// survives into the GraphQL response's "extensions" object.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": string(e.code)}
}

// Validation wraps a static shape-check failure: missing required field,
// unknown field on an input object. Always returned before any database
// contact.
func Validation(format string, args ...interface{}) *Error {
	return &Error{code: CodeValidation, message: fmt.Sprintf(format, args...)}
}

// Argument wraps a malformed argument tree: unknown filter operator, bad
// enum variant, unsupported operator for the active dialect.
func Argument(format string, args ...interface{}) *Error {
	return &Error{code: CodeArgument, message: fmt.Sprintf(format, args...)}
}

// Codec wraps a value that could not be marshaled in either direction.
func Codec(format string, args ...interface{}) *Error {
	return &Error{code: CodeCodec, message: fmt.Sprintf(format, args...)}
}

// Database wraps an error surfaced by the executor, preserving its category.
func Database(cause error, format string, args ...interface{}) *Error {
	return &Error{code: CodeDatabase, message: fmt.Sprintf(format, args...), cause: cause}
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ae = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ae != nil && ae.code == code
}
