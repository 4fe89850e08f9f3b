package apperr

import "errors"

type Code string

const (
	CodeInvalid      Code = "invalid"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodePrecondition Code = "precondition_failed"
	CodeInternal     Code = "internal"
)

// Error is the service-boundary error type. HTTP handlers and queue
// consumers map Code to their transport once; everything below the
// boundary only wraps.
type Error struct {
	Code    Code
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

func NewInvalid(msg string) error      { return &Error{Code: CodeInvalid, Message: msg} }
func NewUnauthorized(msg string) error { return &Error{Code: CodeUnauthorized, Message: msg} }
func NewForbidden(msg string) error    { return &Error{Code: CodeForbidden, Message: msg} }
func NewNotFound(msg string) error     { return &Error{Code: CodeNotFound, Message: msg} }
func NewConflict(msg string) error     { return &Error{Code: CodeConflict, Message: msg} }

// NewPrecondition flags a job whose required input is missing. Workers
// treat it as non-retryable.
func NewPrecondition(msg string) error { return &Error{Code: CodePrecondition, Message: msg} }

// NewInternal wraps an infrastructure failure that is retryable by the
// caller or by queue redelivery.
func NewInternal(msg string, err error) error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsRetryable reports whether a queue job failing with err should be
// redelivered. Unknown errors are assumed transient.
func IsRetryable(err error) bool {
	ae, ok := As(err)
	if !ok {
		return true
	}
	switch ae.Code {
	case CodeNotFound, CodePrecondition, CodeInvalid, CodeForbidden, CodeUnauthorized:
		return false
	}
	return true
}
