package quantize

import (
	"errors"
	"fmt"
)

// ErrorKind classifies quantization failures.
type ErrorKind string

const (
	// KindConfiguration covers unknown colorspaces or metrics, missing value
	// ranges and out-of-range settings. Raised by New, before any image is read.
	KindConfiguration ErrorKind = "configuration"

	// KindValidation covers unusable input images.
	KindValidation ErrorKind = "validation"

	// KindComputation covers broken internal invariants, which in practice
	// means a user metric that does not return 0 for identical colors.
	KindComputation ErrorKind = "computation"
)

// Error is the error type returned by this package.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err, or any error it wraps, is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var qerr *Error
	if errors.As(err, &qerr) {
		return qerr.Kind == kind
	}
	return false
}

func configError(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func computationError(format string, args ...any) *Error {
	return &Error{Kind: KindComputation, Message: fmt.Sprintf(format, args...)}
}
