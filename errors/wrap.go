package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a GateError, it wraps it with the new message.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	// If it's already a GateError, preserve its properties
	var gateErr *Error
	if errors.As(err, &gateErr) {
		wrapped := &Error{
			code:       gateErr.code,
			category:   gateErr.category,
			message:    message,
			cause:      err,
			metadata:   gateErr.Metadata(),
			retryable:  gateErr.retryable,
			agentID:    gateErr.agentID,
			providerID: gateErr.providerID,
			requestID:  gateErr.requestID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	// Check for context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	// Default to internal error for unknown errors
	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsGateError attempts to extract a GateError from an error chain.
// Returns nil if no GateError is found.
func AsGateError(err error) GateError {
	var gateErr *Error
	if errors.As(err, &gateErr) {
		return gateErr
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var gateErr *Error
	if errors.As(err, &gateErr) {
		return gateErr.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var gateErr *Error
	if errors.As(err, &gateErr) {
		return gateErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	var gateErr *Error
	if errors.As(err, &gateErr) {
		return gateErr.Retryable()
	}
	// Default to not retryable for non-GateErrors
	return false
}

// IsTransient checks if the error is transient.
func IsTransient(err error) bool {
	return IsCategory(err, CategoryTransient)
}

// IsPermanent checks if the error is permanent.
func IsPermanent(err error) bool {
	return IsCategory(err, CategoryPermanent)
}

// IsResource checks if the error is resource-related.
func IsResource(err error) bool {
	return IsCategory(err, CategoryResource)
}

// IsInternal checks if the error is an internal error.
func IsInternal(err error) bool {
	return IsCategory(err, CategoryInternal)
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not a GateError.
func Code(err error) ErrorCode {
	var gateErr *Error
	if errors.As(err, &gateErr) {
		return gateErr.code
	}
	return ""
}

// Category extracts the error category from an error, if available.
// Returns empty string if err is not a GateError.
func Category(err error) ErrorCategory {
	var gateErr *Error
	if errors.As(err, &gateErr) {
		return gateErr.category
	}
	return ""
}

// GetMetadata extracts metadata from an error.
// Returns nil if err is not a GateError.
func GetMetadata(err error) map[string]string {
	var gateErr *Error
	if errors.As(err, &gateErr) {
		return gateErr.Metadata()
	}
	return nil
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Join combines multiple errors into a single error.
// If all errors are nil, returns nil.
// Uses errors.Join from the standard library.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
