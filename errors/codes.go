package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: network timeouts, bus disconnects.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: unknown provider, invalid configuration, expired request.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates admission refusals driven by limits.
	// Examples: rate limiting, exhausted budget, full queue, open breaker.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	// Examples: storage write failures, recovered panics.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for common failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout     ErrorCode = "TIMEOUT"     // Operation timed out
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Service temporarily unavailable
	ErrCodeNetworkErr  ErrorCode = "NETWORK_ERR" // Network connectivity issue
	ErrCodeBusFailure  ErrorCode = "BUS_FAILURE" // Message bus publish/subscribe failed

	// Permanent errors
	ErrCodeNotRegistered  ErrorCode = "PROVIDER_NOT_REGISTERED" // Provider unknown to the manager
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"               // Resource does not exist
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"           // Malformed or invalid input
	ErrCodeInvalidConfig  ErrorCode = "INVALID_CONFIG"          // Configuration rejected
	ErrCodeRequestExpired ErrorCode = "REQUEST_EXPIRED"         // Queued request aged out
	ErrCodeCanceled       ErrorCode = "CANCELED"                // Operation was canceled

	// Resource errors
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"    // Window exhausted, request queued
	ErrCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED" // Spend allowance exhausted
	ErrCodeQueueFull      ErrorCode = "QUEUE_FULL"      // Queue at capacity
	ErrCodeCircuitOpen    ErrorCode = "CIRCUIT_OPEN"    // Breaker refusing traffic

	// Internal errors
	ErrCodeInternal       ErrorCode = "INTERNAL"        // Unexpected internal error
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE" // Usage store operation failed
	ErrCodePanic          ErrorCode = "PANIC"           // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	// Transient
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeNetworkErr, ErrCodeBusFailure:
		return CategoryTransient

	// Permanent
	case ErrCodeNotRegistered, ErrCodeNotFound, ErrCodeInvalidInput,
		ErrCodeInvalidConfig, ErrCodeRequestExpired, ErrCodeCanceled:
		return CategoryPermanent

	// Resource
	case ErrCodeRateLimited, ErrCodeBudgetExceeded, ErrCodeQueueFull, ErrCodeCircuitOpen:
		return CategoryResource

	// Internal
	case ErrCodeInternal, ErrCodeStorageFailure, ErrCodePanic:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	// Budget exhaustion only clears when an operator raises the
	// allowance or the period rolls over, so automatic retries are
	// pointless despite the resource category.
	if c == ErrCodeBudgetExceeded {
		return false
	}
	return c.DefaultCategory().IsRetryable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:        "operation timed out",
	ErrCodeUnavailable:    "service temporarily unavailable",
	ErrCodeNetworkErr:     "network connectivity error",
	ErrCodeBusFailure:     "message bus failure",
	ErrCodeNotRegistered:  "provider not registered",
	ErrCodeNotFound:       "resource not found",
	ErrCodeInvalidInput:   "invalid input provided",
	ErrCodeInvalidConfig:  "invalid configuration",
	ErrCodeRequestExpired: "queued request expired",
	ErrCodeCanceled:       "operation canceled",
	ErrCodeRateLimited:    "rate limit exceeded",
	ErrCodeBudgetExceeded: "budget exceeded",
	ErrCodeQueueFull:      "request queue is full",
	ErrCodeCircuitOpen:    "circuit breaker is open",
	ErrCodeInternal:       "internal error",
	ErrCodeStorageFailure: "storage operation failed",
	ErrCodePanic:          "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
