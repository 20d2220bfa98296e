// Package errors provides a structured error taxonomy for admission
// control in gatekit. It defines the error types, codes, and categories
// that let callers decide whether a refused request should be retried,
// queued behind, or abandoned.
//
// # Error Categories
//
// Errors are classified into four categories:
//
//   - Transient: Temporary failures where retry may succeed (network issues, etc.)
//   - Permanent: Failures where retry will not help (unknown provider, invalid config, etc.)
//   - Resource: Admission refusals driven by limits (rate limits, budget, full queue, open breaker)
//   - Internal: Unexpected errors indicating bugs or system failures
//
// # Error Codes
//
// Each error has a specific code that identifies the type of failure:
//
//   - PROVIDER_NOT_REGISTERED: Provider unknown to the manager
//   - CIRCUIT_OPEN: Breaker refusing traffic to the provider
//   - BUDGET_EXCEEDED: Spend allowance exhausted
//   - RATE_LIMITED: Window exhausted, request queued
//   - QUEUE_FULL: Queue at capacity
//   - And more...
//
// # Usage
//
// Create a new error:
//
//	err := errors.CircuitOpen("anthropic")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "admitting request")
//
// Check if an error is retryable:
//
//	if gateErr := errors.AsGateError(err); gateErr != nil && gateErr.Retryable() {
//	    // backoff and retry logic
//	}
//
// # JSON Serialization
//
// All errors support JSON serialization for cross-agent communication:
//
//	data, err := json.Marshal(gateErr)
//
// Errors can be deserialized back:
//
//	var gateErr errors.Error
//	json.Unmarshal(data, &gateErr)
package errors
