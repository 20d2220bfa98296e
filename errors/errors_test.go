package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

// ============================================================================
// 1. Error creation with different codes/categories
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		message      string
		wantCategory ErrorCategory
	}{
		{"timeout", ErrCodeTimeout, "operation timed out", CategoryTransient},
		{"not_registered", ErrCodeNotRegistered, "provider unknown", CategoryPermanent},
		{"rate_limited", ErrCodeRateLimited, "too many requests", CategoryResource},
		{"circuit_open", ErrCodeCircuitOpen, "breaker refusing traffic", CategoryResource},
		{"budget_exceeded", ErrCodeBudgetExceeded, "allowance spent", CategoryResource},
		{"internal", ErrCodeInternal, "internal error", CategoryInternal},
		{"storage", ErrCodeStorageFailure, "insert failed", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
			if err.Timestamp().IsZero() {
				t.Error("Timestamp() should not be zero")
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeNotRegistered, "provider %s not registered", "anthropic")
	want := "provider anthropic not registered"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestFromCode(t *testing.T) {
	err := FromCode(ErrCodeTimeout)
	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeTimeout)
	}
	// Should use the default description
	if err.Error() != "operation timed out" {
		t.Errorf("Error() = %v, want %v", err.Error(), "operation timed out")
	}
}

func TestFromCodeWithOptions(t *testing.T) {
	err := FromCode(ErrCodeQueueFull, WithMetadata("queue_size", "100"))
	if err.Metadata()["queue_size"] != "100" {
		t.Error("expected metadata 'queue_size' to be '100'")
	}
}

// ============================================================================
// 2. Retryable vs non-retryable errors
// ============================================================================

func TestRetryable(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		wantRetry bool
	}{
		{"timeout is retryable", ErrCodeTimeout, true},
		{"unavailable is retryable", ErrCodeUnavailable, true},
		{"bus_failure is retryable", ErrCodeBusFailure, true},
		{"rate_limited is retryable", ErrCodeRateLimited, true},
		{"circuit_open is retryable", ErrCodeCircuitOpen, true},
		{"queue_full is retryable", ErrCodeQueueFull, true},
		{"budget_exceeded is not retryable", ErrCodeBudgetExceeded, false},
		{"not_registered is not retryable", ErrCodeNotRegistered, false},
		{"invalid_input is not retryable", ErrCodeInvalidInput, false},
		{"request_expired is not retryable", ErrCodeRequestExpired, false},
		{"internal is not retryable", ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "test")
			if err.Retryable() != tt.wantRetry {
				t.Errorf("Retryable() = %v, want %v", err.Retryable(), tt.wantRetry)
			}
		})
	}
}

func TestWithRetryableOverride(t *testing.T) {
	// Override a normally retryable error to be non-retryable
	err := New(ErrCodeTimeout, "permanent timeout", WithRetryable(false))
	if err.Retryable() {
		t.Error("expected error to be non-retryable after override")
	}

	// Override a normally non-retryable error to be retryable
	err2 := New(ErrCodeNotRegistered, "maybe retry", WithRetryable(true))
	if !err2.Retryable() {
		t.Error("expected error to be retryable after override")
	}
}

func TestErrorCategoryIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		retryable bool
	}{
		{CategoryTransient, true},
		{CategoryResource, true},
		{CategoryPermanent, false},
		{CategoryInternal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if tt.category.IsRetryable() != tt.retryable {
				t.Errorf("%s.IsRetryable() = %v, want %v", tt.category, tt.category.IsRetryable(), tt.retryable)
			}
		})
	}
}

// ============================================================================
// 3. Metadata handling
// ============================================================================

func TestMetadata(t *testing.T) {
	err := New(ErrCodeInternal, "test",
		WithMetadata("key1", "value1"),
		WithMetadata("key2", "value2"),
	)

	meta := err.Metadata()
	if meta["key1"] != "value1" || meta["key2"] != "value2" {
		t.Errorf("Metadata() = %v, want key1=value1, key2=value2", meta)
	}
}

func TestWithMetadataMap(t *testing.T) {
	m := map[string]string{"a": "1", "b": "2"}
	err := New(ErrCodeInternal, "test", WithMetadataMap(m))

	meta := err.Metadata()
	if meta["a"] != "1" || meta["b"] != "2" {
		t.Errorf("Metadata() = %v, want a=1, b=2", meta)
	}
}

func TestMetadataImmutability(t *testing.T) {
	err := New(ErrCodeInternal, "test", WithMetadata("original", "value"))

	meta := err.Metadata()
	meta["injected"] = "evil"

	// Original should not be modified
	if err.Metadata()["injected"] != "" {
		t.Error("Metadata() should return a copy, not the original map")
	}
}

func TestNilMetadata(t *testing.T) {
	err := New(ErrCodeInternal, "test")
	meta := err.Metadata()
	if meta == nil {
		t.Error("Metadata() should return empty map, not nil")
	}
	if len(meta) != 0 {
		t.Errorf("Metadata() should be empty, got %v", meta)
	}
}

// ============================================================================
// 4. Error wrapping and unwrapping
// ============================================================================

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("original error")
	err := Wrap(cause, "wrapped message")

	if err.Error() != "wrapped message: original error" {
		t.Errorf("Error() = %v, want 'wrapped message: original error'", err.Error())
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return original error")
	}
	// Should default to internal for unknown errors
	if err.Code() != ErrCodeInternal {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeInternal)
	}
}

func TestWrapNil(t *testing.T) {
	err := Wrap(nil, "message")
	if err != nil {
		t.Error("Wrap(nil, ...) should return nil")
	}
}

func TestWrapGateError(t *testing.T) {
	original := New(ErrCodeCircuitOpen, "breaker open",
		WithMetadata("state", "open"),
		WithAgentID("agent-1"),
		WithProviderID("anthropic"),
		WithRequestID("req-1"),
	)
	wrapped := Wrap(original, "operation failed")

	// Should preserve properties
	if wrapped.Code() != ErrCodeCircuitOpen {
		t.Errorf("wrapped.Code() = %v, want %v", wrapped.Code(), ErrCodeCircuitOpen)
	}
	if wrapped.Metadata()["state"] != "open" {
		t.Error("wrapped error should preserve metadata")
	}
	if wrapped.AgentID() != "agent-1" {
		t.Error("wrapped error should preserve agent ID")
	}
	if wrapped.ProviderID() != "anthropic" {
		t.Error("wrapped error should preserve provider ID")
	}
	if wrapped.RequestID() != "req-1" {
		t.Error("wrapped error should preserve request ID")
	}
	if !errors.Is(wrapped, original) {
		t.Error("wrapped error should be 'Is' original")
	}
}

func TestWrapf(t *testing.T) {
	cause := fmt.Errorf("db error")
	err := Wrapf(cause, "failed to record usage for %s", "openai")

	if err.Error() != "failed to record usage for openai: db error" {
		t.Errorf("Error() = %v", err.Error())
	}
}

func TestWrapWithCode(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := WrapWithCode(cause, ErrCodeStorageFailure, "usage insert failed")

	if err.Code() != ErrCodeStorageFailure {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeStorageFailure)
	}
}

func TestWrapWithCodeNil(t *testing.T) {
	err := WrapWithCode(nil, ErrCodeInternal, "message")
	if err != nil {
		t.Error("WrapWithCode(nil, ...) should return nil")
	}
}

func TestWithCause(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := New(ErrCodeInternal, "wrapper", WithCause(cause))

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return cause set via WithCause")
	}
}

// ============================================================================
// 5. JSON serialization/deserialization roundtrip
// ============================================================================

func TestJSONRoundtrip(t *testing.T) {
	ts := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	original := New(ErrCodeCircuitOpen, "breaker refusing traffic",
		WithMetadata("failure_count", "5"),
		WithAgentID("agent-1"),
		WithProviderID("anthropic"),
		WithRequestID("req-42"),
		WithTimestamp(ts),
		WithRetryable(false),
	)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var restored Error
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if restored.Code() != original.Code() {
		t.Errorf("Code mismatch: %v vs %v", restored.Code(), original.Code())
	}
	if restored.Category() != original.Category() {
		t.Errorf("Category mismatch: %v vs %v", restored.Category(), original.Category())
	}
	if restored.Error() != original.message { // note: no cause after roundtrip
		t.Errorf("Message mismatch: %v vs %v", restored.Error(), original.message)
	}
	if restored.AgentID() != original.AgentID() {
		t.Errorf("AgentID mismatch: %v vs %v", restored.AgentID(), original.AgentID())
	}
	if restored.ProviderID() != original.ProviderID() {
		t.Errorf("ProviderID mismatch: %v vs %v", restored.ProviderID(), original.ProviderID())
	}
	if restored.RequestID() != original.RequestID() {
		t.Errorf("RequestID mismatch: %v vs %v", restored.RequestID(), original.RequestID())
	}
	if restored.Retryable() != original.Retryable() {
		t.Errorf("Retryable mismatch: %v vs %v", restored.Retryable(), original.Retryable())
	}
	if restored.Metadata()["failure_count"] != "5" {
		t.Error("Metadata not preserved")
	}
	if !restored.Timestamp().Equal(ts) {
		t.Errorf("Timestamp mismatch: %v vs %v", restored.Timestamp(), ts)
	}
}

func TestJSONWithCause(t *testing.T) {
	cause := fmt.Errorf("underlying issue")
	err := New(ErrCodeInternal, "wrapper", WithCause(cause))

	data, _ := json.Marshal(err)

	var j map[string]interface{}
	json.Unmarshal(data, &j)

	if j["cause"] != "underlying issue" {
		t.Errorf("cause should be serialized: %v", j["cause"])
	}
}

func TestJSONUnmarshalWithCause(t *testing.T) {
	jsonStr := `{"code":"INTERNAL","category":"internal","message":"test","cause":"original error"}`

	var err Error
	if e := json.Unmarshal([]byte(jsonStr), &err); e != nil {
		t.Fatalf("Unmarshal failed: %v", e)
	}

	if err.Unwrap() == nil {
		t.Error("Unwrap() should return reconstructed cause")
	}
	if err.Unwrap().Error() != "original error" {
		t.Errorf("Unwrap().Error() = %v, want 'original error'", err.Unwrap().Error())
	}
}

func TestJSONWithoutTimestamp(t *testing.T) {
	jsonStr := `{"code":"PROVIDER_NOT_REGISTERED","category":"permanent","message":"test"}`

	var err Error
	if e := json.Unmarshal([]byte(jsonStr), &err); e != nil {
		t.Fatalf("Unmarshal failed: %v", e)
	}

	if !err.Timestamp().IsZero() {
		t.Error("Timestamp should be zero when not in JSON")
	}
}

// ============================================================================
// 6. Inspection helpers (Is, IsCategory, IsRetryable, etc.)
// ============================================================================

func TestIs(t *testing.T) {
	err := New(ErrCodeNotRegistered, "not registered")

	if !Is(err, ErrCodeNotRegistered) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, ErrCodeTimeout) {
		t.Error("Is() should return false for non-matching code")
	}
}

func TestIsWithWrappedError(t *testing.T) {
	original := New(ErrCodeQueueFull, "queue full")
	wrapped := fmt.Errorf("context: %w", original)

	if !Is(wrapped, ErrCodeQueueFull) {
		t.Error("Is() should find code in wrapped error")
	}
}

func TestIsWithNonGateError(t *testing.T) {
	err := fmt.Errorf("regular error")
	if Is(err, ErrCodeInternal) {
		t.Error("Is() should return false for non-GateError")
	}
}

func TestIsCategory(t *testing.T) {
	err := New(ErrCodeTimeout, "timeout")

	if !IsCategory(err, CategoryTransient) {
		t.Error("IsCategory() should match")
	}
	if IsCategory(err, CategoryPermanent) {
		t.Error("IsCategory() should not match wrong category")
	}
}

func TestIsCategoryNonGateError(t *testing.T) {
	err := fmt.Errorf("regular error")
	if IsCategory(err, CategoryInternal) {
		t.Error("IsCategory() should return false for non-GateError")
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := New(ErrCodeTimeout, "timeout")
	nonRetryable := New(ErrCodeNotRegistered, "not registered")

	if !IsRetryable(retryable) {
		t.Error("IsRetryable() should return true for retryable error")
	}
	if IsRetryable(nonRetryable) {
		t.Error("IsRetryable() should return false for non-retryable error")
	}
}

func TestIsRetryableNonGateError(t *testing.T) {
	err := fmt.Errorf("regular error")
	if IsRetryable(err) {
		t.Error("IsRetryable() should return false for non-GateError")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(New(ErrCodeTimeout, "timeout")) {
		t.Error("IsTransient() should return true")
	}
	if IsTransient(New(ErrCodeNotRegistered, "not registered")) {
		t.Error("IsTransient() should return false")
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(New(ErrCodeNotRegistered, "not registered")) {
		t.Error("IsPermanent() should return true")
	}
	if IsPermanent(New(ErrCodeTimeout, "timeout")) {
		t.Error("IsPermanent() should return false")
	}
}

func TestIsResource(t *testing.T) {
	if !IsResource(New(ErrCodeRateLimited, "rate limited")) {
		t.Error("IsResource() should return true")
	}
	if IsResource(New(ErrCodeNotRegistered, "not registered")) {
		t.Error("IsResource() should return false")
	}
}

func TestIsInternal(t *testing.T) {
	if !IsInternal(New(ErrCodeInternal, "internal")) {
		t.Error("IsInternal() should return true")
	}
	if IsInternal(New(ErrCodeNotRegistered, "not registered")) {
		t.Error("IsInternal() should return false")
	}
}

func TestCode(t *testing.T) {
	err := New(ErrCodeTimeout, "timeout")
	if Code(err) != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", Code(err), ErrCodeTimeout)
	}
}

func TestCodeNonGateError(t *testing.T) {
	err := fmt.Errorf("regular error")
	if Code(err) != "" {
		t.Errorf("Code() should return empty string for non-GateError")
	}
}

func TestCategoryExtract(t *testing.T) {
	err := New(ErrCodeTimeout, "timeout")
	if Category(err) != CategoryTransient {
		t.Errorf("Category() = %v, want %v", Category(err), CategoryTransient)
	}
}

func TestCategoryExtractNonGateError(t *testing.T) {
	err := fmt.Errorf("regular error")
	if Category(err) != "" {
		t.Errorf("Category() should return empty string for non-GateError")
	}
}

func TestGetMetadata(t *testing.T) {
	err := New(ErrCodeInternal, "test", WithMetadata("key", "value"))
	meta := GetMetadata(err)
	if meta["key"] != "value" {
		t.Error("GetMetadata() should return metadata")
	}
}

func TestGetMetadataNonGateError(t *testing.T) {
	err := fmt.Errorf("regular error")
	if GetMetadata(err) != nil {
		t.Error("GetMetadata() should return nil for non-GateError")
	}
}

func TestAsGateError(t *testing.T) {
	gateErr := New(ErrCodeTimeout, "timeout")
	wrapped := fmt.Errorf("wrapped: %w", gateErr)

	extracted := AsGateError(wrapped)
	if extracted == nil {
		t.Error("AsGateError() should extract GateError from wrapped")
	}
	if extracted.Code() != ErrCodeTimeout {
		t.Errorf("extracted.Code() = %v, want %v", extracted.Code(), ErrCodeTimeout)
	}
}

func TestAsGateErrorNonGate(t *testing.T) {
	err := fmt.Errorf("regular error")
	if AsGateError(err) != nil {
		t.Error("AsGateError() should return nil for non-GateError")
	}
}

// ============================================================================
// 7. Convenience constructors (NotRegistered, CircuitOpen, etc.)
// ============================================================================

func TestNotRegistered(t *testing.T) {
	err := NotRegistered("anthropic")
	if err.Code() != ErrCodeNotRegistered {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeNotRegistered)
	}
	if err.ProviderID() != "anthropic" {
		t.Errorf("ProviderID() = %v, want 'anthropic'", err.ProviderID())
	}
	if err.Error() != "anthropic not registered" {
		t.Errorf("Error() = %v", err.Error())
	}
	if err.Retryable() {
		t.Error("not registered should not be retryable")
	}
}

func TestCircuitOpenError(t *testing.T) {
	err := CircuitOpen("openai")
	if err.Code() != ErrCodeCircuitOpen {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeCircuitOpen)
	}
	if err.Error() != "Circuit breaker open for openai" {
		t.Errorf("Error() = %v", err.Error())
	}
	if !err.Retryable() {
		t.Error("circuit open should be retryable after backoff")
	}
}

func TestBudgetExceededError(t *testing.T) {
	err := BudgetExceeded("Budget exceeded: $0.50 needed, $0.10 remaining")
	if err.Code() != ErrCodeBudgetExceeded {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeBudgetExceeded)
	}
	if err.Category() != CategoryResource {
		t.Errorf("Category() = %v, want %v", err.Category(), CategoryResource)
	}
	if err.Retryable() {
		t.Error("budget exceeded should not be retryable")
	}
}

func TestRateLimitedError(t *testing.T) {
	err := RateLimited("anthropic", "req-7")
	if err.Code() != ErrCodeRateLimited {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeRateLimited)
	}
	if err.ProviderID() != "anthropic" {
		t.Errorf("ProviderID() = %v, want 'anthropic'", err.ProviderID())
	}
	if err.RequestID() != "req-7" {
		t.Errorf("RequestID() = %v, want 'req-7'", err.RequestID())
	}
	if !err.Retryable() {
		t.Error("rate limited should be retryable")
	}
}

func TestQueueFullError(t *testing.T) {
	err := QueueFull("openai")
	if err.Code() != ErrCodeQueueFull {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeQueueFull)
	}
	if err.Error() != "Queue is full" {
		t.Errorf("Error() = %v", err.Error())
	}
}

func TestRequestExpiredError(t *testing.T) {
	err := RequestExpired("req-9")
	if err.Code() != ErrCodeRequestExpired {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeRequestExpired)
	}
	if err.RequestID() != "req-9" {
		t.Errorf("RequestID() = %v, want 'req-9'", err.RequestID())
	}
	if err.Retryable() {
		t.Error("request expired should not be retryable")
	}
}

func TestInvalidConfigError(t *testing.T) {
	err := InvalidConfig("max queue size must be positive")
	if err.Code() != ErrCodeInvalidConfig {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeInvalidConfig)
	}
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("missing provider id")
	if err.Code() != ErrCodeInvalidInput {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeInvalidInput)
	}
}

func TestTimeout(t *testing.T) {
	err := Timeout("operation timed out")
	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeTimeout)
	}
	if err.Category() != CategoryTransient {
		t.Errorf("Category() = %v, want %v", err.Category(), CategoryTransient)
	}
}

func TestInternal(t *testing.T) {
	err := Internal("unexpected error")
	if err.Code() != ErrCodeInternal {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeInternal)
	}
}

func TestStorageFailureError(t *testing.T) {
	err := StorageFailure("insert usage sample failed")
	if err.Code() != ErrCodeStorageFailure {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeStorageFailure)
	}
	if err.Retryable() {
		t.Error("storage failure should not be retryable")
	}
}

func TestBusFailureError(t *testing.T) {
	err := BusFailure("publish failed")
	if err.Code() != ErrCodeBusFailure {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeBusFailure)
	}
	if !err.Retryable() {
		t.Error("bus failure should be retryable")
	}
}

func TestConvenienceWithOptions(t *testing.T) {
	err := CircuitOpen("anthropic", WithMetadata("failure_count", "3"), WithAgentID("agent-1"))
	if err.Metadata()["failure_count"] != "3" {
		t.Error("convenience constructor should accept options")
	}
	if err.AgentID() != "agent-1" {
		t.Error("convenience constructor should apply agent ID option")
	}
	if err.ProviderID() != "anthropic" {
		t.Error("convenience constructor should keep provider ID")
	}
}

// ============================================================================
// 8. Panic recovery
// ============================================================================

func TestRecoverPanicWithError(t *testing.T) {
	err := RecoverPanic(fmt.Errorf("panic error"))
	if err == nil {
		t.Fatal("RecoverPanic() should return error")
	}
	if err.Code() != ErrCodePanic {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodePanic)
	}
	if err.Error() != "panic error" {
		t.Errorf("Error() = %v", err.Error())
	}
	if err.Metadata()["panic_value"] != "*errors.errorString" {
		t.Errorf("panic_value metadata = %v", err.Metadata()["panic_value"])
	}
}

func TestRecoverPanicWithString(t *testing.T) {
	err := RecoverPanic("something went wrong")
	if err.Error() != "something went wrong" {
		t.Errorf("Error() = %v", err.Error())
	}
	if err.Metadata()["panic_value"] != "string" {
		t.Errorf("panic_value metadata = %v", err.Metadata()["panic_value"])
	}
}

func TestRecoverPanicWithOtherType(t *testing.T) {
	err := RecoverPanic(42)
	if err.Error() != "42" {
		t.Errorf("Error() = %v", err.Error())
	}
	if err.Metadata()["panic_value"] != "int" {
		t.Errorf("panic_value metadata = %v", err.Metadata()["panic_value"])
	}
}

func TestRecoverPanicWithNil(t *testing.T) {
	err := RecoverPanic(nil)
	if err != nil {
		t.Error("RecoverPanic(nil) should return nil")
	}
}

func TestRecoverPanicIntegration(t *testing.T) {
	var recovered *Error

	func() {
		defer func() {
			if r := recover(); r != nil {
				recovered = RecoverPanic(r)
			}
		}()
		panic("test panic")
	}()

	if recovered == nil {
		t.Fatal("should have recovered panic")
	}
	if recovered.Code() != ErrCodePanic {
		t.Errorf("Code() = %v, want %v", recovered.Code(), ErrCodePanic)
	}
}

// ============================================================================
// 9. Context error detection (deadline exceeded, canceled)
// ============================================================================

func TestWrapContextDeadlineExceeded(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, "operation timed out")

	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeTimeout)
	}
	if !errors.Is(err.Unwrap(), context.DeadlineExceeded) {
		t.Error("should preserve original context error")
	}
}

func TestWrapContextCanceled(t *testing.T) {
	err := Wrap(context.Canceled, "operation canceled")

	if err.Code() != ErrCodeCanceled {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeCanceled)
	}
	if !errors.Is(err.Unwrap(), context.Canceled) {
		t.Error("should preserve original context error")
	}
}

func TestWrapWrappedContextError(t *testing.T) {
	wrapped := fmt.Errorf("inner: %w", context.DeadlineExceeded)
	err := Wrap(wrapped, "outer context")

	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v for wrapped context.DeadlineExceeded", err.Code(), ErrCodeTimeout)
	}
}

// ============================================================================
// 10. Error chain inspection
// ============================================================================

func TestCause(t *testing.T) {
	root := fmt.Errorf("root cause")
	middle := fmt.Errorf("middle: %w", root)
	outer := fmt.Errorf("outer: %w", middle)

	cause := Cause(outer)
	if cause != root {
		t.Errorf("Cause() = %v, want root cause", cause)
	}
}

func TestCauseNoChain(t *testing.T) {
	err := fmt.Errorf("single error")
	cause := Cause(err)
	if cause != err {
		t.Error("Cause() should return same error if no chain")
	}
}

func TestCauseWithGateError(t *testing.T) {
	root := fmt.Errorf("database error")
	gateErr := New(ErrCodeStorageFailure, "operation failed", WithCause(root))

	cause := Cause(gateErr)
	if cause != root {
		t.Error("Cause() should find root through GateError")
	}
}

func TestJoin(t *testing.T) {
	err1 := New(ErrCodeTimeout, "timeout 1")
	err2 := New(ErrCodeNotRegistered, "not registered")

	joined := Join(err1, err2)
	if joined == nil {
		t.Fatal("Join() should return error")
	}
	if !errors.Is(joined, err1) || !errors.Is(joined, err2) {
		t.Error("joined error should contain both errors")
	}
}

func TestJoinAllNil(t *testing.T) {
	joined := Join(nil, nil, nil)
	if joined != nil {
		t.Error("Join() with all nils should return nil")
	}
}

// ============================================================================
// Additional edge cases and coverage
// ============================================================================

func TestErrorCodeString(t *testing.T) {
	code := ErrCodeTimeout
	if code.String() != "TIMEOUT" {
		t.Errorf("String() = %v, want TIMEOUT", code.String())
	}
}

func TestErrorCategoryString(t *testing.T) {
	cat := CategoryTransient
	if cat.String() != "transient" {
		t.Errorf("String() = %v, want transient", cat.String())
	}
}

func TestErrorCodeDefaultRetryable(t *testing.T) {
	if !ErrCodeTimeout.DefaultRetryable() {
		t.Error("Timeout should be default retryable")
	}
	if ErrCodeNotRegistered.DefaultRetryable() {
		t.Error("NotRegistered should not be default retryable")
	}
	if ErrCodeBudgetExceeded.DefaultRetryable() {
		t.Error("BudgetExceeded should not be default retryable")
	}
}

func TestErrorCodeDescription(t *testing.T) {
	if ErrCodeTimeout.Description() != "operation timed out" {
		t.Errorf("Description() = %v", ErrCodeTimeout.Description())
	}
}

func TestErrorCodeDescriptionUnknown(t *testing.T) {
	unknown := ErrorCode("UNKNOWN_CODE")
	if unknown.Description() != "unknown error" {
		t.Errorf("Description() = %v, want 'unknown error'", unknown.Description())
	}
}

func TestErrorCodeDefaultCategoryUnknown(t *testing.T) {
	unknown := ErrorCode("UNKNOWN_CODE")
	if unknown.DefaultCategory() != CategoryInternal {
		t.Errorf("DefaultCategory() = %v, want CategoryInternal", unknown.DefaultCategory())
	}
}

func TestWithCategory(t *testing.T) {
	// Override default category
	err := New(ErrCodeTimeout, "timeout", WithCategory(CategoryPermanent))
	if err.Category() != CategoryPermanent {
		t.Errorf("Category() = %v, want %v", err.Category(), CategoryPermanent)
	}
	if err.Retryable() {
		t.Error("overridden permanent category should not be retryable")
	}
}

func TestGateErrorInterface(t *testing.T) {
	// Ensure *Error implements GateError
	var _ GateError = New(ErrCodeInternal, "test")
}

func TestErrorWithEmptyCause(t *testing.T) {
	err := New(ErrCodeInternal, "test message")
	if err.Error() != "test message" {
		t.Errorf("Error() without cause = %v, want 'test message'", err.Error())
	}
}

func TestAllErrorCodes(t *testing.T) {
	// Test that all error codes have valid default categories
	codes := []ErrorCode{
		ErrCodeTimeout, ErrCodeUnavailable, ErrCodeNetworkErr, ErrCodeBusFailure,
		ErrCodeNotRegistered, ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeInvalidConfig,
		ErrCodeRequestExpired, ErrCodeCanceled, ErrCodeRateLimited, ErrCodeBudgetExceeded,
		ErrCodeQueueFull, ErrCodeCircuitOpen, ErrCodeInternal, ErrCodeStorageFailure,
		ErrCodePanic,
	}

	for _, code := range codes {
		cat := code.DefaultCategory()
		if cat == "" {
			t.Errorf("code %s has empty default category", code)
		}
		// All codes should have descriptions
		desc := code.Description()
		if desc == "" || desc == "unknown error" {
			t.Errorf("code %s missing description", code)
		}
	}
}

func TestMetadataMapMerge(t *testing.T) {
	// Test that multiple metadata calls merge
	err := New(ErrCodeInternal, "test",
		WithMetadata("a", "1"),
		WithMetadataMap(map[string]string{"b": "2", "c": "3"}),
		WithMetadata("d", "4"),
	)

	meta := err.Metadata()
	expected := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
	for k, v := range expected {
		if meta[k] != v {
			t.Errorf("Metadata[%s] = %v, want %v", k, meta[k], v)
		}
	}
}

func TestJSONInvalidTimestamp(t *testing.T) {
	// Invalid timestamp should be silently ignored
	jsonStr := `{"code":"INTERNAL","category":"internal","message":"test","timestamp":"invalid"}`

	var err Error
	if e := json.Unmarshal([]byte(jsonStr), &err); e != nil {
		t.Fatalf("Unmarshal failed: %v", e)
	}

	if !err.Timestamp().IsZero() {
		t.Error("invalid timestamp should result in zero time")
	}
}

func TestJSONUnmarshalError(t *testing.T) {
	invalidJSON := `{invalid json}`

	var err Error
	if e := json.Unmarshal([]byte(invalidJSON), &err); e == nil {
		t.Error("should fail on invalid JSON")
	}
}
