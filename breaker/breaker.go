package breaker

import (
	"sync"
	"time"

	"github.com/vinayprograms/gatekit/events"
)

// State represents breaker health state.
type State string

const (
	// StateClosed passes all traffic through.
	StateClosed State = "closed"

	// StateOpen refuses traffic until the reset timeout elapses.
	StateOpen State = "open"

	// StateHalfOpen lets probes through to test recovery.
	StateHalfOpen State = "half-open"
)

// Valid returns true if the state is a known value.
func (s State) Valid() bool {
	switch s {
	case StateClosed, StateOpen, StateHalfOpen:
		return true
	default:
		return false
	}
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold opens the breaker when this many failures land
	// within FailureWindow. Default: 5
	FailureThreshold int

	// FailureWindow is the sliding window for counting failures.
	// Default: 60s
	FailureWindow time.Duration

	// ResetTimeout is how long the breaker stays open before the next
	// Allow call probes with a half-open transition. Default: 30s
	ResetTimeout time.Duration

	// SuccessThreshold closes a half-open breaker after this many
	// consecutive successes. Default: 2
	SuccessThreshold int

	// Emitter receives transition events. Optional.
	Emitter *events.Emitter
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureWindow:    time.Minute,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Status is an observable snapshot of breaker state.
type Status struct {
	// ProviderID identifies the provider this breaker guards.
	ProviderID string `json:"provider_id"`

	// State is the current breaker state.
	State State `json:"state"`

	// FailureCount is the number of failures inside the current window.
	FailureCount int `json:"failure_count"`

	// SuccessCount is the number of consecutive half-open successes.
	SuccessCount int `json:"success_count"`

	// LastFailureTime is when the most recent failure was recorded.
	// Zero if none.
	LastFailureTime time.Time `json:"last_failure_time"`

	// LastStateChange is when the breaker last changed state.
	LastStateChange time.Time `json:"last_state_change"`

	// NextRetryTime is when an open breaker will next allow a probe.
	// Zero unless open.
	NextRetryTime time.Time `json:"next_retry_time"`
}

// Breaker is a per-provider three-state health gate driven purely by
// success and failure signals and time. No operation returns an error;
// all are total over the current state.
type Breaker struct {
	providerID string
	config     Config

	mu           sync.Mutex
	state        State
	failures     []time.Time
	successCount int
	lastFailure  time.Time
	lastChange   time.Time
	nextRetry    time.Time

	nowFunc func() time.Time
}

// New creates a closed breaker for a provider.
func New(providerID string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = DefaultConfig().FailureWindow
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultConfig().SuccessThreshold
	}

	b := &Breaker{
		providerID: providerID,
		config:     cfg,
		state:      StateClosed,
		nowFunc:    time.Now,
	}
	b.lastChange = b.nowFunc()
	return b
}

// ProviderID returns the provider this breaker guards.
func (b *Breaker) ProviderID() string {
	return b.providerID
}

// Allow reports whether a request may proceed. An open breaker whose
// reset timeout has elapsed flips to half-open as a side effect and
// allows the probe through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	if b.state != StateOpen {
		b.mu.Unlock()
		return true
	}

	now := b.nowFunc()
	if now.Before(b.nextRetry) {
		b.mu.Unlock()
		return false
	}

	ev := b.transitionLocked(StateHalfOpen, now)
	b.mu.Unlock()

	b.config.Emitter.Emit(ev)
	return true
}

// RecordSuccess reports a successful call.
//
// While closed it clears the failure window entirely; while half-open
// it counts toward SuccessThreshold and closes the breaker when
// reached. A success while open changes nothing.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	now := b.nowFunc()

	var ev *events.Event
	switch b.state {
	case StateClosed:
		b.failures = nil
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			e := b.transitionLocked(StateClosed, now)
			ev = &e
		}
	}
	b.mu.Unlock()

	if ev != nil {
		b.config.Emitter.Emit(*ev)
	}
}

// RecordFailure reports a failed call.
//
// While closed it prunes the failure window, appends the failure, and
// opens the breaker at FailureThreshold. A single failure while
// half-open reopens immediately. While open only the failure time is
// noted.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	now := b.nowFunc()
	b.lastFailure = now

	var ev *events.Event
	switch b.state {
	case StateClosed:
		b.pruneFailuresLocked(now)
		b.failures = append(b.failures, now)
		if len(b.failures) >= b.config.FailureThreshold {
			e := b.transitionLocked(StateOpen, now)
			ev = &e
		}
	case StateHalfOpen:
		b.failures = append(b.failures, now)
		e := b.transitionLocked(StateOpen, now)
		ev = &e
	}
	b.mu.Unlock()

	if ev != nil {
		b.config.Emitter.Emit(*ev)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a snapshot of the breaker.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneFailuresLocked(b.nowFunc())

	st := Status{
		ProviderID:      b.providerID,
		State:           b.state,
		FailureCount:    len(b.failures),
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailure,
		LastStateChange: b.lastChange,
	}
	if b.state == StateOpen {
		st.NextRetryTime = b.nextRetry
	}
	return st
}

// TimeUntilRetry returns how long until an open breaker permits a
// probe. ok is false unless the breaker is open.
func (b *Breaker) TimeUntilRetry() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return 0, false
	}

	d := b.nextRetry.Sub(b.nowFunc())
	if d < 0 {
		d = 0
	}
	return d, true
}

// ForceOpen opens the breaker regardless of failure history. Forcing
// into the current state is a no-op and emits nothing.
func (b *Breaker) ForceOpen() {
	b.force(StateOpen)
}

// ForceClose closes the breaker and resets all counters. Forcing into
// the current state is a no-op and emits nothing.
func (b *Breaker) ForceClose() {
	b.force(StateClosed)
}

// Reset is equivalent to ForceClose.
func (b *Breaker) Reset() {
	b.ForceClose()
}

func (b *Breaker) force(to State) {
	b.mu.Lock()
	if b.state == to {
		b.mu.Unlock()
		return
	}
	ev := b.transitionLocked(to, b.nowFunc())
	b.mu.Unlock()

	b.config.Emitter.Emit(ev)
}

// transitionLocked moves to a new state and builds the transition
// event. Caller holds b.mu and emits outside it.
func (b *Breaker) transitionLocked(to State, now time.Time) events.Event {
	from := b.state
	failureCount := len(b.failures)

	b.state = to
	b.lastChange = now

	switch to {
	case StateOpen:
		b.nextRetry = now.Add(b.config.ResetTimeout)
		b.successCount = 0
	case StateHalfOpen:
		b.successCount = 0
	case StateClosed:
		b.failures = nil
		b.successCount = 0
		b.nextRetry = time.Time{}
	}

	return events.Event{
		Type:       transitionEvent(to),
		ProviderID: b.providerID,
		Timestamp:  now,
		Data: map[string]interface{}{
			"old_state":     string(from),
			"new_state":     string(to),
			"failure_count": failureCount,
		},
	}
}

func transitionEvent(to State) events.Type {
	switch to {
	case StateOpen:
		return events.TypeCircuitOpened
	case StateClosed:
		return events.TypeCircuitClosed
	default:
		return events.TypeCircuitHalfOpen
	}
}

// pruneFailuresLocked drops failures older than the window. Caller
// holds b.mu.
func (b *Breaker) pruneFailuresLocked(now time.Time) {
	cutoff := now.Add(-b.config.FailureWindow)

	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = kept
}
