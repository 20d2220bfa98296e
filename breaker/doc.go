// Package breaker provides a per-provider circuit breaker for fault
// isolation.
//
// # States
//
// A breaker starts closed and moves between three states:
//
//   - closed: traffic flows; failures are counted in a sliding window
//   - open: traffic is refused until the reset timeout elapses
//   - half-open: probes flow; successes close, one failure reopens
//
// Opening happens when FailureThreshold failures land within
// FailureWindow. A success while closed clears the window outright, so
// intermittent failures never accumulate across recoveries.
//
// # Probing
//
// The open-to-half-open transition is a side effect of Allow: once the
// reset timeout has elapsed, the next Allow call flips state and lets
// the probe through. SuccessThreshold consecutive successes close the
// breaker; a single failure reopens it with a fresh timeout.
//
//	b := breaker.New("anthropic", breaker.DefaultConfig())
//	if !b.Allow() {
//	    wait, _ := b.TimeUntilRetry()
//	    // back off for wait
//	}
//	// ... make the call ...
//	b.RecordSuccess() // or b.RecordFailure()
//
// ForceOpen and ForceClose override the state machine, e.g. when a
// peer process reports the provider down. Forcing into the current
// state is a no-op and emits no event, which keeps swarm propagation
// loop-free.
package breaker
