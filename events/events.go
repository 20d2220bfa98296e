package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies the kind of admission event.
type Type string

const (
	// TypeRequestQueued indicates a request was placed in a provider queue.
	TypeRequestQueued Type = "request_queued"

	// TypeRequestProcessed indicates a completed request was recorded.
	TypeRequestProcessed Type = "request_processed"

	// TypeRequestRejected indicates a request was evicted or refused.
	TypeRequestRejected Type = "request_rejected"

	// TypeRateLimitHit indicates a window limit deferred a request.
	TypeRateLimitHit Type = "rate_limit_hit"

	// TypeCircuitOpened indicates a breaker transitioned to open.
	TypeCircuitOpened Type = "circuit_opened"

	// TypeCircuitClosed indicates a breaker transitioned to closed.
	TypeCircuitClosed Type = "circuit_closed"

	// TypeCircuitHalfOpen indicates a breaker began probing for recovery.
	TypeCircuitHalfOpen Type = "circuit_half_open"

	// TypeBudgetExceeded indicates a request would overrun the spend budget.
	TypeBudgetExceeded Type = "budget_exceeded"
)

// Valid returns true if the type is a known value.
func (t Type) Valid() bool {
	switch t {
	case TypeRequestQueued, TypeRequestProcessed, TypeRequestRejected,
		TypeRateLimitHit, TypeCircuitOpened, TypeCircuitClosed,
		TypeCircuitHalfOpen, TypeBudgetExceeded:
		return true
	default:
		return false
	}
}

// Event describes a single admission-control occurrence.
type Event struct {
	// Type is the event kind.
	Type Type `json:"type"`

	// ProviderID identifies the provider the event concerns, if any.
	ProviderID string `json:"provider_id,omitempty"`

	// AgentID identifies the agent that triggered the event, if any.
	AgentID string `json:"agent_id,omitempty"`

	// RequestID identifies the queued request involved, if any.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Data carries event-specific details (reasons, counters, states).
	Data map[string]interface{} `json:"data,omitempty"`
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	clone := e
	if e.Data != nil {
		clone.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			clone.Data[k] = v
		}
	}
	return clone
}

// Marshal serializes the event to JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses an event from JSON.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Listener is a callback invoked for each emitted event.
type Listener func(Event)

// Emitter fans events out to subscribed listeners.
//
// Dispatch is synchronous: Emit returns after every listener has run.
// Listeners are invoked outside the emitter's lock, and a panicking
// listener never affects the other listeners or the emitting caller.
// A nil *Emitter is valid and drops all events.
type Emitter struct {
	mu        sync.RWMutex
	listeners []*Subscription
	nextID    uint64
}

// NewEmitter creates an emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscription represents a registered listener.
type Subscription struct {
	id      uint64
	fn      Listener
	emitter *Emitter
	closed  atomic.Bool
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.closed.Swap(true) {
		return
	}
	if s.emitter != nil {
		s.emitter.remove(s.id)
	}
}

// Subscribe registers a listener for all subsequent events.
func (em *Emitter) Subscribe(fn Listener) *Subscription {
	if em == nil || fn == nil {
		sub := &Subscription{}
		sub.closed.Store(true)
		return sub
	}

	em.mu.Lock()
	defer em.mu.Unlock()

	em.nextID++
	sub := &Subscription{id: em.nextID, fn: fn, emitter: em}
	em.listeners = append(em.listeners, sub)
	return sub
}

// Emit delivers the event to every listener in subscription order.
// A zero Timestamp is stamped with the current time.
func (em *Emitter) Emit(e Event) {
	if em == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	em.mu.RLock()
	subs := make([]*Subscription, len(em.listeners))
	copy(subs, em.listeners)
	em.mu.RUnlock()

	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		dispatch(sub.fn, e)
	}
}

// dispatch runs one listener, containing any panic it raises.
func dispatch(fn Listener, e Event) {
	defer func() {
		recover()
	}()
	fn(e)
}

// Count returns the number of active listeners.
func (em *Emitter) Count() int {
	if em == nil {
		return 0
	}
	em.mu.RLock()
	defer em.mu.RUnlock()
	return len(em.listeners)
}

func (em *Emitter) remove(id uint64) {
	em.mu.Lock()
	defer em.mu.Unlock()

	for i, sub := range em.listeners {
		if sub.id == id {
			em.listeners = append(em.listeners[:i], em.listeners[i+1:]...)
			return
		}
	}
}
