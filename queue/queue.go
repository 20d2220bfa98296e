package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/gatekit/events"
)

// Common errors.
var (
	ErrQueueFull = errors.New("queue full")
)

// Priority classifies request urgency. Lower values are more urgent.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

// ParsePriority converts a priority name to a Priority.
// Unknown names map to PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "normal":
		return PriorityNormal
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Request is a request awaiting admission.
type Request struct {
	// ID uniquely identifies the request.
	ID string

	// AgentID identifies the agent that wants to make the call.
	AgentID string

	// ProviderID identifies the upstream provider.
	ProviderID string

	// Priority orders the request relative to others.
	Priority Priority

	// EstimatedTokens is the caller's estimate for the call.
	EstimatedTokens int

	// QueuedAt is when the request entered the queue.
	QueuedAt time.Time

	// ExpiresAt is when the request ages out.
	ExpiresAt time.Time

	// Metadata carries additional key-value data.
	Metadata map[string]string
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}

	clone := *r
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Config configures a Queue.
type Config struct {
	// MaxSize bounds the number of pending requests.
	// Default: 100
	MaxSize int

	// DefaultTimeout is the expiry applied when an enqueue does not
	// carry its own. Default: 5m
	DefaultTimeout time.Duration

	// DisablePriority appends in arrival order regardless of priority.
	DisablePriority bool

	// Emitter receives queue events. Optional.
	Emitter *events.Emitter
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:        100,
		DefaultTimeout: 5 * time.Minute,
	}
}

// Stats summarizes queue contents.
type Stats struct {
	// TotalRequests is the number of pending requests.
	TotalRequests int

	// ByPriority counts pending requests per priority name.
	ByPriority map[string]int

	// ByProvider counts pending requests per provider.
	ByProvider map[string]int

	// OldestAge is the age of the oldest pending request.
	// Zero when the queue is empty.
	OldestAge time.Duration
}

// Queue holds requests that cannot be admitted immediately, ordered by
// priority then arrival time, with bounded capacity and per-request
// expiry.
//
// Expired entries are pruned lazily on Dequeue and Peek; callers that
// rarely drain should run Sweep periodically so stale entries do not
// occupy capacity.
type Queue struct {
	config Config

	mu    sync.Mutex
	items []*Request

	nowFunc func() time.Time
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}

	return &Queue{
		config:  cfg,
		nowFunc: time.Now,
	}
}

// Option customizes a single enqueue.
type Option func(*enqueueOptions)

type enqueueOptions struct {
	timeout  time.Duration
	metadata map[string]string
}

// WithTimeout overrides the queue's default expiry for one request.
func WithTimeout(d time.Duration) Option {
	return func(o *enqueueOptions) {
		o.timeout = d
	}
}

// WithMetadata attaches key-value data to the request.
func WithMetadata(md map[string]string) Option {
	return func(o *enqueueOptions) {
		o.metadata = make(map[string]string, len(md))
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}

// Enqueue inserts a request and returns its assigned ID.
//
// Returns ErrQueueFull when the queue is at capacity; the capacity test
// does not prune expired entries, so a full queue stays full until a
// drain or sweep runs. Equal priorities keep FIFO order.
func (q *Queue) Enqueue(agentID, providerID string, priority Priority, estimatedTokens int, opts ...Option) (string, error) {
	o := enqueueOptions{timeout: q.config.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = q.config.DefaultTimeout
	}
	if !priority.Valid() {
		priority = PriorityNormal
	}

	q.mu.Lock()
	if len(q.items) >= q.config.MaxSize {
		q.mu.Unlock()
		q.config.Emitter.Emit(events.Event{
			Type:       events.TypeRequestRejected,
			ProviderID: providerID,
			AgentID:    agentID,
			Data:       map[string]interface{}{"reason": "Queue is full"},
		})
		return "", ErrQueueFull
	}

	now := q.nowFunc()
	req := &Request{
		ID:              uuid.NewString(),
		AgentID:         agentID,
		ProviderID:      providerID,
		Priority:        priority,
		EstimatedTokens: estimatedTokens,
		QueuedAt:        now,
		ExpiresAt:       now.Add(o.timeout),
		Metadata:        o.metadata,
	}
	q.insert(req)
	q.mu.Unlock()

	q.config.Emitter.Emit(events.Event{
		Type:       events.TypeRequestQueued,
		ProviderID: providerID,
		AgentID:    agentID,
		RequestID:  req.ID,
		Data: map[string]interface{}{
			"priority":         priority.String(),
			"estimated_tokens": estimatedTokens,
		},
	})
	return req.ID, nil
}

// insert places the request before the first less-urgent entry,
// preserving FIFO among equal priorities.
func (q *Queue) insert(req *Request) {
	if q.config.DisablePriority {
		q.items = append(q.items, req)
		return
	}

	idx := len(q.items)
	for i, it := range q.items {
		if it.Priority > req.Priority {
			idx = i
			break
		}
	}

	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = req
}

// Dequeue removes and returns the highest-priority oldest request,
// pruning expired entries first. Returns nil when empty.
func (q *Queue) Dequeue() *Request {
	q.mu.Lock()
	expired := q.pruneLocked()
	var head *Request
	if len(q.items) > 0 {
		head = q.items[0]
		q.items = q.items[1:]
	}
	q.mu.Unlock()

	q.emitExpired(expired)
	return head
}

// Peek returns a copy of the head without removing it, pruning expired
// entries first. Returns nil when empty.
func (q *Queue) Peek() *Request {
	q.mu.Lock()
	expired := q.pruneLocked()
	var head *Request
	if len(q.items) > 0 {
		head = q.items[0].Clone()
	}
	q.mu.Unlock()

	q.emitExpired(expired)
	return head
}

// Sweep removes expired entries without dequeuing and returns the
// number removed.
func (q *Queue) Sweep() int {
	q.mu.Lock()
	expired := q.pruneLocked()
	q.mu.Unlock()

	q.emitExpired(expired)
	return len(expired)
}

// pruneLocked drops entries past their expiry. Caller holds q.mu.
func (q *Queue) pruneLocked() []*Request {
	now := q.nowFunc()

	var expired []*Request
	kept := q.items[:0]
	for _, it := range q.items {
		if it.ExpiresAt.Before(now) {
			expired = append(expired, it)
		} else {
			kept = append(kept, it)
		}
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return expired
}

func (q *Queue) emitExpired(expired []*Request) {
	for _, req := range expired {
		q.config.Emitter.Emit(events.Event{
			Type:       events.TypeRequestRejected,
			ProviderID: req.ProviderID,
			AgentID:    req.AgentID,
			RequestID:  req.ID,
			Data:       map[string]interface{}{"reason": "Request expired"},
		})
	}
}

// Remove deletes a pending request by ID. Returns false for an unknown
// ID; that is not an error.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns a copy of a pending request, or nil if absent.
func (q *Queue) Get(id string) *Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if it.ID == id {
			return it.Clone()
		}
	}
	return nil
}

// RequestsForAgent returns copies of all pending requests for an agent.
func (q *Queue) RequestsForAgent(agentID string) []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*Request
	for _, it := range q.items {
		if it.AgentID == agentID {
			out = append(out, it.Clone())
		}
	}
	return out
}

// RequestsForProvider returns copies of all pending requests for a
// provider.
func (q *Queue) RequestsForProvider(providerID string) []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*Request
	for _, it := range q.items {
		if it.ProviderID == providerID {
			out = append(out, it.Clone())
		}
	}
	return out
}

// Position returns the 1-based position of a request, or -1 if absent.
func (q *Queue) Position(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if it.ID == id {
			return i + 1
		}
	}
	return -1
}

// Len returns the number of pending requests, expired ones included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats summarizes current contents. Expired-but-unpruned entries are
// counted; only Dequeue, Peek and Sweep prune.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{
		TotalRequests: len(q.items),
		ByPriority:    make(map[string]int),
		ByProvider:    make(map[string]int),
	}

	var oldest time.Time
	for _, it := range q.items {
		stats.ByPriority[it.Priority.String()]++
		stats.ByProvider[it.ProviderID]++
		if oldest.IsZero() || it.QueuedAt.Before(oldest) {
			oldest = it.QueuedAt
		}
	}
	if !oldest.IsZero() {
		stats.OldestAge = q.nowFunc().Sub(oldest)
	}
	return stats
}

// Clear evicts every pending request.
func (q *Queue) Clear() {
	q.mu.Lock()
	evicted := q.items
	q.items = nil
	q.mu.Unlock()

	for _, req := range evicted {
		q.config.Emitter.Emit(events.Event{
			Type:       events.TypeRequestRejected,
			ProviderID: req.ProviderID,
			AgentID:    req.AgentID,
			RequestID:  req.ID,
			Data:       map[string]interface{}{"reason": "Queue cleared"},
		})
	}
}
