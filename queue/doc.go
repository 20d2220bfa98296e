// Package queue provides a bounded, priority-ordered queue of requests
// awaiting admission to a rate-limited provider.
//
// # Ordering
//
// Requests are ordered by priority class first (critical, high, normal,
// low), then by arrival within a class. Dequeue always returns the most
// urgent, oldest request:
//
//	q := queue.New(queue.DefaultConfig())
//	id, err := q.Enqueue("agent-1", "anthropic", queue.PriorityHigh, 1200)
//	if err == queue.ErrQueueFull {
//	    // shed load or retry later
//	}
//	next := q.Dequeue()
//
// # Expiry
//
// Every request carries an expiry (per-request timeout or the queue
// default). Expired entries are pruned when Dequeue or Peek runs, and
// Sweep prunes without consuming; run it periodically when drain traffic
// is low, otherwise stale entries hold capacity until the next read.
//
// # Capacity
//
// The queue never grows past MaxSize. Enqueue at capacity fails fast
// with ErrQueueFull and does not prune; admission layers treat that as
// backpressure to surface to the caller.
//
// The queue knows nothing about rate limits or budgets; those decisions
// belong to the admission manager that drains it.
package queue
