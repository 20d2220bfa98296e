package admission

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	gateerrors "github.com/vinayprograms/gatekit/errors"
	"github.com/vinayprograms/gatekit/events"
	"github.com/vinayprograms/gatekit/queue"
	"github.com/vinayprograms/gatekit/telemetry"
)

var (
	// ErrHandlerSet is returned when a drain handler is already installed.
	ErrHandlerSet = errors.New("drain handler already set")

	// ErrStarted is returned when the drain loop is already running.
	ErrStarted = errors.New("drain loop already started")

	// ErrNotStarted is returned when stopping a loop that is not running.
	ErrNotStarted = errors.New("drain loop not started")
)

// Handler processes one dequeued request. The manager invokes it on
// its own goroutine once window capacity frees up; the handler usually
// performs the provider call and then calls Record.
type Handler func(ctx context.Context, req *queue.Request)

// SetHandler installs the drain handler. A handler can be set once.
func (m *Manager) SetHandler(fn Handler) error {
	if fn == nil {
		return gateerrors.InvalidInput("drain handler must not be nil")
	}

	m.hmu.Lock()
	defer m.hmu.Unlock()
	if m.handler != nil {
		return ErrHandlerSet
	}
	m.handler = fn
	return nil
}

// Start launches the background drain loop. Each tick it sweeps
// expired requests and re-runs admission for queue heads, dispatching
// those the window can now absorb. A circuit_closed event wakes the
// loop early so recovered providers drain without waiting a full tick.
func (m *Manager) Start(ctx context.Context) error {
	if m.running.Swap(true) {
		return ErrStarted
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.kickCh = make(chan struct{}, 1)
	m.kickSub = m.emitter.Subscribe(func(e events.Event) {
		if e.Type != events.TypeCircuitClosed {
			return
		}
		select {
		case m.kickCh <- struct{}{}:
		default:
		}
	})

	go m.drainLoop(ctx)
	return nil
}

// Stop halts the drain loop and waits for it to exit. In-flight
// handlers are not interrupted.
func (m *Manager) Stop() error {
	if !m.running.Swap(false) {
		return ErrNotStarted
	}

	m.kickSub.Unsubscribe()
	close(m.stopCh)
	<-m.doneCh
	return nil
}

func (m *Manager) drainLoop(ctx context.Context) {
	defer close(m.doneCh)

	limiter := rate.NewLimiter(m.config.DrainRate, m.config.DrainBurst)
	ticker := time.NewTicker(m.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.drainOnce(ctx, limiter)
		case <-m.kickCh:
			m.drainOnce(ctx, limiter)
		}
	}
}

// drainOnce sweeps every provider queue and dispatches what fits.
// Expiry runs even without a handler so abandoned requests do not
// linger past their deadline.
func (m *Manager) drainOnce(ctx context.Context, limiter *rate.Limiter) {
	m.hmu.Lock()
	handler := m.handler
	m.hmu.Unlock()

	for _, st := range m.states() {
		st.queue.Sweep()
		if handler != nil {
			m.drainProvider(ctx, st, handler, limiter)
		}
	}
}

// drainProvider dispatches from the head of one queue while admission
// passes. Dispatched requests have not hit Record yet, so their window
// share is tracked locally; otherwise a burst of dispatches in one
// tick could all pass against the same stale counters.
func (m *Manager) drainProvider(ctx context.Context, st *providerState, handler Handler, limiter *rate.Limiter) {
	var dispatched, dispatchedTokens int

	for {
		head := st.queue.Peek()
		if head == nil {
			return
		}

		probe := CheckRequest{
			ProviderID:      head.ProviderID,
			AgentID:         head.AgentID,
			EstimatedTokens: head.EstimatedTokens,
			BypassQueue:     true,
		}
		res := m.check(st, probe, false)
		if !res.Allowed {
			return
		}
		if res.RemainingRequests <= dispatched ||
			res.RemainingTokens < dispatchedTokens+head.EstimatedTokens {
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		req := st.queue.Dequeue()
		if req == nil {
			continue
		}
		dispatched++
		dispatchedTokens += req.EstimatedTokens
		go m.dispatch(ctx, handler, req)
	}
}

func (m *Manager) dispatch(ctx context.Context, handler Handler, req *queue.Request) {
	waited := m.nowFunc().Sub(req.QueuedAt)

	tracer := telemetry.GetTracer()
	sctx, span := tracer.StartDrainSpan(ctx, req.ProviderID)
	opts := telemetry.DrainSpanOptions{
		Provider:  req.ProviderID,
		RequestID: req.ID,
		Waited:    waited,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err := gateerrors.RecoverPanic(recovered)
			m.logger.HandlerPanic(req.ProviderID, req.ID, err)
			tracer.EndDrainSpan(span, opts, err)
		}
	}()

	handler(sctx, req)
	m.logger.Drained(req.ProviderID, req.ID, waited)
	tracer.EndDrainSpan(span, opts, nil)
}
