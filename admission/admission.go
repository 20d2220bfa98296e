package admission

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/gatekit/breaker"
	"github.com/vinayprograms/gatekit/budget"
	gateerrors "github.com/vinayprograms/gatekit/errors"
	"github.com/vinayprograms/gatekit/events"
	"github.com/vinayprograms/gatekit/logging"
	"github.com/vinayprograms/gatekit/pricing"
	"github.com/vinayprograms/gatekit/queue"
	"github.com/vinayprograms/gatekit/telemetry"
	"github.com/vinayprograms/gatekit/usage"
)

// ProviderConfig is the static admission policy for one provider.
type ProviderConfig struct {
	// ProviderID identifies the provider. Required.
	ProviderID string `json:"provider_id" toml:"id"`

	// RequestsPerMinute caps admitted requests per window.
	// Zero uses the manager default.
	RequestsPerMinute int `json:"requests_per_minute" toml:"requests_per_minute"`

	// TokensPerMinute caps admitted tokens per window.
	// Zero uses the manager default.
	TokensPerMinute int `json:"tokens_per_minute" toml:"tokens_per_minute"`

	// CostPerInputToken overrides catalog pricing, in USD per token.
	CostPerInputToken float64 `json:"cost_per_input_token,omitempty" toml:"cost_per_input_token"`

	// CostPerOutputToken overrides catalog pricing, in USD per token.
	CostPerOutputToken float64 `json:"cost_per_output_token,omitempty" toml:"cost_per_output_token"`

	// ModelID selects the pricing-table entry when per-token costs are
	// not set.
	ModelID string `json:"model_id,omitempty" toml:"model"`
}

// RateLimitInfo is a snapshot of one provider's live window counters.
type RateLimitInfo struct {
	ProviderID        string        `json:"provider_id"`
	RequestsPerMinute int           `json:"requests_per_minute"`
	TokensPerMinute   int           `json:"tokens_per_minute"`
	RequestsUsed      int           `json:"requests_used"`
	TokensUsed        int           `json:"tokens_used"`
	WindowStart       time.Time     `json:"window_start"`
	WindowDuration    time.Duration `json:"window_duration"`
}

// CheckRequest describes an intent to call a provider.
type CheckRequest struct {
	// ProviderID identifies the provider to call.
	ProviderID string

	// AgentID identifies the calling agent.
	AgentID string

	// EstimatedTokens is the caller's estimate for the call.
	EstimatedTokens int

	// Priority orders the request if it has to wait.
	Priority queue.Priority

	// BypassQueue reports the rate limit without enqueuing.
	BypassQueue bool

	// Timeout overrides the default queue expiry if the request is
	// enqueued.
	Timeout time.Duration

	// Metadata is carried into the queue entry.
	Metadata map[string]string
}

// Result is one admission decision. The zero value means refused.
type Result struct {
	// ProviderID the decision concerns.
	ProviderID string

	// Allowed reports whether the caller may proceed now.
	Allowed bool

	// Reason explains a refusal.
	Reason string

	// WaitTime hints how long until the refusal may clear.
	WaitTime time.Duration

	// RemainingRequests is the window headroom after this request.
	RemainingRequests int

	// RemainingTokens is the window token headroom.
	RemainingTokens int

	// RequestID identifies the queued request, when one was created.
	RequestID string

	code    gateerrors.ErrorCode
	agentID string
}

// Err converts a refusal into a typed error, nil when allowed.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}

	opts := []gateerrors.Option{}
	if r.agentID != "" {
		opts = append(opts, gateerrors.WithAgentID(r.agentID))
	}
	if r.WaitTime > 0 {
		opts = append(opts, gateerrors.WithMetadata("retry_after", r.WaitTime.String()))
	}

	switch r.code {
	case gateerrors.ErrCodeNotRegistered:
		return gateerrors.NotRegistered(r.ProviderID, opts...)
	case gateerrors.ErrCodeCircuitOpen:
		return gateerrors.CircuitOpen(r.ProviderID, opts...)
	case gateerrors.ErrCodeBudgetExceeded:
		return gateerrors.BudgetExceeded(r.Reason, append(opts, gateerrors.WithProviderID(r.ProviderID))...)
	case gateerrors.ErrCodeQueueFull:
		return gateerrors.QueueFull(r.ProviderID, opts...)
	case gateerrors.ErrCodeRateLimited:
		return gateerrors.RateLimited(r.ProviderID, r.RequestID, opts...)
	default:
		return gateerrors.Internal(r.Reason, append(opts, gateerrors.WithProviderID(r.ProviderID))...)
	}
}

// providerState is one provider's admission triple. Window reads and
// writes happen under mu; the breaker and queue carry their own locks.
// Providers never share a lock.
type providerState struct {
	mu      sync.Mutex
	config  ProviderConfig
	window  RateLimitInfo
	breaker *breaker.Breaker
	queue   *queue.Queue
}

// Manager is the admission and accounting facade. It owns one queue,
// one breaker and one set of window counters per registered provider,
// plus the shared budget ledger, and decides per request whether to
// admit, queue, or refuse.
//
// Check never commits usage; only Record advances counters, spends
// budget and feeds the breaker, because the caller may still fail to
// perform the call it asked about.
type Manager struct {
	config   Config
	emitter  *events.Emitter
	ledger   *budget.Ledger
	pricing  *pricing.Table
	recorder usage.Recorder
	logger   *logging.Logger
	exporter telemetry.Exporter

	ownRecorder bool

	mu        sync.RWMutex
	providers map[string]*providerState

	hmu     sync.Mutex
	handler Handler

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	kickCh  chan struct{}
	kickSub *events.Subscription

	nowFunc func() time.Time
}

// New creates a manager and registers any providers named in the
// configuration.
func New(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	m := &Manager{
		config:    cfg,
		emitter:   events.NewEmitter(),
		ledger:    budget.New(cfg.Budget),
		pricing:   cfg.Pricing,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		exporter:  cfg.Exporter,
		providers: make(map[string]*providerState),
		nowFunc:   time.Now,
	}

	if m.pricing == nil {
		m.pricing = pricing.DefaultTable()
	}
	if m.recorder == nil {
		m.recorder = usage.NewMemoryRecorder(cfg.UsageHistoryCap)
		m.ownRecorder = true
	}
	if m.logger == nil {
		m.logger = logging.New().WithComponent("gate")
	}

	for _, p := range cfg.Providers {
		if err := m.Register(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register creates the rate-limit window, breaker and queue for a
// provider. Re-registering an ID replaces all three: counters restart
// at zero, the breaker closes, the queue empties.
func (m *Manager) Register(cfg ProviderConfig) error {
	if cfg.ProviderID == "" {
		return gateerrors.InvalidConfig("provider id is required")
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = m.config.DefaultRequestsPerMinute
	}
	if cfg.TokensPerMinute <= 0 {
		cfg.TokensPerMinute = m.config.DefaultTokensPerMinute
	}

	bcfg := m.config.Breaker
	bcfg.Emitter = m.emitter

	qcfg := queue.Config{
		MaxSize:        m.config.MaxQueueSize,
		DefaultTimeout: m.config.DefaultRequestTimeout,
		Emitter:        m.emitter,
	}

	st := &providerState{
		config: cfg,
		window: RateLimitInfo{
			ProviderID:        cfg.ProviderID,
			RequestsPerMinute: cfg.RequestsPerMinute,
			TokensPerMinute:   cfg.TokensPerMinute,
			WindowStart:       m.nowFunc(),
			WindowDuration:    m.config.WindowDuration,
		},
		breaker: breaker.New(cfg.ProviderID, bcfg),
		queue:   queue.New(qcfg),
	}

	m.mu.Lock()
	old := m.providers[cfg.ProviderID]
	m.providers[cfg.ProviderID] = st
	m.mu.Unlock()

	if old != nil {
		old.queue.Clear()
	}
	return nil
}

// Unregister removes a provider's window, breaker and queue together.
// Pending queued requests are evicted with a rejection event. Unknown
// IDs are ignored.
func (m *Manager) Unregister(providerID string) {
	m.mu.Lock()
	st, ok := m.providers[providerID]
	delete(m.providers, providerID)
	m.mu.Unlock()

	if ok {
		st.queue.Clear()
	}
}

// Providers returns the registered provider IDs, sorted.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.providers))
	for id := range m.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) provider(id string) *providerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[id]
}

// Check decides whether a request may proceed now. It never commits
// usage. A request the window cannot absorb is enqueued (unless
// BypassQueue) and the result carries its RequestID.
func (m *Manager) Check(req CheckRequest) Result {
	tracer := telemetry.GetTracer()
	_, span := tracer.StartCheckSpan(context.Background(), req.ProviderID)

	st := m.provider(req.ProviderID)
	res := m.check(st, req, true)

	spanOpts := telemetry.CheckSpanOptions{
		Provider:          req.ProviderID,
		Agent:             req.AgentID,
		Allowed:           res.Allowed,
		Queued:            res.RequestID != "",
		Reason:            res.Reason,
		RemainingRequests: res.RemainingRequests,
		RemainingTokens:   res.RemainingTokens,
	}
	if st != nil {
		spanOpts.Model = st.config.ModelID
	}
	if tracer.Debug() && len(req.Metadata) > 0 {
		spanOpts.Metadata = make(map[string]interface{}, len(req.Metadata))
		for k, v := range req.Metadata {
			spanOpts.Metadata[k] = v
		}
	}
	tracer.EndCheckSpan(span, spanOpts, nil)

	if m.exporter != nil {
		m.exporter.LogAdmission(telemetry.Admission{
			ProviderID: req.ProviderID,
			AgentID:    req.AgentID,
			RequestID:  res.RequestID,
			Allowed:    res.Allowed,
			Queued:     res.RequestID != "",
			Reason:     res.Reason,
			WaitTime:   res.WaitTime,
			Tokens:     telemetry.TokenCount{Input: req.EstimatedTokens},
		})
	}

	if res.Allowed {
		m.logger.Admitted(req.ProviderID, req.AgentID, res.RemainingRequests, res.RemainingTokens)
	} else {
		m.logger.Refused(req.ProviderID, req.AgentID, res.Reason)
	}
	return res
}

// check runs the decision chain: registration, breaker, budget,
// window. First failing step wins. With emit false no events fire and
// nothing is enqueued; the drain loop uses that mode to probe capacity.
func (m *Manager) check(st *providerState, req CheckRequest, emit bool) Result {
	res := Result{ProviderID: req.ProviderID, agentID: req.AgentID}

	if st == nil {
		res.Reason = fmt.Sprintf("%s not registered", req.ProviderID)
		res.code = gateerrors.ErrCodeNotRegistered
		return res
	}

	if !st.breaker.Allow() {
		res.Reason = fmt.Sprintf("Circuit breaker open for %s", req.ProviderID)
		res.code = gateerrors.ErrCodeCircuitOpen
		if wait, ok := st.breaker.TimeUntilRetry(); ok {
			res.WaitTime = wait
		}
		return res
	}

	if m.ledger.Enabled() {
		st.mu.Lock()
		cfg := st.config
		st.mu.Unlock()

		est := m.estimateSplit(cfg, req.EstimatedTokens)
		if !m.ledger.Fits(est.CostUSD) {
			remaining := m.ledger.Remaining()
			res.Reason = fmt.Sprintf("Budget limit reached: estimated cost $%.4f exceeds remaining $%.4f", est.CostUSD, remaining)
			res.code = gateerrors.ErrCodeBudgetExceeded
			if emit {
				m.emitter.Emit(events.Event{
					Type:       events.TypeBudgetExceeded,
					ProviderID: req.ProviderID,
					AgentID:    req.AgentID,
					Data: map[string]interface{}{
						"estimated_cost_usd": est.CostUSD,
						"remaining_usd":      remaining,
					},
				})
				m.logger.BudgetAlert(est.CostUSD, remaining)
			}
			return res
		}
	}

	now := m.nowFunc()
	st.mu.Lock()
	m.rollWindowLocked(st, now)

	over := st.window.RequestsUsed+1 > st.window.RequestsPerMinute ||
		st.window.TokensUsed+req.EstimatedTokens > st.window.TokensPerMinute
	if !over {
		res.Allowed = true
		res.RemainingRequests = st.window.RequestsPerMinute - st.window.RequestsUsed
		res.RemainingTokens = st.window.TokensPerMinute - st.window.TokensUsed
		st.mu.Unlock()
		return res
	}

	windowEnds := st.window.WindowStart.Add(st.window.WindowDuration)
	requestsUsed := st.window.RequestsUsed
	tokensUsed := st.window.TokensUsed
	rpm := st.window.RequestsPerMinute
	tpm := st.window.TokensPerMinute
	st.mu.Unlock()

	res.WaitTime = windowEnds.Sub(now)
	res.code = gateerrors.ErrCodeRateLimited

	if emit {
		m.emitter.Emit(events.Event{
			Type:       events.TypeRateLimitHit,
			ProviderID: req.ProviderID,
			AgentID:    req.AgentID,
			Data: map[string]interface{}{
				"requests_used":       requestsUsed,
				"tokens_used":         tokensUsed,
				"requests_per_minute": rpm,
				"tokens_per_minute":   tpm,
			},
		})
	}

	if req.BypassQueue || !emit {
		res.Reason = fmt.Sprintf("Rate limit reached for %s", req.ProviderID)
		return res
	}

	opts := make([]queue.Option, 0, 2)
	if req.Timeout > 0 {
		opts = append(opts, queue.WithTimeout(req.Timeout))
	}
	if req.Metadata != nil {
		opts = append(opts, queue.WithMetadata(req.Metadata))
	}

	id, err := st.queue.Enqueue(req.AgentID, req.ProviderID, req.Priority, req.EstimatedTokens, opts...)
	if err != nil {
		res.Reason = "Queue is full"
		res.code = gateerrors.ErrCodeQueueFull
		return res
	}

	res.RequestID = id
	res.Reason = fmt.Sprintf("Rate limit reached for %s, request queued", req.ProviderID)
	return res
}

// rollWindowLocked resets the counters once the window has elapsed.
// The reset commits no matter what the surrounding check then decides.
// Caller holds st.mu.
func (m *Manager) rollWindowLocked(st *providerState, now time.Time) {
	if now.Sub(st.window.WindowStart) >= st.window.WindowDuration {
		st.window.RequestsUsed = 0
		st.window.TokensUsed = 0
		st.window.WindowStart = now
	}
}

// Record commits one completed call: advances the window counters,
// feeds the breaker, spends the estimated cost, and appends a usage
// sample. This is the only place usage advances. Unknown providers are
// ignored, mirroring the non-throwing admission contract.
func (m *Manager) Record(providerID string, inputTokens, outputTokens int, success bool) {
	tracer := telemetry.GetTracer()
	_, span := tracer.StartRecordSpan(context.Background(), providerID)
	spanOpts := telemetry.RecordSpanOptions{
		Provider:  providerID,
		TokensIn:  inputTokens,
		TokensOut: outputTokens,
		Success:   success,
	}

	st := m.provider(providerID)
	if st == nil {
		tracer.EndRecordSpan(span, spanOpts, nil)
		return
	}

	now := m.nowFunc()
	st.mu.Lock()
	m.rollWindowLocked(st, now)
	st.window.RequestsUsed++
	st.window.TokensUsed += inputTokens + outputTokens
	cfg := st.config
	st.mu.Unlock()

	if success {
		st.breaker.RecordSuccess()
	} else {
		st.breaker.RecordFailure()
	}

	est := m.estimateFor(cfg, inputTokens, outputTokens)
	m.ledger.Spend(est.CostUSD)

	sample := usage.Sample{
		ProviderID:   providerID,
		ModelID:      cfg.ModelID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      est.CostUSD,
		Success:      success,
		Timestamp:    now,
	}
	if err := m.recorder.Record(context.Background(), &sample); err != nil {
		m.logger.Error("usage record failed", map[string]interface{}{
			"provider": providerID,
			"error":    err.Error(),
		})
	}

	m.emitter.Emit(events.Event{
		Type:       events.TypeRequestProcessed,
		ProviderID: providerID,
		Data: map[string]interface{}{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"success":       success,
			"cost_usd":      est.CostUSD,
		},
	})

	spanOpts.Model = cfg.ModelID
	spanOpts.CostUSD = est.CostUSD
	tracer.EndRecordSpan(span, spanOpts, nil)
}

// QueueOptions describe a direct enqueue.
type QueueOptions struct {
	ProviderID      string
	AgentID         string
	Priority        queue.Priority
	EstimatedTokens int
	Timeout         time.Duration
	Metadata        map[string]string
}

// QueueRequest enqueues without running the admission checks, for
// callers that already know they must wait. Returns queue.ErrQueueFull
// when the provider queue is at capacity.
func (m *Manager) QueueRequest(opts QueueOptions) (string, error) {
	st := m.provider(opts.ProviderID)
	if st == nil {
		return "", gateerrors.NotRegistered(opts.ProviderID)
	}

	qopts := make([]queue.Option, 0, 2)
	if opts.Timeout > 0 {
		qopts = append(qopts, queue.WithTimeout(opts.Timeout))
	}
	if opts.Metadata != nil {
		qopts = append(qopts, queue.WithMetadata(opts.Metadata))
	}
	return st.queue.Enqueue(opts.AgentID, opts.ProviderID, opts.Priority, opts.EstimatedTokens, qopts...)
}

// RemoveQueued removes a pending request by ID. False for unknown IDs.
func (m *Manager) RemoveQueued(providerID, requestID string) bool {
	st := m.provider(providerID)
	if st == nil {
		return false
	}
	return st.queue.Remove(requestID)
}

// QueuePosition returns the 1-based position of a pending request, or
// -1 if absent.
func (m *Manager) QueuePosition(providerID, requestID string) int {
	st := m.provider(providerID)
	if st == nil {
		return -1
	}
	return st.queue.Position(requestID)
}

// EstimateCost prices a call: the provider's per-token overrides first,
// then the pricing catalog by model, then the manager-wide defaults.
func (m *Manager) EstimateCost(providerID string, inputTokens, outputTokens int) pricing.Estimate {
	if st := m.provider(providerID); st != nil {
		st.mu.Lock()
		cfg := st.config
		st.mu.Unlock()
		return m.estimateFor(cfg, inputTokens, outputTokens)
	}
	return m.estimateFor(ProviderConfig{ProviderID: providerID}, inputTokens, outputTokens)
}

func (m *Manager) estimateFor(cfg ProviderConfig, inputTokens, outputTokens int) pricing.Estimate {
	if cfg.CostPerInputToken > 0 || cfg.CostPerOutputToken > 0 {
		return pricing.EstimateAt(cfg.ProviderID, cfg.ModelID, cfg.CostPerInputToken, cfg.CostPerOutputToken, inputTokens, outputTokens)
	}
	if est, ok := m.pricing.Estimate(cfg.ProviderID, cfg.ModelID, inputTokens, outputTokens); ok {
		return est
	}
	return pricing.EstimateAt(cfg.ProviderID, cfg.ModelID, m.config.DefaultCostPerInputToken, m.config.DefaultCostPerOutputToken, inputTokens, outputTokens)
}

// estimateSplit prices an up-front token estimate, attributing half to
// input and half to output.
func (m *Manager) estimateSplit(cfg ProviderConfig, estimatedTokens int) pricing.Estimate {
	in := estimatedTokens / 2
	return m.estimateFor(cfg, in, estimatedTokens-in)
}

// BudgetStatus reports the shared ledger, with ProjectedUSD covering
// spend already committed plus the estimated cost of every queued
// request.
func (m *Manager) BudgetStatus() budget.Status {
	status := m.ledger.Status()

	var queued float64
	for _, st := range m.states() {
		st.mu.Lock()
		cfg := st.config
		st.mu.Unlock()

		for _, req := range st.queue.RequestsForProvider(cfg.ProviderID) {
			queued += m.estimateSplit(cfg, req.EstimatedTokens).CostUSD
		}
	}
	status.ProjectedUSD = status.UsedUSD + queued
	return status
}

// RateLimitInfo returns a provider's current window counters, rolling
// the window first if it has elapsed. Nil for unknown providers.
func (m *Manager) RateLimitInfo(providerID string) *RateLimitInfo {
	st := m.provider(providerID)
	if st == nil {
		return nil
	}

	now := m.nowFunc()
	st.mu.Lock()
	m.rollWindowLocked(st, now)
	info := st.window
	st.mu.Unlock()
	return &info
}

// BreakerStatus returns a provider's breaker snapshot, nil for unknown
// providers.
func (m *Manager) BreakerStatus(providerID string) *breaker.Status {
	st := m.provider(providerID)
	if st == nil {
		return nil
	}
	s := st.breaker.Status()
	return &s
}

// AllBreakerStatuses returns breaker snapshots keyed by provider.
func (m *Manager) AllBreakerStatuses() map[string]breaker.Status {
	states := m.statesByID()
	out := make(map[string]breaker.Status, len(states))
	for id, st := range states {
		out[id] = st.breaker.Status()
	}
	return out
}

// QueueStats returns one provider's queue summary, nil for unknown
// providers.
func (m *Manager) QueueStats(providerID string) *queue.Stats {
	st := m.provider(providerID)
	if st == nil {
		return nil
	}
	s := st.queue.Stats()
	return &s
}

// AllQueueStats aggregates every provider queue into one summary.
func (m *Manager) AllQueueStats() queue.Stats {
	agg := queue.Stats{
		ByPriority: make(map[string]int),
		ByProvider: make(map[string]int),
	}

	for _, st := range m.states() {
		s := st.queue.Stats()
		agg.TotalRequests += s.TotalRequests
		for k, v := range s.ByPriority {
			agg.ByPriority[k] += v
		}
		for k, v := range s.ByProvider {
			agg.ByProvider[k] += v
		}
		if s.OldestAge > agg.OldestAge {
			agg.OldestAge = s.OldestAge
		}
	}
	return agg
}

// UsageHistory returns recorded usage samples, newest first.
func (m *Manager) UsageHistory() []usage.Sample {
	samples, err := m.recorder.Samples(context.Background(), usage.Filter{})
	if err != nil {
		m.logger.Error("usage history read failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return samples
}

// UsageTotals aggregates recorded usage over a filter.
func (m *Manager) UsageTotals(f usage.Filter) (usage.Totals, error) {
	return m.recorder.Totals(context.Background(), f)
}

// ForceCircuitOpen opens a provider's breaker regardless of failure
// history. Unknown providers are ignored.
func (m *Manager) ForceCircuitOpen(providerID string) {
	if st := m.provider(providerID); st != nil {
		st.breaker.ForceOpen()
	}
}

// ForceCircuitClose closes a provider's breaker and resets its
// counters. Unknown providers are ignored.
func (m *Manager) ForceCircuitClose(providerID string) {
	if st := m.provider(providerID); st != nil {
		st.breaker.ForceClose()
	}
}

// ResetBudgetPeriod zeroes the spend ledger and restarts its period.
func (m *Manager) ResetBudgetPeriod() {
	m.ledger.Reset()
}

// Subscribe registers a listener for every event from the manager, its
// breakers and its queues. Listeners run synchronously and are
// isolated: a panicking listener cannot disturb admission.
func (m *Manager) Subscribe(fn events.Listener) *events.Subscription {
	return m.emitter.Subscribe(fn)
}

// Emitter exposes the manager's event emitter, for bus bridges and
// telemetry listeners.
func (m *Manager) Emitter() *events.Emitter {
	return m.emitter
}

// Close stops the drain loop if running and releases the usage
// recorder when the manager created it.
func (m *Manager) Close() error {
	if m.running.Load() {
		m.Stop()
	}
	if m.ownRecorder {
		return m.recorder.Close()
	}
	return nil
}

func (m *Manager) states() []*providerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*providerState, 0, len(m.providers))
	for _, st := range m.providers {
		out = append(out, st)
	}
	return out
}

func (m *Manager) statesByID() map[string]*providerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*providerState, len(m.providers))
	for id, st := range m.providers {
		out[id] = st
	}
	return out
}
