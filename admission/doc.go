// Package admission gates agent traffic to rate-limited, metered
// providers.
//
// Agent swarms burn through provider quotas quickly: every agent calls
// the same APIs, each call costs money, and providers answer overload
// with 429s or bans. This package puts one decision point in front of
// those calls. A Manager tracks a rate window, a circuit breaker and a
// wait queue per provider, plus one spend budget shared by all of
// them, and answers a single question per request: proceed now, wait,
// or give up.
//
// # Admission Flow
//
// Ask before calling, record after:
//
//	mgr, err := admission.New(admission.Config{
//	    Budget: budget.Config{TotalUSD: 25},
//	    Providers: []admission.ProviderConfig{
//	        {ProviderID: "anthropic", RequestsPerMinute: 50, TokensPerMinute: 40000, ModelID: "claude-3.5-sonnet"},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	res := mgr.Check(admission.CheckRequest{
//	    ProviderID:      "anthropic",
//	    AgentID:         "researcher-1",
//	    EstimatedTokens: 2000,
//	})
//	if res.Allowed {
//	    resp := callProvider()
//	    mgr.Record("anthropic", resp.InputTokens, resp.OutputTokens, resp.Err == nil)
//	}
//
// Check is side-effect free on the counters: a thousand checks admit
// the same as one. Only Record advances the window, feeds the breaker
// and spends budget, so abandoned intents cost nothing.
//
// # Queueing and Drain
//
// A request the current window cannot absorb is queued rather than
// refused. Install a handler and start the drain loop to have queued
// requests dispatched automatically when capacity returns:
//
//	mgr.SetHandler(func(ctx context.Context, req *queue.Request) {
//	    resp := callProvider()
//	    mgr.Record(req.ProviderID, resp.InputTokens, resp.OutputTokens, resp.Err == nil)
//	})
//	mgr.Start(ctx)
//	defer mgr.Stop()
//
// The loop wakes on a timer and whenever a circuit closes, re-runs
// admission for each queue head, and hands dispatchable requests to
// the handler on their own goroutines. Queued requests that outlive
// their timeout are swept and rejected.
//
// # Failure Isolation
//
// Repeated Record failures open the provider's breaker; while open,
// Check refuses immediately and WaitTime says when a retry probe is
// due. ForceCircuitOpen and ForceCircuitClose override the automatic
// transitions, which is how swarm coordination propagates outages.
//
// # Events
//
// Everything observable is an event: queued, processed, rejected,
// rate_limit_hit, circuit transitions, budget_exceeded. Subscribe to
// feed dashboards, bridge onto NATS, or export telemetry:
//
//	mgr.Subscribe(logging.EventListener(log))
//
// # Best Practices
//
//   - Set per-provider limits slightly below the real quota for margin
//   - Estimate tokens honestly; the token window is only as good as
//     the estimates fed to it
//   - Call Record for failures too, or the breaker never learns
//   - Give interactive traffic PriorityHigh and batch work PriorityLow
package admission
