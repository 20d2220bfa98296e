// Package budget tracks cumulative USD spend against a total allowance
// over a rolling period.
//
// The ledger is shared by every provider the manager serves. It never
// refuses a spend on its own; admission decisions based on Fits belong
// to the caller. A total of zero or less disables enforcement while
// still accounting spend for reporting.
package budget

import (
	"sync"
	"time"
)

// Config controls the ledger's allowance and rollover period.
type Config struct {
	// TotalUSD is the allowance per period. Zero or negative disables
	// budget enforcement.
	TotalUSD float64

	// Period is how long spend accumulates before the ledger rolls
	// over to a fresh period. Zero or negative means the period never
	// rolls over on its own.
	Period time.Duration
}

// DefaultConfig returns a disabled ledger configuration with a daily
// period.
func DefaultConfig() Config {
	return Config{
		TotalUSD: 0,
		Period:   24 * time.Hour,
	}
}

// Status is a point-in-time snapshot of the ledger.
type Status struct {
	TotalUSD     float64       `json:"total_budget_usd"`
	UsedUSD      float64       `json:"used_budget_usd"`
	RemainingUSD float64       `json:"remaining_budget_usd"`
	PeriodStart  time.Time     `json:"period_start"`
	Period       time.Duration `json:"period_duration"`
	ProjectedUSD float64       `json:"projected_cost_usd,omitempty"`
}

// Ledger accumulates spend within the current period.
type Ledger struct {
	mu     sync.Mutex
	config Config
	used   float64
	start  time.Time

	nowFunc func() time.Time
}

// New creates a ledger whose first period starts now.
func New(config Config) *Ledger {
	l := &Ledger{
		config:  config,
		nowFunc: time.Now,
	}
	l.start = l.nowFunc()
	return l
}

// Enabled reports whether the ledger enforces its allowance.
func (l *Ledger) Enabled() bool {
	return l.config.TotalUSD > 0
}

// Fits reports whether spending costUSD would keep the period's total
// within the allowance. Always true when enforcement is disabled.
func (l *Ledger) Fits(costUSD float64) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollLocked()
	return l.used+costUSD <= l.config.TotalUSD
}

// Spend adds costUSD to the period's total. Negative costs are
// ignored so the ledger never decreases except at a period boundary.
func (l *Ledger) Spend(costUSD float64) {
	if costUSD <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollLocked()
	l.used += costUSD
}

// Remaining returns the allowance minus the period's spend.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollLocked()
	return l.config.TotalUSD - l.used
}

// Status returns a snapshot of the current period.
func (l *Ledger) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollLocked()
	return Status{
		TotalUSD:     l.config.TotalUSD,
		UsedUSD:      l.used,
		RemainingUSD: l.config.TotalUSD - l.used,
		PeriodStart:  l.start,
		Period:       l.config.Period,
	}
}

// Reset discards the period's spend and starts a fresh period now.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.used = 0
	l.start = l.nowFunc()
}

// rollLocked starts a fresh period when the current one has elapsed.
func (l *Ledger) rollLocked() {
	if l.config.Period <= 0 {
		return
	}
	now := l.nowFunc()
	if now.Sub(l.start) >= l.config.Period {
		l.used = 0
		l.start = now
	}
}
