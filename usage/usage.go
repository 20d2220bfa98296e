// Package usage records per-call token usage samples and answers
// aggregate queries over them.
//
// Two recorders are provided. MemoryRecorder keeps a capped in-process
// window and is the manager's default. SQLiteRecorder persists samples
// to a local database for accounting that survives restarts.
package usage

import (
	"context"
	"time"
)

// Sample is the token usage of one completed call.
type Sample struct {
	ID           string    `json:"id,omitempty"`
	ProviderID   string    `json:"provider_id"`
	AgentID      string    `json:"agent_id,omitempty"`
	ModelID      string    `json:"model_id,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Success      bool      `json:"success"`
	Timestamp    time.Time `json:"timestamp"`
}

// Filter narrows sample queries. Zero-valued fields match everything.
type Filter struct {
	ProviderID string
	AgentID    string
	ModelID    string

	// Since is inclusive, Until exclusive.
	Since time.Time
	Until time.Time

	// Limit caps the number of returned samples, newest first.
	// Zero means no limit.
	Limit int
}

func (f Filter) matches(s Sample) bool {
	if f.ProviderID != "" && s.ProviderID != f.ProviderID {
		return false
	}
	if f.AgentID != "" && s.AgentID != f.AgentID {
		return false
	}
	if f.ModelID != "" && s.ModelID != f.ModelID {
		return false
	}
	if !f.Since.IsZero() && s.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !s.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Totals aggregates the samples matching a filter.
type Totals struct {
	Count        int64              `json:"count"`
	InputTokens  int64              `json:"input_tokens"`
	OutputTokens int64              `json:"output_tokens"`
	CostUSD      float64            `json:"cost_usd"`
	ByProvider   map[string]float64 `json:"by_provider"`
	ByModel      map[string]float64 `json:"by_model"`
}

// Recorder persists usage samples.
type Recorder interface {
	// Record stores one sample, assigning ID and Timestamp when unset.
	Record(ctx context.Context, s *Sample) error

	// Samples returns matching samples, newest first.
	Samples(ctx context.Context, f Filter) ([]Sample, error)

	// Totals aggregates cost and token counts over matching samples.
	Totals(ctx context.Context, f Filter) (Totals, error)

	// Close releases resources.
	Close() error
}
