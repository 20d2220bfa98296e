// Package pricing maintains per-provider, per-model token prices and
// computes cost estimates for admission and budget decisions.
//
// Prices are expressed in USD per million tokens, the unit provider
// price sheets publish. Tables can be seeded from DefaultTable, merged
// from TOML or YAML price files, or populated directly with SetModel.
package pricing

import (
	"errors"
	"sort"
	"sync"
)

// Common errors.
var (
	ErrNoProvider = errors.New("pricing file missing provider name")
	ErrNoModels   = errors.New("pricing file has no models")
)

const tokensPerMillion = 1_000_000

// ModelPricing holds USD prices per million tokens for one model.
type ModelPricing struct {
	Model            string  `toml:"model" yaml:"model" json:"model"`
	InputPerMillion  float64 `toml:"input_per_million" yaml:"input_per_million" json:"input_per_million"`
	OutputPerMillion float64 `toml:"output_per_million" yaml:"output_per_million" json:"output_per_million"`
}

// InputPerToken returns the USD price of a single input token.
func (mp ModelPricing) InputPerToken() float64 {
	return mp.InputPerMillion / tokensPerMillion
}

// OutputPerToken returns the USD price of a single output token.
func (mp ModelPricing) OutputPerToken() float64 {
	return mp.OutputPerMillion / tokensPerMillion
}

// ProviderPricing is one provider's price list as carried by a TOML or
// YAML pricing file.
type ProviderPricing struct {
	Provider string         `toml:"provider" yaml:"provider"`
	Updated  string         `toml:"updated" yaml:"updated"`
	Models   []ModelPricing `toml:"models" yaml:"models"`
}

// Estimate is the projected USD cost of one call.
type Estimate struct {
	ProviderID   string  `json:"provider_id"`
	ModelID      string  `json:"model_id,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// EstimateAt computes an estimate from explicit per-token prices.
func EstimateAt(providerID, modelID string, costPerInput, costPerOutput float64, inputTokens, outputTokens int) Estimate {
	return Estimate{
		ProviderID:   providerID,
		ModelID:      modelID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      float64(inputTokens)*costPerInput + float64(outputTokens)*costPerOutput,
	}
}

// Table is a registry of model prices keyed by provider and model.
type Table struct {
	mu        sync.RWMutex
	providers map[string]map[string]ModelPricing
}

// NewTable creates an empty pricing table.
func NewTable() *Table {
	return &Table{
		providers: make(map[string]map[string]ModelPricing),
	}
}

// SetModel adds or replaces one model's pricing.
func (t *Table) SetModel(provider string, mp ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.providers[provider] == nil {
		t.providers[provider] = make(map[string]ModelPricing)
	}
	t.providers[provider][mp.Model] = mp
}

// Merge adds every model from a provider price list.
func (t *Table) Merge(pp ProviderPricing) {
	for _, mp := range pp.Models {
		t.SetModel(pp.Provider, mp)
	}
}

// Lookup returns pricing for a provider's model.
func (t *Table) Lookup(provider, model string) (ModelPricing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	mp, ok := t.providers[provider][model]
	return mp, ok
}

// Providers returns all provider names, sorted.
func (t *Table) Providers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns a provider's price list, sorted by model name.
func (t *Table) Models(provider string) []ModelPricing {
	t.mu.RLock()
	defer t.mu.RUnlock()

	models := make([]ModelPricing, 0, len(t.providers[provider]))
	for _, mp := range t.providers[provider] {
		models = append(models, mp)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Model < models[j].Model
	})
	return models
}

// Estimate computes the cost of a call from table prices. ok is false
// when the provider or model is unknown; the zero-cost Estimate still
// carries the token counts.
func (t *Table) Estimate(provider, model string, inputTokens, outputTokens int) (Estimate, bool) {
	mp, ok := t.Lookup(provider, model)
	if !ok {
		return Estimate{
			ProviderID:   provider,
			ModelID:      model,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		}, false
	}
	return EstimateAt(provider, model, mp.InputPerToken(), mp.OutputPerToken(), inputTokens, outputTokens), true
}

// DefaultTable returns a table seeded with current list prices for the
// major providers. Prices drift; load a maintained price file for
// anything cost-sensitive.
func DefaultTable() *Table {
	t := NewTable()

	t.Merge(ProviderPricing{
		Provider: "anthropic",
		Models: []ModelPricing{
			{Model: "claude-3.5-sonnet", InputPerMillion: 3.00, OutputPerMillion: 15.00},
			{Model: "claude-3-haiku", InputPerMillion: 0.25, OutputPerMillion: 1.25},
			{Model: "claude-3-opus", InputPerMillion: 15.00, OutputPerMillion: 75.00},
		},
	})
	t.Merge(ProviderPricing{
		Provider: "openai",
		Models: []ModelPricing{
			{Model: "gpt-4o", InputPerMillion: 2.50, OutputPerMillion: 10.00},
			{Model: "gpt-4o-mini", InputPerMillion: 0.15, OutputPerMillion: 0.60},
			{Model: "gpt-4", InputPerMillion: 30.00, OutputPerMillion: 60.00},
		},
	})
	t.Merge(ProviderPricing{
		Provider: "gemini",
		Models: []ModelPricing{
			{Model: "gemini-1.5-flash", InputPerMillion: 0.075, OutputPerMillion: 0.30},
			{Model: "gemini-1.5-pro", InputPerMillion: 1.25, OutputPerMillion: 5.00},
		},
	})

	return t
}
