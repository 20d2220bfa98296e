package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMemoryCapacity bounds the in-memory sample window.
const DefaultMemoryCapacity = 10000

// MemoryRecorder keeps the most recent samples in memory. When the
// capacity is reached the oldest samples are evicted.
type MemoryRecorder struct {
	mu       sync.Mutex
	capacity int
	samples  []Sample
}

var _ Recorder = (*MemoryRecorder)(nil)

// NewMemoryRecorder creates a recorder retaining at most capacity
// samples. Zero or negative capacity uses DefaultMemoryCapacity.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRecorder{capacity: capacity}
}

func (r *MemoryRecorder) Record(ctx context.Context, s *Sample) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples = append(r.samples, *s)
	if len(r.samples) > r.capacity {
		overflow := len(r.samples) - r.capacity
		r.samples = append(r.samples[:0], r.samples[overflow:]...)
	}
	return nil
}

func (r *MemoryRecorder) Samples(ctx context.Context, f Filter) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Walk newest to oldest so Limit keeps the most recent samples.
	var out []Sample
	for i := len(r.samples) - 1; i >= 0; i-- {
		if !f.matches(r.samples[i]) {
			continue
		}
		out = append(out, r.samples[i])
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRecorder) Totals(ctx context.Context, f Filter) (Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	totals := Totals{
		ByProvider: make(map[string]float64),
		ByModel:    make(map[string]float64),
	}
	for _, s := range r.samples {
		if !f.matches(s) {
			continue
		}
		totals.Count++
		totals.InputTokens += int64(s.InputTokens)
		totals.OutputTokens += int64(s.OutputTokens)
		totals.CostUSD += s.CostUSD
		totals.ByProvider[s.ProviderID] += s.CostUSD
		if s.ModelID != "" {
			totals.ByModel[s.ModelID] += s.CostUSD
		}
	}
	return totals, nil
}

func (r *MemoryRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples = nil
	return nil
}
