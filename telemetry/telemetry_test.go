package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/gatekit/events"
)

func TestNoopExporter(t *testing.T) {
	exp := NewNoopExporter()

	// Should not panic
	exp.LogEvent("test", map[string]interface{}{"key": "value"})
	exp.LogAdmission(Admission{ProviderID: "anthropic"})

	if err := exp.Flush(); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFileExporter(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "telemetry.jsonl")

	exp, err := NewFileExporter(path)
	if err != nil {
		t.Fatalf("NewFileExporter() error = %v", err)
	}
	defer exp.Close()

	// Log event
	exp.LogEvent("circuit_opened", map[string]interface{}{"provider_id": "openai"})

	// Log admission decision
	exp.LogAdmission(Admission{
		ProviderID: "anthropic",
		AgentID:    "agent-1",
		RequestID:  "req-42",
		ModelID:    "claude-3-haiku",
		Allowed:    true,
		Tokens:     TokenCount{Input: 100, Output: 50},
		CostUSD:    0.0003,
	})

	exp.Flush()

	// Verify file exists and has content
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("expected non-empty file")
	}

	// Should have two lines (event + admission)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}
}

func TestFileExporterStampsTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")

	exp, err := NewFileExporter(path)
	if err != nil {
		t.Fatalf("NewFileExporter() error = %v", err)
	}
	defer exp.Close()

	exp.LogAdmission(Admission{ProviderID: "gemini", Allowed: false, Reason: "Queue is full"})
	exp.Flush()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var adm Admission
	if err := json.Unmarshal(data[:len(data)-1], &adm); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if adm.Timestamp.IsZero() {
		t.Error("expected timestamp to be stamped")
	}
	if adm.Reason != "Queue is full" {
		t.Errorf("Reason = %q, want %q", adm.Reason, "Queue is full")
	}
}

func TestHTTPExporterFlush(t *testing.T) {
	var mu sync.Mutex
	var received [][]map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var batch []map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decode body: %v", err)
		}
		mu.Lock()
		received = append(received, batch)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exp := NewHTTPExporter(srv.URL)

	exp.LogAdmission(Admission{ProviderID: "anthropic", Allowed: true})
	exp.LogEvent("rate_limit_hit", map[string]interface{}{"provider_id": "anthropic"})

	if err := exp.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(received))
	}
	if len(received[0]) != 2 {
		t.Errorf("expected 2 items in batch, got %d", len(received[0]))
	}
}

func TestHTTPExporterAutoFlush(t *testing.T) {
	var mu sync.Mutex
	batches := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		batches++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exp := NewHTTPExporter(srv.URL)

	// Buffer flushes itself once it reaches 100 entries.
	for i := 0; i < 100; i++ {
		exp.LogEvent("request_processed", map[string]interface{}{"n": i})
	}

	mu.Lock()
	defer mu.Unlock()
	if batches != 1 {
		t.Errorf("expected 1 auto-flushed batch, got %d", batches)
	}
}

func TestHTTPExporterErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exp := NewHTTPExporter(srv.URL)
	exp.LogEvent("budget_exceeded", nil)

	if err := exp.Flush(); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		protocol string
		wantErr  bool
	}{
		{"noop", false},
		{"", false},
		{"unknown", true},
	}

	for _, tt := range tests {
		t.Run(tt.protocol, func(t *testing.T) {
			exp, err := NewExporter(tt.protocol, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("NewExporter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if exp != nil {
				exp.Close()
			}
		})
	}
}

// captureExporter records everything logged to it.
type captureExporter struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureExporter) LogEvent(name string, data map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{Name: name, Data: data})
}

func (c *captureExporter) LogAdmission(adm Admission) {}
func (c *captureExporter) Flush() error               { return nil }
func (c *captureExporter) Close() error               { return nil }

func TestEventListener(t *testing.T) {
	cap := &captureExporter{}
	em := events.NewEmitter()
	sub := em.Subscribe(EventListener(cap))
	defer sub.Unsubscribe()

	em.Emit(events.Event{
		Type:       events.TypeCircuitOpened,
		ProviderID: "openai",
		AgentID:    "agent-7",
		Data:       map[string]interface{}{"failure_count": 5},
		Timestamp:  time.Now(),
	})

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(cap.events))
	}
	got := cap.events[0]
	if got.Name != "circuit_opened" {
		t.Errorf("Name = %q, want circuit_opened", got.Name)
	}
	if got.Data["provider_id"] != "openai" {
		t.Errorf("provider_id = %v, want openai", got.Data["provider_id"])
	}
	if got.Data["agent_id"] != "agent-7" {
		t.Errorf("agent_id = %v, want agent-7", got.Data["agent_id"])
	}
	if got.Data["failure_count"] != 5 {
		t.Errorf("failure_count = %v, want 5", got.Data["failure_count"])
	}
}
