package events

import (
	"testing"
	"time"

	"github.com/vinayprograms/gatekit/bus"
)

func TestBridge_PublishesEvents(t *testing.T) {
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	defer mb.Close()

	em := NewEmitter()
	bridge := NewBridge(em, mb, "")
	defer bridge.Close()

	sub, err := mb.Subscribe("gate.events.*")
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer sub.Unsubscribe()

	em.Emit(Event{
		Type:       TypeRateLimitHit,
		ProviderID: "anthropic",
		AgentID:    "agent-7",
	})

	select {
	case msg := <-sub.Messages():
		if msg.Subject != "gate.events.rate_limit_hit" {
			t.Errorf("subject = %q", msg.Subject)
		}
		e, err := Unmarshal(msg.Data)
		if err != nil {
			t.Fatalf("Unmarshal error: %v", err)
		}
		if e.ProviderID != "anthropic" || e.AgentID != "agent-7" {
			t.Errorf("event = %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("bridged event missing timestamp")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for bridged event")
	}
}

func TestBridge_Subject(t *testing.T) {
	em := NewEmitter()
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	defer mb.Close()

	bridge := NewBridge(em, mb, "custom.prefix")
	defer bridge.Close()

	if got := bridge.Subject(TypeCircuitOpened); got != "custom.prefix.circuit_opened" {
		t.Errorf("Subject = %q", got)
	}
}

func TestBridge_CloseDetaches(t *testing.T) {
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	defer mb.Close()

	em := NewEmitter()
	bridge := NewBridge(em, mb, "")

	sub, _ := mb.Subscribe("gate.events.>")
	defer sub.Unsubscribe()

	bridge.Close()
	em.Emit(Event{Type: TypeRequestQueued})

	select {
	case msg := <-sub.Messages():
		t.Errorf("unexpected message on %q after Close", msg.Subject)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridge_ClosedBusDoesNotDisturbEmitter(t *testing.T) {
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	em := NewEmitter()
	bridge := NewBridge(em, mb, "")
	defer bridge.Close()

	mb.Close()

	received := 0
	em.Subscribe(func(e Event) { received++ })

	// Publish fails inside the bridge; other listeners still run
	em.Emit(Event{Type: TypeRequestQueued})

	if received != 1 {
		t.Errorf("received = %d, want 1", received)
	}
}
