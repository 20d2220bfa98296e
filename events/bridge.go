package events

import (
	"github.com/vinayprograms/gatekit/bus"
)

// DefaultSubjectPrefix is the bus subject prefix for bridged events.
const DefaultSubjectPrefix = "gate.events"

// Bridge forwards emitted events onto a message bus as JSON, one subject
// per event type ("<prefix>.<type>"). Remote consumers subscribe with
// bus wildcards, e.g. "gate.events.*".
//
// Publication is best-effort: a full or closed bus never disturbs the
// admission path that emitted the event.
type Bridge struct {
	bus    bus.MessageBus
	prefix string
	sub    *Subscription
}

// NewBridge attaches a bridge to an emitter. An empty prefix selects
// DefaultSubjectPrefix.
func NewBridge(em *Emitter, mb bus.MessageBus, prefix string) *Bridge {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	b := &Bridge{
		bus:    mb,
		prefix: prefix,
	}
	b.sub = em.Subscribe(b.forward)
	return b
}

// forward publishes one event. Errors are dropped; the bridge must not
// throw back into the emitter.
func (b *Bridge) forward(e Event) {
	data, err := e.Marshal()
	if err != nil {
		return
	}
	b.bus.Publish(b.prefix+"."+string(e.Type), data)
}

// Subject returns the bus subject a given event type is published to.
func (b *Bridge) Subject(t Type) string {
	return b.prefix + "." + string(t)
}

// Close detaches the bridge from its emitter. The bus is not closed;
// the bridge does not own it.
func (b *Bridge) Close() {
	b.sub.Unsubscribe()
}
