// Package events defines the admission event stream and its fan-out.
//
// # Overview
//
// Every observable occurrence in the admission layer (a request queued,
// a window limit hit, a breaker transition, a budget refusal) is an
// Event with one of eight types. The Emitter fans events out to
// subscribed listeners synchronously, in subscription order.
//
// # Subscribing
//
//	em := events.NewEmitter()
//	sub := em.Subscribe(func(e events.Event) {
//	    if e.Type == events.TypeCircuitOpened {
//	        // react to the breaker opening
//	    }
//	})
//	defer sub.Unsubscribe()
//
// # Listener Isolation
//
// Listeners run outside the emitter's lock and panics are contained, so
// one faulty observer cannot break admission decisions or starve other
// listeners. Listeners still run on the emitting goroutine: a listener
// that blocks delays the caller, so hand off to a channel or goroutine
// for slow work.
//
// # Bridging to a Bus
//
// Bridge publishes every event as JSON onto a message bus for other
// processes to consume:
//
//	bridge := events.NewBridge(em, natsBus, "")
//	defer bridge.Close()
//	// remote side:
//	sub, _ := natsBus.Subscribe("gate.events.*")
package events
