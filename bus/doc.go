// Package bus provides message transports for sharing admission state
// across an agent swarm.
//
// # Overview
//
// The MessageBus interface carries two kinds of gatekit traffic between
// processes: admission events (published by events.Bridge under
// "gate.events.<type>") and circuit-breaker state changes (published by
// swarm.Coordinator under "gate.circuit.state"). All traffic is
// fire-and-forget pub/sub; nothing in gatekit waits for a reply.
//
// # Available Implementations
//
//   - NATSBus: production messaging using NATS
//   - MemoryBus: in-memory implementation for testing and single-process swarms
//
// # Subjects and Wildcards
//
// Subjects are dot-separated tokens. Subscription patterns may use "*"
// to match one token and ">" to match the remaining tokens:
//
//	sub, _ := mb.Subscribe("gate.events.*")       // every event type
//	sub, _ := mb.Subscribe("gate.events.circuit_opened")
//	sub, _ := mb.Subscribe("gate.>")              // everything gatekit publishes
//
// Both implementations honor the same pattern rules, so tests against
// MemoryBus carry over to NATS unchanged.
//
// # Queue Groups
//
// Queue subscriptions load-balance across members, which keeps exporter
// pools from double-shipping:
//
//	sub, _ := mb.QueueSubscribe("gate.events.>", "shippers")
//	// Each event reaches exactly one shipper in the group.
//
// # Delivery
//
// Subscribers consume from a buffered channel. A subscriber that falls
// behind loses messages rather than stalling publishers; size buffers
// for the expected event rate.
package bus
