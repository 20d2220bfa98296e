// Package swarm shares circuit-breaker state across agent processes.
//
// A provider outage discovered by one agent is an outage for every
// agent. The Coordinator ties an admission.Manager to the message bus
// so breaker transitions propagate: the first agent to trip a breaker
// announces it, and every other agent forces its own breaker for that
// provider into the same state instead of burning failures to discover
// the outage independently.
//
//	coord, err := swarm.New(swarm.Config{
//	    Bus:     nbus,
//	    AgentID: "agent-1",
//	    Manager: mgr,
//	})
//	if err != nil {
//	    return err
//	}
//	defer coord.Close()
//
// Announcements are JSON StateChange messages on gate.circuit.state.
// With the NATS bus backend this works across machines; with the
// memory bus it coordinates managers inside one process.
package swarm
