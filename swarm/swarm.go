package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/gatekit/admission"
	"github.com/vinayprograms/gatekit/breaker"
	"github.com/vinayprograms/gatekit/bus"
	"github.com/vinayprograms/gatekit/events"
)

// SubjectCircuitState is the bus subject breaker transitions are
// announced on.
const SubjectCircuitState = "gate.circuit.state"

// ErrInvalidConfig indicates missing or contradictory configuration.
var ErrInvalidConfig = errors.New("swarm: invalid configuration")

// StateChange announces one breaker transition to the swarm.
type StateChange struct {
	// AgentID identifies the announcing process.
	AgentID string `json:"agent_id"`

	// ProviderID is the provider whose breaker changed.
	ProviderID string `json:"provider_id"`

	// OldState is the state before the transition.
	OldState string `json:"old_state,omitempty"`

	// NewState is the state after the transition.
	NewState string `json:"new_state"`

	// Reason describes what caused the transition.
	Reason string `json:"reason,omitempty"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// OnStateChange is called for every applied remote announcement.
type OnStateChange func(change *StateChange)

// Config configures a Coordinator.
type Config struct {
	// Bus carries announcements between processes.
	Bus bus.MessageBus

	// AgentID is the unique identifier for this process. Announcements
	// carrying it are ignored on receipt.
	AgentID string

	// Manager is the admission manager whose breakers are shared.
	Manager *admission.Manager

	// Subject overrides the announcement subject.
	// Default: SubjectCircuitState
	Subject string
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	if c.AgentID == "" {
		return ErrInvalidConfig
	}
	if c.Manager == nil {
		return ErrInvalidConfig
	}
	return nil
}

// Coordinator propagates circuit-breaker transitions between agent
// processes over the message bus.
//
// When the local manager opens or closes a breaker, the coordinator
// broadcasts a StateChange; when another agent's announcement arrives,
// it forces the local breaker into the announced state. One agent
// hitting a provider outage therefore shields the whole swarm from it.
//
// Applying a remote announcement re-emits the transition locally and
// so re-broadcasts it once, but forcing a breaker into its current
// state emits nothing, which is what stops announcements from looping.
type Coordinator struct {
	config Config

	sub   bus.Subscription
	evSub *events.Subscription

	mu       sync.RWMutex
	callback OnStateChange

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordinator and starts listening for announcements.
func New(config Config) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Subject == "" {
		config.Subject = SubjectCircuitState
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	sub, err := config.Bus.Subscribe(config.Subject)
	if err != nil {
		cancel()
		return nil, err
	}
	c.sub = sub

	c.evSub = config.Manager.Subscribe(c.onLocalEvent)

	c.wg.Add(1)
	go c.listenForUpdates()

	return c, nil
}

// onLocalEvent broadcasts local breaker transitions.
func (c *Coordinator) onLocalEvent(e events.Event) {
	var newState string
	switch e.Type {
	case events.TypeCircuitOpened:
		newState = string(breaker.StateOpen)
	case events.TypeCircuitClosed:
		newState = string(breaker.StateClosed)
	default:
		return
	}

	change := StateChange{
		AgentID:    c.config.AgentID,
		ProviderID: e.ProviderID,
		NewState:   newState,
		Timestamp:  e.Timestamp,
	}
	if old, ok := e.Data["old_state"].(string); ok {
		change.OldState = old
	}
	switch e.Type {
	case events.TypeCircuitOpened:
		if n, ok := e.Data["failure_count"].(int); ok && n > 0 {
			change.Reason = fmt.Sprintf("%d recent failures", n)
		} else {
			change.Reason = "forced open"
		}
	case events.TypeCircuitClosed:
		change.Reason = "recovered"
	}

	data, err := json.Marshal(change)
	if err != nil {
		return
	}
	_ = c.config.Bus.Publish(c.config.Subject, data)
}

// listenForUpdates processes announcements from other agents.
func (c *Coordinator) listenForUpdates() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-c.sub.Messages():
			if !ok {
				return
			}
			c.handleUpdate(msg)
		}
	}
}

// handleUpdate applies a single announcement.
func (c *Coordinator) handleUpdate(msg *bus.Message) {
	var change StateChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		return // ignore malformed announcements
	}

	// Ignore our own announcements
	if change.AgentID == c.config.AgentID {
		return
	}

	switch breaker.State(change.NewState) {
	case breaker.StateOpen:
		c.config.Manager.ForceCircuitOpen(change.ProviderID)
	case breaker.StateClosed:
		c.config.Manager.ForceCircuitClose(change.ProviderID)
	default:
		return
	}

	c.mu.RLock()
	callback := c.callback
	c.mu.RUnlock()

	if callback != nil {
		callback(&change)
	}
}

// OnStateChange sets a callback invoked after a remote announcement is
// applied.
func (c *Coordinator) OnStateChange(cb OnStateChange) {
	c.mu.Lock()
	c.callback = cb
	c.mu.Unlock()
}

// Close stops broadcasting and listening. Safe to call more than once.
func (c *Coordinator) Close() error {
	c.cancel()

	c.evSub.Unsubscribe()
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}

	// Wait for the listener with a timeout
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	return nil
}
