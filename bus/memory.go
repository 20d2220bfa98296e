package bus

import (
	"sync"
	"sync/atomic"
)

// MemoryBus implements MessageBus using in-process channels.
// Useful for testing and for swarms running inside one process.
//
// Unlike NATS it holds no broker state: sends to a subscriber whose
// buffer is full are dropped rather than queued.
type MemoryBus struct {
	config Config

	mu     sync.RWMutex
	subs   []*memorySub
	closed atomic.Bool
}

type memorySub struct {
	pattern string
	queue   string
	ch      chan *Message
	closed  atomic.Bool
	bus     *MemoryBus
}

// NewMemoryBus creates a new in-memory message bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &MemoryBus{
		config: cfg,
	}
}

// Publish sends a message to all subscribers whose pattern matches.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if hasWildcard(subject) {
		return ErrInvalidSubject
	}
	if b.closed.Load() {
		return ErrClosed
	}

	msg := &Message{
		Subject: subject,
		Data:    data,
	}

	b.mu.RLock()
	var plain []*memorySub
	var groups map[string][]*memorySub
	for _, sub := range b.subs {
		if sub.closed.Load() || !MatchSubject(sub.pattern, subject) {
			continue
		}
		if sub.queue == "" {
			plain = append(plain, sub)
			continue
		}
		if groups == nil {
			groups = make(map[string][]*memorySub)
		}
		key := sub.pattern + " " + sub.queue
		groups[key] = append(groups[key], sub)
	}
	b.mu.RUnlock()

	for _, sub := range plain {
		sub.deliver(msg)
	}
	for _, qsubs := range groups {
		deliverToOne(qsubs, msg)
	}

	return nil
}

// deliver sends without blocking the publisher.
func (s *memorySub) deliver(msg *Message) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- msg:
	default:
		// Buffer full, drop message
	}
}

// deliverToOne hands the message to the first queue member with room.
func deliverToOne(subs []*memorySub, msg *Message) {
	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		select {
		case sub.ch <- msg:
			return
		default:
		}
	}
}

// Subscribe creates a subscription to a subject pattern.
func (b *MemoryBus) Subscribe(subject string) (Subscription, error) {
	return b.subscribe(subject, "")
}

// QueueSubscribe creates a queue subscription.
func (b *MemoryBus) QueueSubscribe(subject, queue string) (Subscription, error) {
	if queue == "" {
		return nil, ErrInvalidQueue
	}
	return b.subscribe(subject, queue)
}

func (b *MemoryBus) subscribe(subject, queue string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		pattern: subject,
		queue:   queue,
		ch:      make(chan *Message, b.config.BufferSize),
		bus:     b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// Close shuts down the bus and closes all subscription channels.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	b.subs = nil

	return nil
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.bus.mu.Lock()
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()

	close(s.ch)
	return nil
}

var _ MessageBus = (*MemoryBus)(nil)
var _ Subscription = (*memorySub)(nil)
