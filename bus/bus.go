// Package bus provides a topic-based publish/subscribe MessageBus with a
// bounded history buffer. It decouples evaluators and engine components from
// each other: publishers never know who listens.
package bus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stingtools/council/logging"
)

// Wildcard subscribes to every topic.
const Wildcard = "*"

// Well-known topics published by the engine.
const (
	TopicConsensusCompleted = "consensus.completed"
	TopicIterationCompleted = "session.iteration.completed"
	TopicSessionCompleted   = "session.completed"
)

// DefaultHistoryCapacity is the number of messages retained when no capacity is configured.
const DefaultHistoryCapacity = 1000

// Message is one published event. ID and Timestamp are assigned by Publish.
type Message struct {
	ID        uint64            `json:"id"`
	Topic     string            `json:"topic"`
	SenderID  string            `json:"sender_id"`
	Payload   any               `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler receives a delivered message. A returned error or a panic is
// logged and never reaches the publisher or other subscribers.
type Handler func(ctx context.Context, msg Message) error

type subscription struct {
	id      string
	agentID string
	topic   string
	handler Handler
}

// Options configures a Bus.
type Options struct {
	// HistoryCapacity bounds the circular history; values <= 0 use DefaultHistoryCapacity.
	HistoryCapacity int
	Logger          logging.Logger
}

// Bus is a concurrent-safe topic fan-out with a bounded circular history.
//
// Within one Publish call every matching subscriber runs in its own goroutine
// and all are joined before Publish returns. No delivery order is guaranteed
// between subscribers, nor between messages on different topics.
type Bus struct {
	logger logging.Logger
	nextID atomic.Uint64

	mu            sync.RWMutex
	subscriptions map[string][]subscription // topic -> subscriptions

	histMu  sync.Mutex
	history []Message
	head    int // index of the next write
	size    int
}

// New creates a Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{HistoryCapacity: DefaultHistoryCapacity}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	return &Bus{
		logger:        logging.OrNoOp(opts.Logger),
		subscriptions: make(map[string][]subscription),
		history:       make([]Message, opts.HistoryCapacity),
	}
}

// Subscribe registers handler for topic on behalf of agentID and returns a
// subscription id. Registrations are not deduplicated: subscribing the same
// agent to the same topic twice delivers twice.
func (b *Bus) Subscribe(agentID, topic string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{
		id:      uuid.NewString(),
		agentID: agentID,
		topic:   topic,
		handler: handler,
	}
	b.subscriptions[topic] = append(b.subscriptions[topic], sub)
	return sub.id
}

// Unsubscribe removes every registration of agentID on topic and returns how
// many were removed.
func (b *Bus) Unsubscribe(agentID, topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(topic, func(s subscription) bool { return s.agentID == agentID })
}

// UnsubscribeAll removes every registration of agentID on any topic.
func (b *Bus) UnsubscribeAll(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for topic := range b.subscriptions {
		removed += b.removeLocked(topic, func(s subscription) bool { return s.agentID == agentID })
	}
	return removed
}

// UnsubscribeID removes a single registration by the id Subscribe returned.
func (b *Bus) UnsubscribeID(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic := range b.subscriptions {
		if b.removeLocked(topic, func(s subscription) bool { return s.id == id }) > 0 {
			return true
		}
	}
	return false
}

// removeLocked drops matching subscriptions from topic; caller holds mu.
func (b *Bus) removeLocked(topic string, match func(subscription) bool) int {
	subs := b.subscriptions[topic]
	kept := subs[:0:0]
	for _, s := range subs {
		if !match(s) {
			kept = append(kept, s)
		}
	}
	removed := len(subs) - len(kept)
	if len(kept) == 0 {
		delete(b.subscriptions, topic)
	} else {
		b.subscriptions[topic] = kept
	}
	return removed
}

// SubscriptionCount returns the total number of active registrations.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subscriptions {
		n += len(subs)
	}
	return n
}

// Publish stamps msg with the next id and the current time, records it in
// history and delivers it concurrently to exact-topic and wildcard
// subscribers, skipping subscriptions owned by the sender. It returns the
// stamped message once every delivery has finished.
func (b *Bus) Publish(ctx context.Context, msg Message) Message {
	msg = b.record(msg)

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subscriptions[msg.Topic])+len(b.subscriptions[Wildcard]))
	for _, s := range b.subscriptions[msg.Topic] {
		if s.agentID != msg.SenderID {
			targets = append(targets, s)
		}
	}
	if msg.Topic != Wildcard {
		for _, s := range b.subscriptions[Wildcard] {
			if s.agentID != msg.SenderID {
				targets = append(targets, s)
			}
		}
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range targets {
		wg.Add(1)
		go func(s subscription) {
			defer wg.Done()
			b.deliver(ctx, s, msg)
		}(s)
	}
	wg.Wait()
	return msg
}

// deliver invokes one handler, isolating its errors and panics.
func (b *Bus) deliver(ctx context.Context, s subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				"topic", msg.Topic, "message_id", msg.ID, "subscriber", s.agentID,
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	if err := s.handler(ctx, msg); err != nil {
		b.logger.Warn("bus handler failed",
			"topic", msg.Topic, "message_id", msg.ID, "subscriber", s.agentID, "error", err)
	}
}

// record stamps msg and appends it to history under one lock so history
// order always matches id order.
func (b *Bus) record(msg Message) Message {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	msg.ID = b.nextID.Add(1)
	msg.Timestamp = time.Now()
	b.history[b.head] = msg
	b.head = (b.head + 1) % len(b.history)
	if b.size < len(b.history) {
		b.size++
	}
	return msg
}

// History returns retained messages matching filter, most recent first, at
// most limit of them. A nil filter matches everything; limit <= 0 means no limit.
func (b *Bus) History(filter func(Message) bool, limit int) []Message {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	var out []Message
	for i := 0; i < b.size; i++ {
		idx := (b.head - 1 - i + len(b.history)) % len(b.history)
		m := b.history[idx]
		if filter != nil && !filter(m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// TopicFilter returns a History filter matching one topic.
func TopicFilter(topic string) func(Message) bool {
	return func(m Message) bool { return m.Topic == topic }
}
