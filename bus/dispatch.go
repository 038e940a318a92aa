package bus

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/widgetkit/topicbus/logging"
)

// Bus is the single entry point collaborators publish and subscribe
// through. Each Bus owns its own retained store and subscription
// registry; independent instances never share state.
type Bus struct {
	config   Config
	log      *logging.Logger
	retained *RetainedStore
	registry *Registry
	closed   atomic.Bool
	seq      atomic.Uint64
}

// New creates a bus.
func New(cfg Config) *Bus {
	if cfg.DefaultRequestTimeout <= 0 {
		cfg.DefaultRequestTimeout = DefaultConfig().DefaultRequestTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	return &Bus{
		config:   cfg,
		log:      log.WithComponent("bus"),
		retained: NewRetainedStore(),
		registry: NewRegistry(),
	}
}

// splitTopic splits a validated topic into segments.
func splitTopic(topic string) []string {
	return strings.Split(topic, ".")
}

// Publish delivers a message synchronously, in registration order, to
// every subscriber matching the topic at the moment the call starts.
// Subscriber failures are contained and logged; Publish only fails for
// a malformed topic or a closed bus.
func (b *Bus) Publish(topic string, data any, opts PublishOptions) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	msg := &Message{
		Topic:         topic,
		Data:          data,
		Retain:        opts.Retain,
		ReplyTo:       opts.ReplyTo,
		CorrelationID: opts.CorrelationID,
		Headers:       opts.Headers,
		Timestamp:     time.Now(),
		seq:           b.seq.Add(1),
	}

	if msg.Retain {
		b.retained.Set(topic, msg)
	}

	b.dispatch(msg)
	return nil
}

// dispatch fans a message out to the current snapshot of matching
// subscriptions. No lock is held while callbacks run, so a callback may
// publish again or mutate subscriptions; the nested publish gets a
// fresh snapshot and the in-flight loop keeps its own.
func (b *Bus) dispatch(msg *Message) {
	for _, s := range b.registry.Matching(splitTopic(msg.Topic)) {
		b.deliver(s, msg)
	}
}

// deliver invokes a single subscriber, containing errors and panics.
func (b *Bus) deliver(s *Subscription, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panic", map[string]interface{}{
				"topic":        msg.Topic,
				"subscription": s.id,
				"owner":        s.owner,
				"panic":        r,
			})
		}
	}()

	if err := s.sub.Deliver(msg); err != nil {
		b.log.Warn("subscriber error", map[string]interface{}{
			"topic":        msg.Topic,
			"subscription": s.id,
			"owner":        s.owner,
			"error":        err.Error(),
		})
	}
}

// Subscribe registers a subscriber for one or more topic patterns and
// returns the active subscription. An empty pattern list falls back to
// the match-everything pattern "*". With SubscribeOptions.Retained set,
// matching retained messages are replayed to the new subscriber, and
// only to it, before Subscribe returns.
func (b *Bus) Subscribe(patterns []string, sub Subscriber, opts SubscribeOptions) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if len(patterns) == 0 {
		patterns = []string{MatchAll}
	}
	parsed, err := ParsePatterns(patterns)
	if err != nil {
		return nil, err
	}

	s := b.registry.Register(parsed, sub, opts)
	s.bus = b

	if opts.Retained {
		b.replayRetained(s)
	}
	return s, nil
}

// replayRetained delivers matching retained messages to one new
// subscriber. Wildcard patterns require scanning every retained topic.
// Replay runs in original publish order.
func (b *Bus) replayRetained(s *Subscription) {
	all := b.retained.All()
	sort.Slice(all, func(i, j int) bool {
		return all[i].seq < all[j].seq
	})
	for _, msg := range all {
		if s.matches(msg.Topic) {
			b.deliver(s, msg)
		}
	}
}

// Unsubscribe removes a subscription by id. Unknown ids and repeated
// calls are a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.registry.Unregister(id)
}

// Retained returns the retained message for an exact topic, or nil.
func (b *Bus) Retained(topic string) *Message {
	return b.retained.Get(topic)
}

// ClearRetained removes the retained entry for an exact topic.
func (b *Bus) ClearRetained(topic string) {
	b.retained.Clear(topic)
}

// NumSubscriptions returns the number of active subscriptions.
func (b *Bus) NumSubscriptions() int {
	return b.registry.Len()
}

// Reset drops every subscription and retained message, returning the
// bus to its freshly-constructed state. Meant for test isolation; the
// bus stays usable.
func (b *Bus) Reset() {
	b.registry.Reset()
	b.retained.Reset()
}

// Close marks the bus closed and drops all state. Further publishes,
// subscribes and requests fail with ErrClosed. Closing twice is a
// no-op.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.registry.Reset()
	b.retained.Reset()
	return nil
}
