package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is an active registration in a bus's registry.
type Subscription struct {
	id       string
	owner    string
	patterns []Pattern
	sub      Subscriber
	opts     SubscribeOptions

	bus *Bus
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() string {
	return s.id
}

// Owner returns the owning collaborator's name, if one was given.
func (s *Subscription) Owner() string {
	return s.owner
}

// Patterns returns the subscription's pattern texts.
func (s *Subscription) Patterns() []string {
	texts := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		texts[i] = p.String()
	}
	return texts
}

// Unsubscribe removes the subscription from its bus. Calling it twice,
// or after the bus has been reset, is a no-op.
func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.Unsubscribe(s.id)
	}
}

// matchSegments reports whether any of the subscription's patterns
// matches an already-split topic.
func (s *Subscription) matchSegments(topic []string) bool {
	for _, p := range s.patterns {
		if p.matchSegments(topic) {
			return true
		}
	}
	return false
}

// matches reports whether any pattern matches a topic string.
func (s *Subscription) matches(topic string) bool {
	if topic == "" {
		return false
	}
	return s.matchSegments(splitTopic(topic))
}

// Registry tracks active subscriptions. Registration order is
// preserved and is the delivery order for every topic: collaborators
// rely on first-registered, first-delivered to reason about
// sequencing.
type Registry struct {
	mu    sync.RWMutex
	order []*Subscription
	byID  map[string]*Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Subscription),
	}
}

// Register adds a subscription and returns it.
func (r *Registry) Register(patterns []Pattern, sub Subscriber, opts SubscribeOptions) *Subscription {
	s := &Subscription{
		id:       uuid.NewString(),
		owner:    opts.Owner,
		patterns: patterns,
		sub:      sub,
		opts:     opts,
	}

	r.mu.Lock()
	r.order = append(r.order, s)
	r.byID[s.id] = s
	r.mu.Unlock()

	return s
}

// Unregister removes a subscription by id. Unknown and
// already-removed ids are a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)

	for i, s := range r.order {
		if s.id == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Matching returns a registration-order snapshot of the subscriptions
// whose patterns match an already-split topic. The snapshot stays
// valid while the registry mutates, which makes mid-dispatch
// subscribe/unsubscribe safe for the in-flight delivery loop.
func (r *Registry) Matching(topic []string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Subscription
	for _, s := range r.order {
		if s.matchSegments(topic) {
			matched = append(matched, s)
		}
	}
	return matched
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Reset drops every subscription.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byID = make(map[string]*Subscription)
}
