package bus

import "sync"

// RetainedStore caches the most recent retained message per exact
// topic. Entries are keyed by literal topic, never by pattern; a new
// wildcard subscriber is served by scanning All and testing each topic
// against its patterns. Entries live until Clear or Reset, with no
// automatic expiry.
type RetainedStore struct {
	mu      sync.RWMutex
	entries map[string]*Message
}

// NewRetainedStore creates an empty retained store.
func NewRetainedStore() *RetainedStore {
	return &RetainedStore{
		entries: make(map[string]*Message),
	}
}

// Set stores msg as the retained message for topic. A later Set on the
// same topic replaces the previous message entirely; there is no
// history or merge.
func (s *RetainedStore) Set(topic string, msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[topic] = msg
}

// Get returns the retained message for an exact topic, or nil.
func (s *RetainedStore) Get(topic string) *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[topic]
}

// All returns a snapshot of every retained message. The slice is safe
// to iterate while the store mutates.
func (s *RetainedStore) All() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Message, 0, len(s.entries))
	for _, msg := range s.entries {
		all = append(all, msg)
	}
	return all
}

// Clear removes the retained entry for an exact topic. Unknown topics
// are a no-op.
func (s *RetainedStore) Clear(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, topic)
}

// Len returns the number of retained entries.
func (s *RetainedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops every retained entry.
func (s *RetainedStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Message)
}
