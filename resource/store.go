package resource

import (
	"sync"

	"github.com/google/uuid"

	"github.com/widgetkit/topicbus/bus"
	"github.com/widgetkit/topicbus/logging"
)

// Store is an in-memory storage adapter for one resource. It answers
// the resource's command and request topics and keeps the retained
// per-item state topics current, so any View (local or bridged) can
// materialize the list.
type Store struct {
	b      *bus.Bus
	topics Topics
	log    *logging.Logger

	mu    sync.RWMutex
	items map[string]Item
	order []string

	subs []*bus.Subscription
}

// NewStore creates a store for a resource and subscribes it to the
// resource's topic family.
func NewStore(b *bus.Bus, resource string, log *logging.Logger) (*Store, error) {
	if b == nil {
		return nil, ErrNilBus
	}
	if resource == "" {
		return nil, ErrEmptyName
	}
	if log == nil {
		log = logging.New()
	}

	s := &Store{
		b:      b,
		topics: TopicsFor(resource),
		log:    log.WithComponent("resource." + resource),
		items:  make(map[string]Item),
	}

	handlers := []struct {
		topic   string
		handler bus.SubscriberFunc
	}{
		{s.topics.ItemSave, s.handleSave},
		{s.topics.ItemDelete, s.handleDelete},
		{s.topics.ItemGet, s.handleItemGet},
		{s.topics.ListGet, s.handleListGet},
	}
	for _, h := range handlers {
		sub, err := b.Subscribe([]string{h.topic}, h.handler, bus.SubscribeOptions{
			Owner: "store." + resource,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.subs = append(s.subs, sub)
	}

	return s, nil
}

// Seed loads initial items without publishing commands, then announces
// the resulting state.
func (s *Store) Seed(items []Item) error {
	s.mu.Lock()
	for _, item := range items {
		id := item.ID()
		if id == "" {
			s.mu.Unlock()
			return ErrMissingID
		}
		if _, exists := s.items[id]; !exists {
			s.order = append(s.order, id)
		}
		s.items[id] = item.clone()
	}
	s.mu.Unlock()

	s.mu.RLock()
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()

	for _, item := range snapshot {
		s.publishItemState(item)
	}
	s.publishListState()
	return nil
}

// handleSave stores an item and announces its new state. Items without
// an id are assigned one.
func (s *Store) handleSave(msg *bus.Message) error {
	item, err := asItem(msg.Data)
	if err != nil {
		return err
	}
	item = item.clone()

	id := item.ID()
	if id == "" {
		id = uuid.NewString()
		item["id"] = id
	}

	s.mu.Lock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
	s.mu.Unlock()

	s.log.Debug("item saved", map[string]interface{}{"id": id})

	s.publishItemState(item)
	s.publishListState()

	// Saves sent as requests get the stored item (with its assigned
	// id) back as the reply.
	if msg.ReplyTo != "" {
		return s.b.Respond(msg, item.clone())
	}
	return nil
}

// handleDelete removes an item, announces the deletion, and retains a
// tombstone on the item's state topic so late joiners drop it too.
func (s *Store) handleDelete(msg *bus.Message) error {
	item, err := asItem(msg.Data)
	if err != nil {
		return err
	}
	id := item.ID()
	if id == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	_, existed := s.items[id]
	delete(s.items, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if !existed {
		return ErrNotFound
	}

	tombstone := Item{"id": id, "deleted": true}
	s.publishItemState(tombstone)
	if err := s.b.Publish(s.topics.ItemDeleted, tombstone, bus.PublishOptions{}); err != nil {
		return err
	}
	s.publishListState()

	if msg.ReplyTo != "" {
		return s.b.Respond(msg, tombstone)
	}
	return nil
}

// handleItemGet replies with one item by id.
func (s *Store) handleItemGet(msg *bus.Message) error {
	if msg.ReplyTo == "" {
		// Fire-and-forget gets have nowhere to deliver to.
		return nil
	}
	query, err := asItem(msg.Data)
	if err != nil {
		return err
	}
	id := query.ID()
	if id == "" {
		return ErrMissingID
	}

	s.mu.RLock()
	item, ok := s.items[id]
	if ok {
		item = item.clone()
	}
	s.mu.RUnlock()

	if !ok {
		return s.b.Respond(msg, Item{"id": id, "deleted": true})
	}
	return s.b.Respond(msg, item)
}

// handleListGet replies with the full list in insertion order.
func (s *Store) handleListGet(msg *bus.Message) error {
	if msg.ReplyTo == "" {
		// Treat as a nudge to re-announce state.
		s.publishListState()
		return nil
	}

	s.mu.RLock()
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()

	return s.b.Respond(msg, snapshot)
}

// snapshotLocked copies the ordered list. Callers hold s.mu.
func (s *Store) snapshotLocked() []Item {
	snapshot := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.items[id].clone())
	}
	return snapshot
}

// publishItemState retains an item's latest state on its own topic.
func (s *Store) publishItemState(item Item) {
	topic := s.topics.ItemState(item.ID())
	if err := s.b.Publish(topic, item, bus.PublishOptions{Retain: true}); err != nil {
		s.log.Warn("item state publish failed", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
	}
}

// publishListState retains the current list.
func (s *Store) publishListState() {
	s.mu.RLock()
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()

	if err := s.b.Publish(s.topics.ListState, snapshot, bus.PublishOptions{Retain: true}); err != nil {
		s.log.Warn("list state publish failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close tears the store's subscriptions down. The retained state
// topics stay behind for late joiners.
func (s *Store) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}
