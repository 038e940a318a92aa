package resource

import (
	"sync"

	"github.com/widgetkit/topicbus/bus"
)

// View is a client-side materialized list of one resource. It follows
// the resource's retained per-item state topics, so a freshly created
// view hydrates immediately from whatever a Store (local or bridged)
// already published.
type View struct {
	topics Topics

	mu    sync.RWMutex
	items map[string]Item
	order []string

	onChange func([]Item)

	sub *bus.Subscription
}

// ViewOptions tunes a view.
type ViewOptions struct {
	// OnChange, when set, is called with a fresh list snapshot after
	// every applied state change. It runs on the publishing goroutine.
	OnChange func([]Item)
}

// NewView creates a view for a resource and hydrates it from retained
// state.
func NewView(b *bus.Bus, resource string, opts ViewOptions) (*View, error) {
	if b == nil {
		return nil, ErrNilBus
	}
	if resource == "" {
		return nil, ErrEmptyName
	}

	v := &View{
		topics:   TopicsFor(resource),
		items:    make(map[string]Item),
		onChange: opts.OnChange,
	}

	sub, err := b.Subscribe(
		[]string{v.topics.ItemStatePattern()},
		bus.SubscriberFunc(v.apply),
		bus.SubscribeOptions{Retained: true, Owner: "view." + resource},
	)
	if err != nil {
		return nil, err
	}
	v.sub = sub
	return v, nil
}

// apply folds one item state message into the list. Tombstones remove
// the entry.
func (v *View) apply(msg *bus.Message) error {
	item, err := asItem(msg.Data)
	if err != nil {
		return err
	}
	id := item.ID()
	if id == "" {
		return ErrMissingID
	}

	v.mu.Lock()
	if item.Deleted() {
		if _, exists := v.items[id]; !exists {
			v.mu.Unlock()
			return nil
		}
		delete(v.items, id)
		for i, ordered := range v.order {
			if ordered == id {
				v.order = append(v.order[:i], v.order[i+1:]...)
				break
			}
		}
	} else {
		if _, exists := v.items[id]; !exists {
			v.order = append(v.order, id)
		}
		v.items[id] = item.clone()
	}
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(snapshot)
	}
	return nil
}

// Items returns the current list in first-seen order.
func (v *View) Items() []Item {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshotLocked()
}

// Get returns one item by id.
func (v *View) Get(id string) (Item, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	item, ok := v.items[id]
	if !ok {
		return nil, false
	}
	return item.clone(), true
}

// Len returns the number of live items.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}

func (v *View) snapshotLocked() []Item {
	snapshot := make([]Item, 0, len(v.order))
	for _, id := range v.order {
		snapshot = append(snapshot, v.items[id].clone())
	}
	return snapshot
}

// Close stops following state updates. The accumulated snapshot stays
// readable.
func (v *View) Close() {
	if v.sub != nil {
		v.sub.Unsubscribe()
		v.sub = nil
	}
}
