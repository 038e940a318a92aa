// Package resource implements the CRUD topic family that storage
// adapters and list widgets use to synchronize state over the bus.
//
// # Topic Family
//
// For a resource named "contacts" the canonical topics are:
//
//	contacts.list.get        request: full list
//	contacts.list.state      retained: current list
//	contacts.item.get        request: one item by id
//	contacts.item.save       command: create or update an item
//	contacts.item.delete     command: delete an item by id
//	contacts.item.deleted    notification: an item was deleted
//	contacts.item.state.<id> retained: latest state of one item
//
// A Store serves the command and request topics; a View materializes
// the per-item state topics into an ordered list. Deletion uses the
// deleted:true tombstone convention: the Store retains a tombstone on
// the item's state topic, and Views interpret it by dropping the entry.
// The bus core itself treats tombstones as ordinary messages.
package resource

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNilBus     = errors.New("resource requires a bus")
	ErrEmptyName  = errors.New("resource name must not be empty")
	ErrMissingID  = errors.New("item has no id")
	ErrNotFound   = errors.New("item not found")
	ErrBadPayload = errors.New("payload is not an item object")
)

// Item is the payload shape carried on resource topics.
type Item map[string]any

// ID returns the item's "id" field, or "".
func (i Item) ID() string {
	id, _ := i["id"].(string)
	return id
}

// Deleted reports whether the item is a tombstone.
func (i Item) Deleted() bool {
	deleted, _ := i["deleted"].(bool)
	return deleted
}

// clone returns a shallow copy so callers cannot mutate stored state.
func (i Item) clone() Item {
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

// asItem coerces a bus payload into an Item. Bridged payloads arrive
// as map[string]any.
func asItem(data any) (Item, error) {
	switch v := data.(type) {
	case Item:
		return v, nil
	case map[string]any:
		return Item(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadPayload, data)
	}
}

// Topics is the topic family for one resource.
type Topics struct {
	ListGet     string
	ListState   string
	ItemGet     string
	ItemSave    string
	ItemDelete  string
	ItemDeleted string

	statePrefix string
}

// TopicsFor builds the topic family for a resource name.
func TopicsFor(resource string) Topics {
	return Topics{
		ListGet:     resource + ".list.get",
		ListState:   resource + ".list.state",
		ItemGet:     resource + ".item.get",
		ItemSave:    resource + ".item.save",
		ItemDelete:  resource + ".item.delete",
		ItemDeleted: resource + ".item.deleted",
		statePrefix: resource + ".item.state.",
	}
}

// ItemState returns the retained state topic for one item.
func (t Topics) ItemState(id string) string {
	return t.statePrefix + id
}

// ItemStatePattern returns the wildcard pattern covering every item
// state topic.
func (t Topics) ItemStatePattern() string {
	return t.statePrefix + "*"
}
