// Package kv is a durable key-value map built as a persistent entity.
//
// Every Specify and every Delete is persisted before it is answered, so the
// map returned after a restart is exactly the fold of the commands answered
// before it. Delete of an absent key still writes a tombstone event; replaying
// it is a no-op, and it keeps every write path uniform.
package kv

import (
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/roach88/persistable/internal/entity"
)

// Kind is the identity kind of keyed stores.
const Kind = "keyed-store"

// Event types written to the journal.
const (
	EventSpecified = "specified"
	EventDeleted   = "deleted"
)

// Identity returns the persistence identity of the store with the given id.
func Identity(id uuid.UUID) entity.Identity {
	return entity.NewIdentity(Kind, id)
}

// Specify creates Key or replaces its value. Replies Specified.
type Specify[K comparable, V any] struct {
	Key   K
	Value V
}

// Specified answers Specify.
type Specified struct{}

// Delete removes Key if present. Replies Deleted either way.
type Delete[K comparable] struct {
	Key K
}

// Deleted answers Delete, whether or not the key existed.
type Deleted struct{}

// Get reads one key. Replies Got or NotFound.
type Get[K comparable] struct {
	Key K
}

// Got answers Get when the key exists.
type Got[V any] struct {
	Value V
}

// NotFound answers Get when the key does not exist.
type NotFound struct{}

// GetAll reads the whole map. Replies GotAll.
type GetAll struct{}

// GotAll answers GetAll with a copy of every entry.
type GotAll[K comparable, V any] struct {
	Entries map[K]V
}

// Len reads the number of keys. Replies Count.
type Len struct{}

// Count answers Len.
type Count struct {
	N int
}

type specifiedEvent[K comparable, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

type deletedEvent[K comparable] struct {
	Key K `json:"key"`
}

// Store is the behavior of a keyed persistent store. K and V must round-trip
// through encoding/json.
type Store[K comparable, V any] struct {
	entries map[K]V
}

var _ entity.Behavior = (*Store[string, string])(nil)

// New returns an empty store behavior.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{entries: make(map[K]V)}
}

// NewStringStore builds a string-to-string store. Its signature matches
// lifecycle.Constructor, so it can serve as the child constructor of a
// manager.
func NewStringStore(uuid.UUID) entity.Behavior {
	return New[string, string]()
}

// Snapshot returns a copy of the entries.
func (s *Store[K, V]) Snapshot() map[K]V {
	return maps.Clone(s.entries)
}

// Apply folds a specified or deleted event into the map.
func (s *Store[K, V]) Apply(ev entity.Event) error {
	switch ev.Type {
	case EventSpecified:
		var e specifiedEvent[K, V]
		if err := ev.Decode(&e); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		s.entries[e.Key] = e.Value
	case EventDeleted:
		var e deletedEvent[K]
		if err := ev.Decode(&e); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		delete(s.entries, e.Key)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// Receive handles store commands.
func (s *Store[K, V]) Receive(c *entity.Context, msg any) {
	switch m := msg.(type) {
	case Specify[K, V]:
		_ = c.Persist(EventSpecified, specifiedEvent[K, V]{Key: m.Key, Value: m.Value}, func() {
			c.Reply(Specified{})
		})
	case Delete[K]:
		_ = c.Persist(EventDeleted, deletedEvent[K]{Key: m.Key}, func() {
			c.Reply(Deleted{})
		})
	case Get[K]:
		if v, ok := s.entries[m.Key]; ok {
			c.Reply(Got[V]{Value: v})
			return
		}
		c.Reply(NotFound{})
	case GetAll:
		c.Reply(GotAll[K, V]{Entries: maps.Clone(s.entries)})
	case Len:
		c.Reply(Count{N: len(s.entries)})
	default:
		c.Unhandled(msg)
	}
}
