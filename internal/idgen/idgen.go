// Package idgen provides sources of entity identifiers.
//
// Production code uses Random: 122 random bits per id, so collisions across
// the lifetime of a manager are treated as impossible. Tests and scenario
// runs use Counter or Fixed for reproducible journals.
package idgen

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// Source produces identifiers.
type Source interface {
	NewID() uuid.UUID
}

// Random generates RFC 4122 version 4 UUIDs.
//
// Thread-safety: Random is stateless and safe for concurrent use.
type Random struct{}

// NewID returns a fresh random UUID.
func (Random) NewID() uuid.UUID {
	return uuid.New()
}

// TimeOrdered generates UUIDv7 values, which sort by creation time.
// Useful when ids end up in logs or journal listings.
type TimeOrdered struct{}

// NewID returns a fresh UUIDv7. Panics if the random source fails.
func (TimeOrdered) NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// Counter returns 00000000-0000-0000-0000-000000000001, ...02 and so on.
//
// Thread-safety: Counter is safe for concurrent use via internal mutex.
type Counter struct {
	mu   sync.Mutex
	next uint64
}

// NewCounter creates a counter whose first id ends in start+1.
func NewCounter(start uint64) *Counter {
	return &Counter{next: start}
}

// NewID returns the next id in sequence.
func (c *Counter) NewID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], c.next)
	return id
}

// Fixed returns predetermined ids in order.
//
// Thread-safety: Fixed is safe for concurrent use via internal mutex.
type Fixed struct {
	mu  sync.Mutex
	ids []uuid.UUID
	idx int
}

// NewFixed creates a source that returns ids in order.
//
// Example:
//
//	src := NewFixed(a, b)
//	src.NewID() // a
//	src.NewID() // b
//	src.NewID() // panic: all ids exhausted
func NewFixed(ids ...uuid.UUID) *Fixed {
	return &Fixed{ids: ids}
}

// NewID returns the next predetermined id.
//
// Panics when every id has been used, to catch tests that create more
// entities than they planned for.
func (f *Fixed) NewID() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.idx >= len(f.ids) {
		panic("idgen.Fixed: all ids exhausted")
	}
	id := f.ids[f.idx]
	f.idx++
	return id
}
