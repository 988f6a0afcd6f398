package entity

import (
	"context"

	"github.com/roach88/persistable/internal/codec"
)

// Event is one committed effect as stored in the journal.
// Data holds the canonical JSON encoding of the payload passed to Persist.
type Event struct {
	Type string
	Data []byte
	Seq  int64
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return codec.Unmarshal(e.Data, v)
}

// Journal is the durable log an entity appends to and recovers from.
//
// Append records one event after all prior events for persistenceID and
// returns its sequence number. Replay returns every event ever appended for
// persistenceID in commit order, or an empty slice for an unused id.
type Journal interface {
	Append(ctx context.Context, persistenceID, eventType string, data []byte) (seq int64, err error)
	Replay(ctx context.Context, persistenceID string) ([]Event, error)
}
