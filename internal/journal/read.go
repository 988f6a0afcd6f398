package journal

import (
	"context"
	"fmt"

	"github.com/roach88/persistable/internal/entity"
)

// Summary describes one persistence id in the journal.
type Summary struct {
	PersistenceID string `json:"persistence_id"`
	Events        int64  `json:"events"`
	LastSeq       int64  `json:"last_seq"`
}

// Replay returns every event for persistenceID in commit order.
// A never-used id yields an empty, non-nil slice.
func (j *Journal) Replay(ctx context.Context, persistenceID string) ([]entity.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, event_type, data
		FROM events
		WHERE persistence_id = ?
		ORDER BY seq ASC
	`, persistenceID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", persistenceID, err)
	}
	defer rows.Close()

	events := []entity.Event{}
	var expect int64 = 1
	for rows.Next() {
		var (
			ev   entity.Event
			data string
		)
		if err := rows.Scan(&ev.Seq, &ev.Type, &data); err != nil {
			return nil, fmt.Errorf("replay %s: scan: %w", persistenceID, err)
		}
		if ev.Seq != expect {
			return nil, fmt.Errorf("replay %s: expected seq %d, found %d", persistenceID, expect, ev.Seq)
		}
		expect++
		ev.Data = []byte(data)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("replay %s: iterate: %w", persistenceID, err)
	}
	return events, nil
}

// ListPersistenceIDs summarizes every persistence id, ordered by id.
func (j *Journal) ListPersistenceIDs(ctx context.Context) ([]Summary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT persistence_id, COUNT(*), MAX(seq)
		FROM events
		GROUP BY persistence_id
		ORDER BY persistence_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list persistence ids: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.PersistenceID, &s.Events, &s.LastSeq); err != nil {
			return nil, fmt.Errorf("list persistence ids: scan: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persistence ids: iterate: %w", err)
	}
	return summaries, nil
}

// Count returns the number of events stored for persistenceID.
func (j *Journal) Count(ctx context.Context, persistenceID string) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE persistence_id = ?
	`, persistenceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", persistenceID, err)
	}
	return n, nil
}
