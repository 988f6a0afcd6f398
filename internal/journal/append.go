package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Append records one event for persistenceID and returns its sequence
// number. The sequence number is allocated in the same transaction as the
// insert, so concurrent appends to one id cannot produce a gap or a duplicate.
func (j *Journal) Append(ctx context.Context, persistenceID, eventType string, data []byte) (int64, error) {
	if persistenceID == "" {
		return 0, fmt.Errorf("append: empty persistence id")
	}
	if eventType == "" {
		return 0, fmt.Errorf("append %s: empty event type", persistenceID)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append %s: begin tx: %w", persistenceID, err)
	}
	defer tx.Rollback() // No-op if committed

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE persistence_id = ?
	`, persistenceID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("append %s: read last seq: %w", persistenceID, err)
	}
	seq := last.Int64 + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (persistence_id, seq, event_type, data)
		VALUES (?, ?, ?, ?)
	`, persistenceID, seq, eventType, string(data))
	if err != nil {
		return 0, fmt.Errorf("append %s: insert: %w", persistenceID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append %s: commit: %w", persistenceID, err)
	}
	return seq, nil
}
