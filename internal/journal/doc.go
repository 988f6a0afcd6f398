// Package journal provides the SQLite-backed durable event log that
// persistent entities append to and recover from.
//
// Each persistence id owns an independent, append-only sequence of events.
// Sequence numbers start at 1 and increase by exactly one per append; they are
// allocated inside the same transaction as the insert, so the log for one id
// never has gaps or duplicates.
//
// Replay returns events ORDER BY seq ASC. Wall-clock timestamps are stored
// for operators only and never influence ordering.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite supports one writer at a time
package journal
