package journal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestJournal opens a journal in a fresh temp dir.
func createTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	_, path := createTestJournal(t)

	_, err := os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "Open() iteration %d failed", i)
		require.NoError(t, j.Close())
	}

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	version, err := j.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	j, path := createTestJournal(t)
	_, err := j.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_WALMode(t *testing.T) {
	j, _ := createTestJournal(t)

	var mode string
	require.NoError(t, j.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		seq, err := j.Append(ctx, "store-a", "specified", []byte(`{"key":"k"}`))
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}
}

func TestAppend_SeqIsPerPersistenceID(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	seqA, err := j.Append(ctx, "store-a", "specified", []byte(`{}`))
	require.NoError(t, err)
	seqB, err := j.Append(ctx, "store-b", "specified", []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, int64(1), seqA)
	assert.Equal(t, int64(1), seqB)
}

func TestAppend_RejectsEmptyArguments(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	_, err := j.Append(ctx, "", "specified", []byte(`{}`))
	assert.Error(t, err)

	_, err = j.Append(ctx, "store-a", "", []byte(`{}`))
	assert.Error(t, err)
}

func TestAppend_ConcurrentWritersNoGaps(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := j.Append(ctx, "shared", "specified", []byte(`{}`))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	events, err := j.Replay(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, events, writers*perWriter)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestReplay_EmptyLog(t *testing.T) {
	j, _ := createTestJournal(t)

	events, err := j.Replay(context.Background(), "never-used")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestReplay_CommitOrder(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	inputs := []struct{ typ, data string }{
		{"specified", `{"key":"KeyA","value":1}`},
		{"specified", `{"key":"KeyB","value":2}`},
		{"deleted", `{"key":"KeyA"}`},
		{"specified", `{"key":"KeyA","value":3}`},
	}
	for _, in := range inputs {
		_, err := j.Append(ctx, "store-a", in.typ, []byte(in.data))
		require.NoError(t, err)
	}
	// Interleave another id to make sure it does not leak in.
	_, err := j.Append(ctx, "store-b", "deleted", []byte(`{"key":"x"}`))
	require.NoError(t, err)

	events, err := j.Replay(ctx, "store-a")
	require.NoError(t, err)
	require.Len(t, events, len(inputs))
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, inputs[i].typ, ev.Type)
		assert.Equal(t, inputs[i].data, string(ev.Data))
	}
}

func TestReplay_SurvivesReopen(t *testing.T) {
	j, path := createTestJournal(t)
	ctx := context.Background()

	_, err := j.Append(ctx, "store-a", "specified", []byte(`{"key":"k","value":"v"}`))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.Replay(ctx, "store-a")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, `{"key":"k","value":"v"}`, string(events[0].Data))
}

func TestReplay_DetectsGap(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	_, err := j.db.Exec(`INSERT INTO events (persistence_id, seq, event_type, data) VALUES ('broken', 2, 'specified', '{}')`)
	require.NoError(t, err)

	_, err = j.Replay(ctx, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected seq 1")
}

func TestReplay_CancelledContext(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := j.Replay(ctx, "store-a")
	assert.Error(t, err)
}

func TestListPersistenceIDs(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	empty, err := j.ListPersistenceIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, id := range []string{"b", "a", "b"} {
		_, err := j.Append(ctx, id, "specified", []byte(`{}`))
		require.NoError(t, err)
	}

	summaries, err := j.ListPersistenceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Summary{
		{PersistenceID: "a", Events: 1, LastSeq: 1},
		{PersistenceID: "b", Events: 2, LastSeq: 2},
	}, summaries)

	n, err := j.Count(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
