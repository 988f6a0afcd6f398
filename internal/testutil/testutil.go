package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/persistable/internal/entity"
	"github.com/roach88/persistable/internal/journal"
)

// Timeouts used by the helpers.
const (
	ReplyTimeout = 5 * time.Second
	NoReplyWait  = 100 * time.Millisecond
)

// OpenJournal opens a journal in a fresh temp dir, closed when the test ends.
func OpenJournal(t testing.TB) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err, "open journal")
	t.Cleanup(func() { j.Close() })
	return j
}

// NewSystem returns a system on j that is shut down when the test ends.
func NewSystem(t testing.TB, j entity.Journal, opts ...entity.Option) *entity.System {
	t.Helper()
	sys := entity.NewSystem(j, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ReplyTimeout)
		defer cancel()
		_ = sys.Shutdown(ctx)
	})
	return sys
}

// Ask sends msg to ref and fails the test if no reply arrives in time.
func Ask(t testing.TB, ref entity.Ref, msg any) entity.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ReplyTimeout)
	defer cancel()
	env, err := entity.Ask(ctx, ref, msg)
	require.NoError(t, err, "no reply to %#v", msg)
	return env
}

// ExpectNoReply sends msg to ref and fails the test if anything answers
// within NoReplyWait.
func ExpectNoReply(t testing.TB, ref entity.Ref, msg any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), NoReplyWait)
	defer cancel()
	env, err := entity.Ask(ctx, ref, msg)
	require.ErrorIs(t, err, entity.ErrNoReply, "unexpected reply %#v", env.Message)
}

// WaitDone blocks until p has stopped.
func WaitDone(t testing.TB, p *entity.Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(ReplyTimeout):
		t.Fatalf("process %s did not stop", p.Identity())
	}
}

// StopAndWait stops p, waits for it and requires a clean stop.
func StopAndWait(t testing.TB, p *entity.Process) {
	t.Helper()
	p.Stop()
	WaitDone(t, p)
	require.NoError(t, p.Err(), "process %s stopped with failure", p.Identity())
}
