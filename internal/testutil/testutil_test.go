package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/persistable/internal/entity"
)

type echo struct{}

func (echo) Apply(entity.Event) error { return nil }

func (echo) Receive(c *entity.Context, msg any) {
	if s, ok := msg.(string); ok && s != "silent" {
		c.Reply(s)
	}
}

func TestHelpers(t *testing.T) {
	j := OpenJournal(t)
	sys := NewSystem(t, j)

	p, err := sys.Spawn(entity.NewIdentity("echo", uuid.New()), echo{})
	require.NoError(t, err)

	assert.Equal(t, "hi", Ask(t, p, "hi").Message)
	ExpectNoReply(t, p, "silent")

	StopAndWait(t, p)
	assert.Equal(t, entity.StateStopped, p.State())

	events, err := j.Replay(context.Background(), p.Identity().String())
	require.NoError(t, err)
	assert.Empty(t, events)
}
