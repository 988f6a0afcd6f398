package entity

import (
	"context"
	"fmt"
)

// Ref is anything that can be told a message.
type Ref interface {
	// Tell delivers msg without waiting. sender, when non-nil, is where the
	// receiver sends its reply.
	Tell(msg any, sender Ref)
}

// Inbox is a caller-side Ref for collecting replies outside any process.
type Inbox struct {
	box *mailbox
}

// NewInbox returns an empty Inbox.
func NewInbox() *Inbox {
	return &Inbox{box: newMailbox()}
}

// Tell queues a reply. It never blocks.
func (in *Inbox) Tell(msg any, sender Ref) {
	in.box.Enqueue(Envelope{Message: msg, Sender: sender})
}

// Receive returns the next envelope, waiting until one arrives or ctx ends.
func (in *Inbox) Receive(ctx context.Context) (Envelope, error) {
	for {
		if e, ok := in.box.TryDequeue(); ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return Envelope{}, fmt.Errorf("%w: %w", ErrNoReply, ctx.Err())
		case <-in.box.Wait():
		}
	}
}

// Len returns the number of replies waiting to be received.
func (in *Inbox) Len() int {
	return in.box.Len()
}

// Ask tells msg to target with a fresh Inbox as sender and waits for the
// first reply. A command the target drops is reported as ErrNoReply once
// ctx ends, so callers should always pass a context with a deadline.
func Ask(ctx context.Context, target Ref, msg any) (Envelope, error) {
	in := NewInbox()
	target.Tell(msg, in)
	return in.Receive(ctx)
}
