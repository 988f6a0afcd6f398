package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/persistable/internal/codec"
	"github.com/rs/zerolog"
)

// Context is handed to Receive and PostStop. It is only valid for the
// duration of that call and must not be retained.
type Context struct {
	ctx    context.Context
	self   *Process
	sender Ref

	err           error
	stopRequested bool
}

func (p *Process) newContext(ctx context.Context, sender Ref) *Context {
	return &Context{ctx: ctx, self: p, sender: sender}
}

// Context returns the context of the owning System.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Self returns the process handling the message.
func (c *Context) Self() *Process {
	return c.self
}

// Identity returns the identity of the process handling the message.
func (c *Context) Identity() Identity {
	return c.self.id
}

// Sender returns where replies to the current message go. It is nil when the
// message was told without a sender.
func (c *Context) Sender() Ref {
	return c.sender
}

// Logger returns the process logger, tagged with kind and persistence id.
func (c *Context) Logger() *zerolog.Logger {
	return &c.self.log
}

// Reply tells msg to the sender of the current message, with this process as
// the reply's sender. Does nothing when there is no sender.
func (c *Context) Reply(msg any) {
	if c.sender != nil {
		c.sender.Tell(msg, c.self)
	}
}

// Persist durably appends an event, applies it to state and then runs then.
//
// The payload is encoded once; the bytes appended are the bytes passed to
// Apply. Any failure stops the process once Receive returns: then is not
// run, so the caller gets no reply. The returned error only tells the
// handler to stop doing further work.
func (c *Context) Persist(eventType string, payload any, then func()) error {
	if c.err != nil {
		return c.err
	}
	id := c.self.id

	data, err := codec.Marshal(payload)
	if err != nil {
		return c.fail(&FailureError{Identity: id, Phase: PhasePersist, Err: fmt.Errorf("encode %s: %w", eventType, err)})
	}

	start := time.Now()
	seq, err := c.self.sys.journal.Append(c.ctx, id.String(), eventType, data)
	if err != nil {
		return c.fail(&FailureError{Identity: id, Phase: PhasePersist, Err: fmt.Errorf("append %s: %w", eventType, err)})
	}
	observePersist(id.Kind, start)
	eventsPersisted(id.Kind).Inc()

	if err := c.self.behavior.Apply(Event{Type: eventType, Data: data, Seq: seq}); err != nil {
		return c.fail(&FailureError{Identity: id, Phase: PhasePersist, Err: fmt.Errorf("apply %s #%d: %w", eventType, seq, err)})
	}
	c.self.log.Debug().Str("event", eventType).Int64("seq", seq).Msg("persisted")

	if then != nil {
		then()
	}
	return nil
}

// Spawn starts a child process. The child's termination is told to this
// process as a Terminated message.
func (c *Context) Spawn(id Identity, b Behavior) (*Process, error) {
	return c.self.sys.spawn(id, b, c.self)
}

// Stop stops this process once the current call returns.
func (c *Context) Stop() {
	c.stopRequested = true
}

// Unhandled records a message the behavior does not understand.
func (c *Context) Unhandled(msg any) {
	unhandledMessages(c.self.id.Kind).Inc()
	c.self.log.Warn().Str("message", fmt.Sprintf("%T", msg)).Msg("unhandled message")
}

func (c *Context) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}
