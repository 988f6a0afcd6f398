package entity

// Behavior is the state and command handling of one entity.
//
// Apply folds a persisted event into in-memory state. It is called for every
// replayed event during recovery and for every event committed by
// Context.Persist, always from the process goroutine.
//
// Receive handles one command. Reads reply directly from state; writes call
// Context.Persist and reply from its callback.
type Behavior interface {
	Apply(ev Event) error
	Receive(c *Context, msg any)
}

// Stopper is implemented by behaviors that need teardown. PostStop runs on
// the process goroutine after the last command and before the identity is
// released, including when the process stops because of a failure.
type Stopper interface {
	PostStop(c *Context)
}

// Stop asks a process to stop once the current command is done.
// It never produces a reply.
type Stop struct{}

// Terminated is told to a parent when one of its children has stopped.
// Err is nil for a requested stop and a *FailureError otherwise.
// Undelivered lists, in order, the messages the child accepted after its
// stop request and never handled; it is always empty when Err is set.
type Terminated struct {
	Identity    Identity
	Process     *Process
	Err         error
	Undelivered []Envelope
}
