// Package entity is the runtime for event-sourced persistent entities.
//
// An entity is a Behavior bound to an Identity and run by a Process. Each
// Process owns one goroutine and one unbounded FIFO mailbox, so commands for
// a single entity are handled strictly one at a time in arrival order. Writes
// go through Context.Persist, which appends the encoded event to the Journal,
// folds it into state with Behavior.Apply and only then runs the reply
// callback. The same Apply is used when the Process replays its journal on
// start, so the commit path and the recovery path cannot diverge.
//
// # Lifecycle
//
//	Uninitialized -> Recovering -> Ready -> Stopping -> Stopped
//
// Messages told during recovery wait in the mailbox. A Stop message lets the
// current command finish, runs Stopper.PostStop and vacates the identity in
// the System registry. Messages told to a stopped process are dead letters.
//
// # Failures
//
// A journal failure (append or replay) or a panic in Receive stops the
// process with a *FailureError. The command in flight gets no reply. Children
// report their termination to their parent as a Terminated message; top-level
// failures go to the System failure handler. Nothing is retried here.
//
// # Request/response
//
// Ref.Tell is fire-and-forget. Callers that want a reply use an Inbox or Ask,
// which waits for one Envelope or for the context to end. A command that is
// silently dropped is only observable as ErrNoReply.
package entity
