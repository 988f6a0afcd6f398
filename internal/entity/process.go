package entity

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// State is the lifecycle position of a Process.
type State int32

const (
	StateUninitialized State = iota
	StateRecovering
	StateReady
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRecovering:
		return "recovering"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Process runs one Behavior under one Identity.
//
// All Behavior calls happen on the process goroutine. Tell, Stop, State,
// Done and Err are safe from any goroutine.
type Process struct {
	id       Identity
	behavior Behavior
	sys      *System
	parent   *Process
	mailbox  *mailbox
	log      zerolog.Logger

	state atomic.Int32
	done  chan struct{}
	err   error // written once before done is closed

	// undelivered holds messages accepted but never handled by a child that
	// stopped on request. Written once before done is closed.
	undelivered []Envelope
}

func newProcess(sys *System, id Identity, b Behavior, parent *Process) *Process {
	return &Process{
		id:       id,
		behavior: b,
		sys:      sys,
		parent:   parent,
		mailbox:  newMailbox(),
		log:      sys.log.With().Str("kind", id.Kind).Str("persistence_id", id.String()).Logger(),
		done:     make(chan struct{}),
	}
}

// Identity returns the persistence identity of the process.
func (p *Process) Identity() Identity {
	return p.id
}

// Tell queues msg for the process. Messages told after the process stopped
// are dead letters and are discarded.
func (p *Process) Tell(msg any, sender Ref) {
	if !p.mailbox.Enqueue(Envelope{Message: msg, Sender: sender}) {
		p.deadLetter(msg)
	}
}

// Offer queues msg like Tell, but reports false instead of dead-lettering
// when the process no longer accepts messages.
func (p *Process) Offer(msg any, sender Ref) bool {
	return p.mailbox.Enqueue(Envelope{Message: msg, Sender: sender})
}

// Undelivered returns the messages a child accepted but never handled
// because it was asked to stop. Nil for failed and top-level processes,
// and before Done is closed.
func (p *Process) Undelivered() []Envelope {
	select {
	case <-p.done:
		return p.undelivered
	default:
		return nil
	}
}

// Stop asks the process to stop after the command in flight.
func (p *Process) Stop() {
	p.Tell(Stop{}, nil)
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// Done is closed once the process has stopped and released its identity.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns why the process stopped: nil for a requested stop, a
// *FailureError otherwise. Only meaningful after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *Process) setState(s State) {
	p.state.Store(int32(s))
}

func (p *Process) deadLetter(msg any) {
	deadLetters(p.id.Kind).Inc()
	p.log.Debug().Str("message", fmt.Sprintf("%T", msg)).Msg("dead letter")
}

// run is the process goroutine: recover, then handle the mailbox until
// stopped, failed or the system context ends.
func (p *Process) run(ctx context.Context) {
	p.setState(StateRecovering)
	if err := p.recover(ctx); err != nil {
		p.finish(ctx, err)
		return
	}
	p.setState(StateReady)
	p.log.Debug().Msg("ready")

	for {
		env, ok := p.mailbox.TryDequeue()
		if ok {
			if _, stop := env.Message.(Stop); stop {
				p.finish(ctx, nil)
				return
			}
			c := p.newContext(ctx, env.Sender)
			p.handle(c, env.Message)
			if c.err != nil {
				p.finish(ctx, c.err)
				return
			}
			if c.stopRequested {
				p.finish(ctx, nil)
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			p.finish(ctx, nil)
			return
		case <-p.mailbox.Wait():
		}
	}
}

// recover folds the journal into state through Behavior.Apply.
func (p *Process) recover(ctx context.Context) error {
	events, err := p.sys.journal.Replay(ctx, p.id.String())
	if err != nil {
		return &FailureError{Identity: p.id, Phase: PhaseRecover, Err: err}
	}
	for _, ev := range events {
		if err := p.replayOne(ev); err != nil {
			return &FailureError{
				Identity: p.id,
				Phase:    PhaseRecover,
				Err:      fmt.Errorf("apply %s #%d: %w", ev.Type, ev.Seq, err),
			}
		}
	}
	eventsReplayed(p.id.Kind).Add(len(events))
	p.log.Debug().Int("events", len(events)).Msg("recovered")
	return nil
}

// replayOne applies one journaled event, converting a panic into an error.
func (p *Process) replayOne(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.behavior.Apply(ev)
}

// handle runs Receive, converting a panic into a failure of this process.
func (p *Process) handle(c *Context, msg any) {
	defer func() {
		if r := recover(); r != nil {
			c.fail(&FailureError{Identity: p.id, Phase: PhaseReceive, Err: fmt.Errorf("panic handling %T: %v", msg, r)})
		}
	}()
	p.behavior.Receive(c, msg)
}

// finish tears the process down: no more messages are accepted, PostStop
// runs, the identity is vacated and the supervisor is told.
func (p *Process) finish(ctx context.Context, err error) {
	p.setState(StateStopping)
	p.mailbox.Close()

	if s, ok := p.behavior.(Stopper); ok {
		s.PostStop(p.newContext(ctx, nil))
	}

	var leftover []Envelope
	for {
		env, ok := p.mailbox.TryDequeue()
		if !ok {
			break
		}
		if _, stop := env.Message.(Stop); !stop {
			leftover = append(leftover, env)
		}
	}
	// Only a parent can hand leftovers to a successor, and a failed child
	// is not given its queue back.
	if p.parent != nil && err == nil {
		p.undelivered = leftover
	} else {
		for _, env := range leftover {
			p.deadLetter(env.Message)
		}
	}

	p.err = err
	p.sys.release(p)
	p.setState(StateStopped)

	if err != nil {
		processesFailed(p.id.Kind).Inc()
		p.log.Error().Err(err).Msg("stopped with failure")
	} else {
		p.log.Debug().Msg("stopped")
	}

	if p.parent != nil {
		p.parent.Tell(Terminated{Identity: p.id, Process: p, Err: err, Undelivered: p.undelivered}, p)
	} else if err != nil {
		p.sys.onFailure(p.id, err)
	}
	close(p.done)
}
