package lifecycle

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/persistable/internal/entity"
	"github.com/roach88/persistable/internal/idgen"
)

// Kind is the identity kind of lifecycle managers.
const Kind = "lifecycle-manager"

// Event types written to the journal.
const (
	EventCreated = "created"
	EventRetired = "retired"
)

// Identity returns the persistence identity of the manager with the given id.
func Identity(id uuid.UUID) entity.Identity {
	return entity.NewIdentity(Kind, id)
}

// Create issues a new child id. Replies Created. No child is started.
type Create struct{}

// Created answers Create.
type Created struct {
	ID uuid.UUID
}

// Forward delivers Message to the child with ID, keeping the original sender
// so the child replies to the caller directly. Unknown and retired ids are
// dropped without a reply.
type Forward struct {
	ID      uuid.UUID
	Message any
}

// Delete retires a child id for good. Replies Deleted whether or not the id
// was ever issued.
type Delete struct {
	ID uuid.UUID
}

// Deleted answers Delete.
type Deleted struct{}

// List reads the issued and retired ids. Replies Listed.
type List struct{}

// Listed answers List. Both slices are sorted copies.
type Listed struct {
	Active  []uuid.UUID
	Retired []uuid.UUID
}

// Constructor builds the behavior for the child with the given id.
type Constructor func(id uuid.UUID) entity.Behavior

type idEvent struct {
	ID uuid.UUID `json:"id"`
}

type slotState int

const (
	slotDormant  slotState = iota + 1 // issued, no process
	slotResident                      // issued, process running
	slotRetired                       // deleted, never reactivated
)

type slot struct {
	state  slotState
	handle *entity.Process
}

// Manager is the behavior that issues, activates, forwards to and retires
// child entities.
//
// Issuing an id is durable and cheap; the child process is only started by
// the first Forward after the manager (re)started, so recovery of a manager
// never pays for children nobody addresses.
type Manager struct {
	childKind string
	newChild  Constructor
	ids       idgen.Source
	slots     map[uuid.UUID]*slot
}

var _ entity.Behavior = (*Manager)(nil)
var _ entity.Stopper = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithIDSource overrides how child ids are generated.
// Default: idgen.Random.
func WithIDSource(src idgen.Source) Option {
	return func(m *Manager) {
		m.ids = src
	}
}

// New returns a manager whose children have identity kind childKind and are
// built by newChild.
func New(childKind string, newChild Constructor, opts ...Option) *Manager {
	m := &Manager{
		childKind: childKind,
		newChild:  newChild,
		ids:       idgen.Random{},
		slots:     make(map[uuid.UUID]*slot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply folds created and retired events into the slot index.
func (m *Manager) Apply(ev entity.Event) error {
	var e idEvent
	if err := ev.Decode(&e); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}

	switch ev.Type {
	case EventCreated:
		// A retired id stays retired.
		if _, ok := m.slots[e.ID]; !ok {
			m.slots[e.ID] = &slot{state: slotDormant}
		}
	case EventRetired:
		m.slots[e.ID] = &slot{state: slotRetired}
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// Receive handles manager commands and child terminations.
func (m *Manager) Receive(c *entity.Context, msg any) {
	switch msg := msg.(type) {
	case Create:
		m.create(c)
	case Forward:
		m.forward(c, msg)
	case Delete:
		m.delete(c, msg)
	case List:
		m.list(c)
	case entity.Terminated:
		m.terminated(c, msg)
	default:
		c.Unhandled(msg)
	}
}

// PostStop stops every resident child and waits for each to finish, so the
// manager only vacates its identity after its children have vacated theirs.
func (m *Manager) PostStop(c *entity.Context) {
	var residents []*entity.Process
	for _, s := range m.slots {
		if s.state == slotResident {
			residents = append(residents, s.handle)
			s.handle.Stop()
		}
	}
	for _, p := range residents {
		<-p.Done()
		m.slots[p.Identity().ID] = &slot{state: slotDormant}
	}
	if len(residents) > 0 {
		c.Logger().Debug().Int("children", len(residents)).Msg("stopped resident children")
	}
}

func (m *Manager) create(c *entity.Context) {
	id := m.ids.NewID()
	for m.slots[id] != nil || id == c.Identity().ID {
		id = m.ids.NewID()
	}
	_ = c.Persist(EventCreated, idEvent{ID: id}, func() {
		c.Reply(Created{ID: id})
	})
}

func (m *Manager) forward(c *entity.Context, f Forward) {
	s, ok := m.slots[f.ID]
	if !ok || s.state == slotRetired {
		c.Logger().Debug().Str("child", f.ID.String()).Msg("dropping forward to unknown or retired child")
		return
	}

	var pending []entity.Envelope
	if s.state == slotResident {
		if s.handle.Offer(f.Message, c.Sender()) {
			return
		}
		// The child is stopping. Wait for it to vacate its identity and carry
		// whatever it accepted but never handled over to its successor.
		pending = m.reap(s)
	}
	m.activate(c, f.ID, s, append(pending, entity.Envelope{Message: f.Message, Sender: c.Sender()}))
}

// reap waits for a stopping child and resets its slot to dormant.
func (m *Manager) reap(s *slot) []entity.Envelope {
	old := s.handle
	<-old.Done()
	s.state = slotDormant
	s.handle = nil
	return old.Undelivered()
}

// activate starts the child for a dormant slot and hands it msgs in order.
func (m *Manager) activate(c *entity.Context, id uuid.UUID, s *slot, msgs []entity.Envelope) {
	child, err := c.Spawn(entity.NewIdentity(m.childKind, id), m.newChild(id))
	if err != nil {
		c.Logger().Error().Err(err).Str("child", id.String()).Msg("activate child")
		return
	}
	s.state = slotResident
	s.handle = child
	c.Logger().Debug().Str("child", id.String()).Int("pending", len(msgs)).Msg("activated child")

	for _, env := range msgs {
		child.Tell(env.Message, env.Sender)
	}
}

func (m *Manager) delete(c *entity.Context, d Delete) {
	s, ok := m.slots[d.ID]
	if !ok || s.state == slotRetired {
		c.Reply(Deleted{})
		return
	}

	handle := s.handle
	_ = c.Persist(EventRetired, idEvent{ID: d.ID}, func() {
		if handle != nil {
			handle.Stop()
		}
		c.Reply(Deleted{})
	})
}

func (m *Manager) list(c *entity.Context) {
	c.Reply(m.Children())
}

// Children returns the issued and retired ids, each sorted. It reads the
// behavior's state directly and is meant for offline folds; running managers
// answer List instead.
func (m *Manager) Children() Listed {
	out := Listed{Active: []uuid.UUID{}, Retired: []uuid.UUID{}}
	for id, s := range m.slots {
		if s.state == slotRetired {
			out.Retired = append(out.Retired, id)
		} else {
			out.Active = append(out.Active, id)
		}
	}
	slices.SortFunc(out.Active, compareIDs)
	slices.SortFunc(out.Retired, compareIDs)
	return out
}

// terminated resets the slot of a child that stopped on its own (usually a
// journal failure), so the next Forward starts it again and it recovers.
// A child stopped on request that still had messages queued is restarted
// at once with them.
func (m *Manager) terminated(c *entity.Context, t entity.Terminated) {
	s, ok := m.slots[t.Identity.ID]
	if !ok || s.state != slotResident || s.handle != t.Process {
		// Retired, or already reaped by forward.
		if len(t.Undelivered) > 0 && (!ok || s.state == slotRetired) {
			c.Logger().Debug().Str("child", t.Identity.ID.String()).Int("messages", len(t.Undelivered)).
				Msg("dropping messages queued for retired child")
		}
		return
	}
	s.state = slotDormant
	s.handle = nil
	if t.Err != nil {
		c.Logger().Warn().Err(t.Err).Str("child", t.Identity.ID.String()).Msg("child failed; will reactivate on next forward")
		return
	}
	if len(t.Undelivered) > 0 {
		m.activate(c, t.Identity.ID, s, t.Undelivered)
	}
}

func compareIDs(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
