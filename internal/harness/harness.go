package harness

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roach88/persistable/internal/entity"
	"github.com/roach88/persistable/internal/idgen"
	"github.com/roach88/persistable/internal/journal"
	"github.com/roach88/persistable/internal/kv"
	"github.com/roach88/persistable/internal/lifecycle"
)

const (
	// replyTimeout bounds a step whose reply is expected.
	replyTimeout = 5 * time.Second
	// noReplyWait is how long a step expecting NoReply listens.
	noReplyWait = 200 * time.Millisecond
)

// Harness executes one scenario. Create it through Run.
type Harness struct {
	journal  *journal.Journal
	sys      *entity.System
	ids      *idgen.Counter
	clock    int64
	entities map[string]*boundEntity
	children map[string]uuid.UUID
	result   *Result
}

type boundEntity struct {
	decl EntityDecl
	id   uuid.UUID
	proc *entity.Process
}

type options struct {
	journalPath string
	logger      zerolog.Logger
}

// Option configures Run.
type Option func(*options)

// WithJournalPath runs against the journal file at path instead of an
// in-memory database. The file should be new: ids are deterministic and
// would collide with entities from an earlier run.
func WithJournalPath(path string) Option {
	return func(o *options) {
		o.journalPath = path
	}
}

// WithLogger sets the logger of the entity system. Default: zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh journal (in memory unless WithJournalPath)
//  2. Start every declared entity with a counter-issued id
//  3. Execute flow steps, validating expect clauses
//  4. Shut the system down and capture the journal
//  5. Evaluate assertions
//
// The error is non-nil only when the scenario could not be executed;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{journalPath: ":memory:", logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	j, err := journal.Open(o.journalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	h := &Harness{
		journal:  j,
		sys:      entity.NewSystem(j, entity.WithLogger(o.logger)),
		ids:      idgen.NewCounter(0),
		entities: make(map[string]*boundEntity, len(scenario.Entities)),
		children: make(map[string]uuid.UUID),
		result:   NewResult(),
	}

	ctx := context.Background()

	if err := h.execute(scenario); err != nil {
		h.shutdown()
		return nil, err
	}
	if err := h.shutdown(); err != nil {
		return nil, err
	}

	if err := h.captureJournal(ctx); err != nil {
		return nil, fmt.Errorf("failed to capture journal: %w", err)
	}

	actx := &AssertionContext{
		Journal: j,
		Ctx:     ctx,
		Resolve: h.persistenceID,
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

func (h *Harness) execute(scenario *Scenario) error {
	for _, decl := range scenario.Entities {
		b := &boundEntity{decl: decl, id: h.ids.NewID()}
		if err := h.start(b); err != nil {
			return fmt.Errorf("failed to start %s: %w", decl.Name, err)
		}
		h.entities[decl.Name] = b
		h.result.IDs[decl.Name] = b.id.String()
	}

	for i, step := range scenario.Flow {
		if err := h.executeStep(i, step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	return nil
}

// next advances the logical clock that numbers trace events.
func (h *Harness) next() int64 {
	h.clock++
	return h.clock
}

func (h *Harness) start(b *boundEntity) error {
	var (
		id       entity.Identity
		behavior entity.Behavior
	)
	switch b.decl.Type {
	case TypeStore:
		id, behavior = kv.Identity(b.id), kv.New[string, string]()
	case TypeFactory:
		id = lifecycle.Identity(b.id)
		behavior = lifecycle.New(kv.Kind, kv.NewStringStore, lifecycle.WithIDSource(h.ids))
	default:
		return fmt.Errorf("unknown entity type %q", b.decl.Type)
	}

	p, err := h.sys.Spawn(id, behavior)
	if err != nil {
		return err
	}
	b.proc = p
	return nil
}

func (h *Harness) restart(name string) error {
	b := h.entities[name]
	b.proc.Stop()
	select {
	case <-b.proc.Done():
	case <-time.After(replyTimeout):
		return fmt.Errorf("restart %s: did not stop", name)
	}
	if err := b.proc.Err(); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	if err := h.start(b); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	h.result.AddRestartTrace(name, h.next())
	return nil
}

func (h *Harness) executeStep(index int, step FlowStep) error {
	if step.Restart != "" {
		return h.restart(step.Restart)
	}

	b := h.entities[step.Target]
	msg, args, err := h.buildCommand(b.decl.Type, step)
	if err != nil {
		return err
	}
	h.result.AddCommandTrace(step.Target, step.Command, args, h.next())

	wait := replyTimeout
	if step.Expect != nil && step.Expect.Reply == ReplyNone {
		wait = noReplyWait
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	env, err := entity.Ask(ctx, b.proc, msg)
	cancel()

	reply, result := ReplyNone, map[string]any(nil)
	switch {
	case err == nil:
		reply, result = describeReply(env.Message)
	case !errors.Is(err, entity.ErrNoReply):
		return err
	}

	if created, ok := env.Message.(lifecycle.Created); ok && step.SaveAs != "" {
		h.children[step.SaveAs] = created.ID
		h.result.IDs[step.SaveAs] = created.ID.String()
	}
	h.result.AddReplyTrace(step.Target, reply, result, h.next())

	if step.Expect != nil {
		for _, msg := range h.checkExpect(step.Expect, reply, env.Message) {
			h.result.AddError(fmt.Sprintf("flow[%d]: %s", index, msg))
		}
	}
	return nil
}

// buildCommand converts a step into the message sent and the args traced.
func (h *Harness) buildCommand(typ string, step FlowStep) (any, map[string]any, error) {
	if typ == TypeStore {
		msg, args := storeCommand(step.Command, step.Key, step.Value)
		return msg, args, nil
	}

	switch step.Command {
	case "create":
		return lifecycle.Create{}, nil, nil
	case "list":
		return lifecycle.List{}, nil, nil
	case "delete":
		id, err := h.resolveChild(step.Child)
		if err != nil {
			return nil, nil, err
		}
		return lifecycle.Delete{ID: id}, map[string]any{"child": step.Child}, nil
	case "forward":
		id, err := h.resolveChild(step.Child)
		if err != nil {
			return nil, nil, err
		}
		inner, innerArgs := storeCommand(step.Message.Command, step.Message.Key, step.Message.Value)
		message := map[string]any{"command": step.Message.Command}
		maps.Copy(message, innerArgs)
		return lifecycle.Forward{ID: id, Message: inner}, map[string]any{"child": step.Child, "message": message}, nil
	}
	return nil, nil, fmt.Errorf("unknown factory command %q", step.Command)
}

func storeCommand(command, key, value string) (any, map[string]any) {
	switch command {
	case "specify":
		return kv.Specify[string, string]{Key: key, Value: value}, map[string]any{"key": key, "value": value}
	case "delete":
		return kv.Delete[string]{Key: key}, map[string]any{"key": key}
	case "get":
		return kv.Get[string]{Key: key}, map[string]any{"key": key}
	case "all":
		return kv.GetAll{}, nil
	default:
		return kv.Len{}, nil
	}
}

// resolveChild maps a saved child name, or a literal id, to an id.
func (h *Harness) resolveChild(ref string) (uuid.UUID, error) {
	if id, ok := h.children[ref]; ok {
		return id, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("child %q is neither a saved name nor an id", ref)
	}
	return id, nil
}

// persistenceID resolves an entity or child name to its journal key.
func (h *Harness) persistenceID(name string) (string, bool) {
	if b, ok := h.entities[name]; ok {
		if b.decl.Type == TypeFactory {
			return lifecycle.Identity(b.id).String(), true
		}
		return kv.Identity(b.id).String(), true
	}
	if id, ok := h.children[name]; ok {
		return kv.Identity(id).String(), true
	}
	return "", false
}

// describeReply names a reply and extracts its traced fields.
func describeReply(msg any) (string, map[string]any) {
	switch m := msg.(type) {
	case kv.Specified:
		return "Specified", nil
	case kv.Deleted, lifecycle.Deleted:
		return "Deleted", nil
	case kv.Got[string]:
		return "Got", map[string]any{"value": m.Value}
	case kv.NotFound:
		return "NotFound", nil
	case kv.GotAll[string, string]:
		entries := make(map[string]any, len(m.Entries))
		for k, v := range m.Entries {
			entries[k] = v
		}
		return "GotAll", map[string]any{"entries": entries}
	case kv.Count:
		return "Count", map[string]any{"n": m.N}
	case lifecycle.Created:
		return "Created", map[string]any{"id": m.ID.String()}
	case lifecycle.Listed:
		return "Listed", map[string]any{"active": idStrings(m.Active), "retired": idStrings(m.Retired)}
	default:
		return fmt.Sprintf("%T", msg), nil
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// checkExpect returns one message per mismatch.
func (h *Harness) checkExpect(exp *ExpectClause, reply string, msg any) []string {
	if exp.Reply != reply {
		return []string{fmt.Sprintf("expected reply %s, got %s", exp.Reply, reply)}
	}

	var errs []string
	if exp.Value != nil {
		if got, ok := msg.(kv.Got[string]); !ok || got.Value != *exp.Value {
			errs = append(errs, fmt.Sprintf("expected value %q, got %#v", *exp.Value, msg))
		}
	}
	if exp.Entries != nil {
		got, _ := msg.(kv.GotAll[string, string])
		if !maps.Equal(exp.Entries, got.Entries) {
			errs = append(errs, fmt.Sprintf("expected entries %v, got %v", exp.Entries, got.Entries))
		}
	}
	if exp.Count != nil {
		if got, ok := msg.(kv.Count); !ok || got.N != *exp.Count {
			errs = append(errs, fmt.Sprintf("expected count %d, got %#v", *exp.Count, msg))
		}
	}
	if exp.Active != nil || exp.Retired != nil {
		listed, _ := msg.(lifecycle.Listed)
		errs = append(errs, h.compareIDs("active", exp.Active, listed.Active)...)
		errs = append(errs, h.compareIDs("retired", exp.Retired, listed.Retired)...)
	}
	return errs
}

func (h *Harness) compareIDs(field string, want []string, got []uuid.UUID) []string {
	wantIDs := make([]string, 0, len(want))
	for _, ref := range want {
		id, err := h.resolveChild(ref)
		if err != nil {
			return []string{fmt.Sprintf("%s: %v", field, err)}
		}
		wantIDs = append(wantIDs, id.String())
	}
	gotIDs := idStrings(got)
	slices.Sort(wantIDs)
	slices.Sort(gotIDs)
	if !slices.Equal(wantIDs, gotIDs) {
		return []string{fmt.Sprintf("expected %s %v, got %v", field, wantIDs, gotIDs)}
	}
	return nil
}

func (h *Harness) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()
	if err := h.sys.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (h *Harness) captureJournal(ctx context.Context) error {
	summaries, err := h.journal.ListPersistenceIDs(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		events, err := h.journal.Replay(ctx, s.PersistenceID)
		if err != nil {
			return err
		}
		for _, ev := range events {
			h.result.Journal = append(h.result.Journal, JournalEntry{
				PersistenceID: s.PersistenceID,
				Seq:           ev.Seq,
				Type:          ev.Type,
				Data:          ev.Data,
			})
		}
	}
	return nil
}
