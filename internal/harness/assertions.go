package harness

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/persistable/internal/journal"
	"github.com/roach88/persistable/internal/kv"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case TraceCommand:
				fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.Target, event.Command, event.Args)
			case TraceReply:
				fmt.Fprintf(&buf, "  [%d]   -> %s %v\n", event.Seq, event.Reply, event.Result)
			case TraceRestart:
				fmt.Fprintf(&buf, "  [%d] restart %s\n", event.Seq, event.Target)
			}
		}
	}

	return buf.String()
}

// AssertionContext provides journal access for evaluating assertions.
type AssertionContext struct {
	Journal *journal.Journal
	Ctx     context.Context
	// Resolve maps an entity or child name to its persistence id.
	Resolve func(name string) (string, bool)
}

// assertFinalState replays the entity's journal into a fresh store and
// compares the complete map. The running process is not consulted, so the
// assertion covers recovery as well as the commit path.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	pid, ok := actx.Resolve(a.Entity)
	if !ok {
		return fmt.Errorf("final_state: unknown entity %q", a.Entity)
	}

	events, err := actx.Journal.Replay(actx.Ctx, pid)
	if err != nil {
		return fmt.Errorf("final_state: replay %s: %w", pid, err)
	}

	store := kv.New[string, string]()
	for _, ev := range events {
		if err := store.Apply(ev); err != nil {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s to replay as a keyed store", a.Entity),
				Actual:   err.Error(),
			}
		}
	}

	got := store.Snapshot()
	want := a.Expect
	if want == nil {
		want = map[string]string{}
	}
	if !maps.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Entity, formatEntries(want)),
			Actual:   formatEntries(got),
		}
	}
	return nil
}

// assertJournalCount checks the number of events persisted for an entity.
func assertJournalCount(actx *AssertionContext, a Assertion) error {
	pid, ok := actx.Resolve(a.Entity)
	if !ok {
		return fmt.Errorf("journal_count: unknown entity %q", a.Entity)
	}

	n, err := actx.Journal.Count(actx.Ctx, pid)
	if err != nil {
		return fmt.Errorf("journal_count: %w", err)
	}
	if n != int64(a.Count) {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d events for %s", a.Count, a.Entity),
			Actual:   fmt.Sprintf("%d events", n),
		}
	}
	return nil
}

// assertJournalOrder checks the exact sequence of event types.
func assertJournalOrder(actx *AssertionContext, a Assertion) error {
	pid, ok := actx.Resolve(a.Entity)
	if !ok {
		return fmt.Errorf("journal_order: unknown entity %q", a.Entity)
	}

	events, err := actx.Journal.Replay(actx.Ctx, pid)
	if err != nil {
		return fmt.Errorf("journal_order: replay %s: %w", pid, err)
	}

	got := make([]string, 0, len(events))
	for _, ev := range events {
		got = append(got, ev.Type)
	}
	want := a.Events
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertJournalOrder,
			Expected: fmt.Sprintf("events %v for %s", want, a.Entity),
			Actual:   fmt.Sprintf("events %v", got),
		}
	}
	return nil
}

// assertTraceCount checks how many replies had the given case.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == TraceReply && event.Reply == a.Reply {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s replies", a.Count, a.Reply),
			Actual:   fmt.Sprintf("%d replies", count),
			Trace:    trace,
		}
	}
	return nil
}

// formatEntries renders a map with sorted keys.
func formatEntries(m map[string]string) string {
	keys := slices.Sorted(maps.Keys(m))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState, AssertJournalCount, AssertJournalOrder:
			if actx == nil || actx.Journal == nil || actx.Resolve == nil {
				err = fmt.Errorf("assertion[%d]: %s requires journal context", i, a.Type)
				break
			}
			switch a.Type {
			case AssertFinalState:
				err = assertFinalState(actx, a)
			case AssertJournalCount:
				err = assertJournalCount(actx, a)
			default:
				err = assertJournalOrder(actx, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
