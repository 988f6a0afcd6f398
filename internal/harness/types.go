package harness

import "encoding/json"

// Trace event types.
const (
	TraceCommand = "command"
	TraceReply   = "reply"
	TraceRestart = "restart"
)

// ReplyNone is the case recorded when nothing answered.
const ReplyNone = "NoReply"

// TraceEvent is one entry of a scenario trace. A command step produces a
// command event followed by its reply event.
type TraceEvent struct {
	Type    string         `json:"type"`
	Target  string         `json:"target"`
	Command string         `json:"command,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Reply   string         `json:"reply,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Seq     int64          `json:"seq"`
}

// JournalEntry is one persisted event, as captured after the flow.
type JournalEntry struct {
	PersistenceID string          `json:"persistence_id"`
	Seq           int64           `json:"seq"`
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds commands, replies and restarts in execution order.
	Trace []TraceEvent `json:"trace"`

	// Journal holds every persisted event, grouped by persistence id in
	// ascending order, each group in commit order.
	Journal []JournalEntry `json:"journal"`

	// IDs maps entity and child names to their ids.
	IDs map[string]string `json:"ids"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Journal: []JournalEntry{},
		IDs:     make(map[string]string),
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCommandTrace records a command sent to target.
func (r *Result) AddCommandTrace(target, command string, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    TraceCommand,
		Target:  target,
		Command: command,
		Args:    args,
		Seq:     seq,
	})
}

// AddReplyTrace records the reply to the preceding command.
func (r *Result) AddReplyTrace(target, reply string, result map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   TraceReply,
		Target: target,
		Reply:  reply,
		Result: result,
		Seq:    seq,
	})
}

// AddRestartTrace records a restart of target.
func (r *Result) AddRestartTrace(target string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   TraceRestart,
		Target: target,
		Seq:    seq,
	})
}
