package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against one journal.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entities are started, in order, before the flow.
	Entities []EntityDecl `yaml:"entities"`

	// Flow is executed step by step. Each step waits for its reply.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are evaluated against the journal after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Entity types.
const (
	TypeStore   = "store"
	TypeFactory = "factory"
)

// EntityDecl names a top-level entity of the scenario.
type EntityDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// FlowStep is either a command sent to Target or a restart of Restart.
type FlowStep struct {
	// Target is the name of a declared entity.
	Target string `yaml:"target,omitempty"`

	// Command is a store or factory command name.
	Command string `yaml:"command,omitempty"`

	Key   string `yaml:"key,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Child names a child saved by an earlier create, or is a literal id.
	Child string `yaml:"child,omitempty"`

	// SaveAs names the child issued by a create.
	SaveAs string `yaml:"save_as,omitempty"`

	// Message is the store command carried by forward.
	Message *Message `yaml:"message,omitempty"`

	// Restart stops the named entity and starts it again from its journal.
	Restart string `yaml:"restart,omitempty"`

	// Expect validates the reply. If nil, any reply (or none) is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Message is a store command forwarded through a factory.
type Message struct {
	Command string `yaml:"command"`
	Key     string `yaml:"key,omitempty"`
	Value   string `yaml:"value,omitempty"`
}

// ExpectClause specifies the expected reply.
type ExpectClause struct {
	// Reply is the expected case name, e.g. "Got" or "NoReply".
	Reply string `yaml:"reply"`

	// Value is checked against Got.
	Value *string `yaml:"value,omitempty"`

	// Entries is checked exactly against GotAll.
	Entries map[string]string `yaml:"entries,omitempty"`

	// Count is checked against Count.
	Count *int `yaml:"count,omitempty"`

	// Active and Retired are checked exactly against Listed. Entries are
	// child names or literal ids.
	Active  []string `yaml:"active,omitempty"`
	Retired []string `yaml:"retired,omitempty"`
}

// Assertion validates the journal after the flow.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Entity names a declared entity or a saved child
	// (final_state, journal_count, journal_order).
	Entity string `yaml:"entity,omitempty"`

	// Expect is the full expected map (final_state).
	Expect map[string]string `yaml:"expect,omitempty"`

	// Count is the expected number of events or replies
	// (journal_count, trace_count).
	Count int `yaml:"count,omitempty"`

	// Events are the expected event types in order (journal_order).
	Events []string `yaml:"events,omitempty"`

	// Reply is the reply case counted (trace_count).
	Reply string `yaml:"reply,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState   = "final_state"
	AssertJournalCount = "journal_count"
	AssertJournalOrder = "journal_order"
	AssertTraceCount   = "trace_count"
)

var storeCommands = map[string]bool{"specify": true, "delete": true, "get": true, "all": true, "len": true}

var factoryCommands = map[string]bool{"create": true, "delete": true, "list": true, "forward": true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and cross references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Entities) == 0 {
		return fmt.Errorf("entities list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	types := make(map[string]string, len(s.Entities))
	for i, e := range s.Entities {
		if e.Name == "" {
			return fmt.Errorf("entities[%d]: name is required", i)
		}
		if _, dup := types[e.Name]; dup {
			return fmt.Errorf("entities[%d]: duplicate name %q", i, e.Name)
		}
		if e.Type != TypeStore && e.Type != TypeFactory {
			return fmt.Errorf("entities[%d]: type must be %q or %q, got %q", i, TypeStore, TypeFactory, e.Type)
		}
		types[e.Name] = e.Type
	}

	names := make(map[string]bool, len(types))
	for name := range types {
		names[name] = true
	}

	for i, step := range s.Flow {
		if err := validateStep(step, types, names); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.SaveAs != "" {
			names[step.SaveAs] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, names); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step FlowStep, types map[string]string, names map[string]bool) error {
	if step.Restart != "" {
		if step.Target != "" || step.Command != "" {
			return fmt.Errorf("restart cannot be combined with target or command")
		}
		if _, ok := types[step.Restart]; !ok {
			return fmt.Errorf("restart: unknown entity %q", step.Restart)
		}
		return nil
	}

	typ, ok := types[step.Target]
	if !ok {
		return fmt.Errorf("target: unknown entity %q", step.Target)
	}

	switch typ {
	case TypeStore:
		if !storeCommands[step.Command] {
			return fmt.Errorf("unknown store command %q", step.Command)
		}
		if step.Child != "" || step.SaveAs != "" || step.Message != nil {
			return fmt.Errorf("child, save_as and message only apply to factories")
		}
	case TypeFactory:
		if !factoryCommands[step.Command] {
			return fmt.Errorf("unknown factory command %q", step.Command)
		}
		if (step.Command == "delete" || step.Command == "forward") && step.Child == "" {
			return fmt.Errorf("%s requires child", step.Command)
		}
		if step.SaveAs != "" {
			if step.Command != "create" {
				return fmt.Errorf("save_as only applies to create")
			}
			if names[step.SaveAs] {
				return fmt.Errorf("save_as: name %q already in use", step.SaveAs)
			}
		}
		if step.Command == "forward" {
			if step.Message == nil {
				return fmt.Errorf("forward requires message")
			}
			if !storeCommands[step.Message.Command] {
				return fmt.Errorf("message: unknown store command %q", step.Message.Command)
			}
		}
	}

	if step.Expect != nil && step.Expect.Reply == "" {
		return fmt.Errorf("expect: reply is required")
	}
	return nil
}

func validateAssertion(a Assertion, names map[string]bool) error {
	switch a.Type {
	case AssertFinalState, AssertJournalCount, AssertJournalOrder:
		if a.Entity == "" {
			return fmt.Errorf("entity is required for %s", a.Type)
		}
		if !names[a.Entity] {
			return fmt.Errorf("unknown entity %q", a.Entity)
		}
		if a.Type == AssertJournalCount && a.Count < 0 {
			return fmt.Errorf("count must be non-negative for %s", a.Type)
		}
	case AssertTraceCount:
		if a.Reply == "" {
			return fmt.Errorf("reply is required for %s", a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for %s", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
