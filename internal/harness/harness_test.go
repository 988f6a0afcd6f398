package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_TestdataScenariosPass(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_AssignsDeterministicIDs(t *testing.T) {
	scenario := mustParse(t, `
name: ids
description: d
entities:
  - {name: a, type: store}
  - {name: f, type: factory}
flow:
  - {target: f, command: create, save_as: c}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a": "00000000-0000-0000-0000-000000000001",
		"f": "00000000-0000-0000-0000-000000000002",
		"c": "00000000-0000-0000-0000-000000000003",
	}, result.IDs)
}

func TestRun_TraceNumbersEveryEvent(t *testing.T) {
	scenario := mustParse(t, `
name: trace
description: d
entities: [{name: s1, type: store}]
flow:
  - {target: s1, command: specify, key: k, value: v}
  - {restart: s1}
  - {target: s1, command: get, key: k}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Trace, 5)

	assert.Equal(t, TraceEvent{Type: TraceCommand, Target: "s1", Command: "specify", Args: map[string]any{"key": "k", "value": "v"}, Seq: 1}, result.Trace[0])
	assert.Equal(t, TraceEvent{Type: TraceReply, Target: "s1", Reply: "Specified", Seq: 2}, result.Trace[1])
	assert.Equal(t, TraceEvent{Type: TraceRestart, Target: "s1", Seq: 3}, result.Trace[2])
	assert.Equal(t, TraceEvent{Type: TraceReply, Target: "s1", Reply: "Got", Result: map[string]any{"value": "v"}, Seq: 5}, result.Trace[4])
}

func TestRun_CapturesJournal(t *testing.T) {
	scenario := mustParse(t, `
name: journal
description: d
entities: [{name: s1, type: store}]
flow:
  - {target: s1, command: specify, key: k, value: v}
  - {target: s1, command: delete, key: k}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Journal, 2)

	pid := "keyed-store-00000000-0000-0000-0000-000000000001"
	assert.Equal(t, JournalEntry{PersistenceID: pid, Seq: 1, Type: "specified", Data: []byte(`{"key":"k","value":"v"}`)}, result.Journal[0])
	assert.Equal(t, JournalEntry{PersistenceID: pid, Seq: 2, Type: "deleted", Data: []byte(`{"key":"k"}`)}, result.Journal[1])
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario := mustParse(t, `
name: failing
description: d
entities: [{name: s1, type: store}]
flow:
  - {target: s1, command: specify, key: k, value: v}
  - target: s1
    command: get
    key: k
    expect: {reply: Got, value: "other"}
  - target: s1
    command: len
    expect: {reply: NotFound}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `flow[1]: expected value "other"`)
	assert.Contains(t, result.Errors[1], "flow[2]: expected reply NotFound, got Count")
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	scenario := mustParse(t, `
name: failing_assertions
description: d
entities: [{name: s1, type: store}]
flow:
  - {target: s1, command: specify, key: k, value: v}
assertions:
  - {type: final_state, entity: s1, expect: {k: w}}
  - {type: journal_count, entity: s1, count: 3}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: final_state")
	assert.Contains(t, result.Errors[1], "Assertion failed: journal_count")
}

func TestRun_UnknownChildIsAnError(t *testing.T) {
	scenario := mustParse(t, `
name: bad_child
description: d
entities: [{name: f1, type: factory}]
flow:
  - {target: f1, command: delete, child: not-a-child}
`)

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a saved name nor an id")
}

func TestRun_JournalFile(t *testing.T) {
	scenario := mustParse(t, `
name: file
description: d
entities: [{name: s1, type: store}]
flow:
  - {target: s1, command: specify, key: k, value: v}
`)
	path := filepath.Join(t.TempDir(), "scenario.db")

	result, err := Run(scenario, WithJournalPath(path))
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.FileExists(t, path)
}
