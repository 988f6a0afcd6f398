package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
entities:
  - name: s1
    type: store
  - name: f1
    type: factory
flow:
  - target: s1
    command: specify
    key: KeyA
    value: "1"
    expect:
      reply: Specified
  - target: f1
    command: create
    save_as: c1
  - target: f1
    command: forward
    child: c1
    message: { command: get, key: KeyA }
  - restart: f1
assertions:
  - type: final_state
    entity: c1
    expect: {}
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, []EntityDecl{{Name: "s1", Type: TypeStore}, {Name: "f1", Type: TypeFactory}}, scenario.Entities)
	require.Len(t, scenario.Flow, 4)
	assert.Equal(t, "KeyA", scenario.Flow[0].Key)
	assert.Equal(t, "Specified", scenario.Flow[0].Expect.Reply)
	assert.Equal(t, "c1", scenario.Flow[1].SaveAs)
	assert.Equal(t, &Message{Command: "get", Key: "KeyA"}, scenario.Flow[2].Message)
	assert.Equal(t, "f1", scenario.Flow[3].Restart)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertFinalState, scenario.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_TestdataFiles(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
description: d
entities: [{name: s1, type: store}]
flow: [{target: s1, command: all}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
entities: [{name: s1, type: store}]
flow: [{target: s1, command: all}]
`,
			wantErr: "description is required",
		},
		{
			name: "no entities",
			yaml: `
name: n
description: d
flow: [{target: s1, command: all}]
`,
			wantErr: "entities list is required",
		},
		{
			name: "no flow",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
`,
			wantErr: "flow list is required",
		},
		{
			name: "duplicate entity",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}, {name: s1, type: factory}]
flow: [{target: s1, command: all}]
`,
			wantErr: "duplicate name",
		},
		{
			name: "bad entity type",
			yaml: `
name: n
description: d
entities: [{name: s1, type: queue}]
flow: [{target: s1, command: all}]
`,
			wantErr: "type must be",
		},
		{
			name: "unknown target",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
flow: [{target: s2, command: all}]
`,
			wantErr: "unknown entity",
		},
		{
			name: "factory command on store",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
flow: [{target: s1, command: create}]
`,
			wantErr: "unknown store command",
		},
		{
			name: "forward without message",
			yaml: `
name: n
description: d
entities: [{name: f1, type: factory}]
flow: [{target: f1, command: forward, child: c1}]
`,
			wantErr: "forward requires message",
		},
		{
			name: "delete without child",
			yaml: `
name: n
description: d
entities: [{name: f1, type: factory}]
flow: [{target: f1, command: delete}]
`,
			wantErr: "delete requires child",
		},
		{
			name: "save_as reuses a name",
			yaml: `
name: n
description: d
entities: [{name: f1, type: factory}]
flow: [{target: f1, command: create, save_as: f1}]
`,
			wantErr: "already in use",
		},
		{
			name: "restart with command",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
flow: [{restart: s1, command: all}]
`,
			wantErr: "restart cannot be combined",
		},
		{
			name: "expect without reply",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
flow: [{target: s1, command: all, expect: {count: 1}}]
`,
			wantErr: "reply is required",
		},
		{
			name: "assertion on unknown entity",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
flow: [{target: s1, command: all}]
assertions: [{type: final_state, entity: nope}]
`,
			wantErr: "unknown entity",
		},
		{
			name: "unknown assertion type",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
flow: [{target: s1, command: all}]
assertions: [{type: final_table, entity: s1}]
`,
			wantErr: "unknown assertion type",
		},
		{
			name: "trace_count without reply",
			yaml: `
name: n
description: d
entities: [{name: s1, type: store}]
flow: [{target: s1, command: all}]
assertions: [{type: trace_count, count: 1}]
`,
			wantErr: "reply is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
