package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/persistable/internal/codec"
)

// TraceSnapshot captures everything a scenario run observably produced.
type TraceSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	IDs          map[string]string `json:"ids"`
	Trace        []TraceEvent      `json:"trace"`
	Journal      []JournalEntry    `json:"journal"`
}

// Snapshot renders a result as canonical JSON, indented for review, with a
// trailing newline. Equal runs produce equal bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	canonical, err := codec.MarshalNFC(TraceSnapshot{
		ScenarioName: scenarioName,
		IDs:          result.IDs,
		Trace:        result.Trace,
		Journal:      result.Journal,
	})
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, canonical, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
