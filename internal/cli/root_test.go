package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execResult is the captured outcome of one CLI invocation.
type execResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI once against db with args, the way the binary would.
func execute(t *testing.T, db string, args ...string) execResult {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--db", db))
	err := cmd.Execute()
	return execResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

// mustExecute runs the CLI and fails the test on a non-zero exit.
func mustExecute(t *testing.T, db string, args ...string) string {
	t.Helper()
	res := execute(t, db, args...)
	require.NoError(t, res.err, "stderr: %s", res.stderr)
	return res.stdout
}

// decodeData unmarshals the data of an "ok" JSON response into v.
func decodeData(t *testing.T, stdout string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "persistable.db")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "persistable", cmd.Use)
	assert.Contains(t, cmd.Long, "journal")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"kv", "new"}, {"kv", "specify"}, {"kv", "delete"}, {"kv", "get"}, {"kv", "all"}, {"kv", "len"},
		{"factory", "new"}, {"factory", "create"}, {"factory", "delete"}, {"factory", "list"}, {"factory", "forward"},
		{"journal", "list"}, {"journal", "show"},
		{"replay"},
		{"scenario", "run"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, "_"), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "persistable.db", dbFlag.DefValue)

	timeoutFlag := cmd.PersistentFlags().Lookup("ask-timeout")
	require.NotNil(t, timeoutFlag)
	assert.Equal(t, "5s", timeoutFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	res := execute(t, tempDB(t), "kv", "new", "--format", "yaml")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestInvalidLogLevel(t *testing.T) {
	res := execute(t, tempDB(t), "kv", "new", "--log-level", "loud")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestFormatFromEnvironment(t *testing.T) {
	t.Setenv("PERSISTABLE_FORMAT", "json")

	var out map[string]string
	decodeData(t, mustExecute(t, tempDB(t), "kv", "new"), &out)
	assert.Len(t, out["id"], 36)
}

func TestFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("PERSISTABLE_FORMAT", "json")

	out := mustExecute(t, tempDB(t), "kv", "new", "--format", "text")
	assert.Len(t, strings.TrimSpace(out), 36)
}

func TestMetricsFlag(t *testing.T) {
	db := tempDB(t)
	id := strings.TrimSpace(mustExecute(t, db, "kv", "new"))

	res := execute(t, db, "kv", "specify", id, "colour", "blue", "--metrics")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, `persistable_events_persisted_total{kind="keyed-store"}`)
}

func TestMetricsFlag_PrintedOnFailure(t *testing.T) {
	db := tempDB(t)
	id := strings.TrimSpace(mustExecute(t, db, "kv", "new"))
	mustExecute(t, db, "kv", "specify", id, "colour", "blue")

	res := execute(t, db, "kv", "get", id, "shape", "--metrics")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stderr, `persistable_events_replayed_total{kind="keyed-store"}`)
}

func TestMetricsFlag_OffByDefault(t *testing.T) {
	db := tempDB(t)
	id := strings.TrimSpace(mustExecute(t, db, "kv", "new"))

	res := execute(t, db, "kv", "get", id, "shape")
	require.Error(t, res.err)
	assert.NotContains(t, res.stderr, "persistable_")
}
