package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the given variables for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyDB, DefaultDB, "")
	fs.String(KeyLogLevel, DefaultLogLevel, "")
	fs.String(KeyFormat, DefaultFormat, "")
	fs.Duration(KeyAskTimeout, DefaultAskTimeout, "")
	fs.Bool(KeyVerbose, false, "")
	return fs
}

var allEnv = []string{
	"PERSISTABLE_DB",
	"PERSISTABLE_LOG_LEVEL",
	"PERSISTABLE_LOG_FORMAT",
	"PERSISTABLE_FORMAT",
	"PERSISTABLE_ASK_TIMEOUT",
	"PERSISTABLE_VERBOSE",
	"PERSISTABLE_METRICS",
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, allEnv...)

	cfg, err := Load(Options{EnvFiles: []string{}})
	require.NoError(t, err)
	assert.Equal(t, Config{
		DB:         DefaultDB,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		Format:     DefaultFormat,
		AskTimeout: DefaultAskTimeout,
	}, cfg)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t, allEnv...)
	path := writeFile(t, "persistable.toml", `
db = "from-file.db"
log-level = "debug"
ask-timeout = "250ms"
metrics = true
`)

	cfg, err := Load(Options{ConfigFile: path, EnvFiles: []string{}})
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.DB)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.AskTimeout)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, DefaultFormat, cfg.Format)
}

func TestLoad_EnvFileOverridesConfigFile(t *testing.T) {
	clearEnv(t, allEnv...)
	path := writeFile(t, "persistable.toml", `db = "from-file.db"`)
	envFile := writeFile(t, ".env", "PERSISTABLE_DB=from-dotenv.db\n")

	cfg, err := Load(Options{ConfigFile: path, EnvFiles: []string{envFile}})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.DB)
}

func TestLoad_EnvOverridesEnvFile(t *testing.T) {
	clearEnv(t, allEnv...)
	t.Setenv("PERSISTABLE_DB", "from-env.db")
	envFile := writeFile(t, ".env", "PERSISTABLE_DB=from-dotenv.db\n")

	cfg, err := Load(Options{EnvFiles: []string{envFile}})
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	clearEnv(t, allEnv...)
	t.Setenv("PERSISTABLE_DB", "from-env.db")
	t.Setenv("PERSISTABLE_ASK_TIMEOUT", "2s")
	path := writeFile(t, "persistable.toml", `format = "json"`)

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--db", "from-flag.db", "--verbose"}))

	cfg, err := Load(Options{Flags: fs, ConfigFile: path, EnvFiles: []string{}})
	require.NoError(t, err)
	assert.Equal(t, "from-flag.db", cfg.DB)
	assert.True(t, cfg.Verbose)
	// Unchanged flags do not shadow lower sources.
	assert.Equal(t, 2*time.Second, cfg.AskTimeout)
	assert.Equal(t, "json", cfg.Format)
}

func TestLoad_MissingEnvFileIsSkipped(t *testing.T) {
	clearEnv(t, allEnv...)

	_, err := Load(Options{EnvFiles: []string{filepath.Join(t.TempDir(), "absent.env")}})
	assert.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t, allEnv...)

	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "absent.toml"), EnvFiles: []string{}})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad format", map[string]string{"PERSISTABLE_FORMAT": "yaml"}},
		{"zero timeout", map[string]string{"PERSISTABLE_ASK_TIMEOUT": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, allEnv...)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(Options{EnvFiles: []string{}})
			assert.Error(t, err)
		})
	}
}
