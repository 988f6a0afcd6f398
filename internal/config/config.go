// Package config resolves CLI settings from flags, the environment, .env
// files, an optional TOML file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, so the key
// ask-timeout is read from PERSISTABLE_ASK_TIMEOUT.
const EnvPrefix = "persistable"

// Keys. Flags registered under these names override every other source.
const (
	KeyDB         = "db"
	KeyLogLevel   = "log-level"
	KeyLogFormat  = "log-format"
	KeyFormat     = "format"
	KeyAskTimeout = "ask-timeout"
	KeyVerbose    = "verbose"
	KeyMetrics    = "metrics"
)

// Defaults.
const (
	DefaultDB         = "persistable.db"
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "console"
	DefaultFormat     = "text"
	DefaultAskTimeout = 5 * time.Second
)

// DefaultEnvFiles are loaded into the environment by Load when present.
// Variables already set are never overwritten.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config holds resolved settings.
type Config struct {
	DB         string
	LogLevel   string
	LogFormat  string
	Format     string
	AskTimeout time.Duration
	Verbose    bool
	Metrics    bool
}

// Options controls where Load looks.
type Options struct {
	// Flags are bound by name; only flags the user changed take precedence
	// over other sources. May be nil.
	Flags *pflag.FlagSet
	// ConfigFile is a TOML (or any viper-supported) file. Empty means none.
	ConfigFile string
	// EnvFiles default to DefaultEnvFiles. Missing files are skipped.
	EnvFiles []string
}

// Load resolves a Config.
func Load(opts Options) (Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetDefault(KeyDB, DefaultDB)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyFormat, DefaultFormat)
	v.SetDefault(KeyAskTimeout, DefaultAskTimeout)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyMetrics, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		// Unchanged flags only contribute their defaults, so they never
		// shadow env or file values.
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			if bindErr == nil && f.Changed {
				bindErr = v.BindPFlag(f.Name, f)
			}
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	cfg := Config{
		DB:         v.GetString(KeyDB),
		LogLevel:   v.GetString(KeyLogLevel),
		LogFormat:  v.GetString(KeyLogFormat),
		Format:     v.GetString(KeyFormat),
		AskTimeout: v.GetDuration(KeyAskTimeout),
		Verbose:    v.GetBool(KeyVerbose),
		Metrics:    v.GetBool(KeyMetrics),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have a closed set of values.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("%s must not be empty", KeyDB)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid %s %q (want text or json)", KeyFormat, c.Format)
	}
	if c.AskTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyAskTimeout, c.AskTimeout)
	}
	return nil
}
