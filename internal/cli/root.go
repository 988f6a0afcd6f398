package cli

import (
	"slices"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/persistable/internal/config"
	"github.com/roach88/persistable/internal/logging"
)

// RootOptions holds global flags for all commands, and the settings they
// resolve to once config files and the environment have been read.
type RootOptions struct {
	ConfigFile string

	// Config is resolved in PersistentPreRunE.
	Config config.Config
	Logger zerolog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the persistable CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "persistable",
		Short: "Event-sourced keyed stores and lifecycle managers on SQLite",
		Long: `persistable drives event-sourced entities stored in a SQLite journal.

Keyed stores persist every write before answering it. Factories (lifecycle
managers) issue child ids, start children on first use, and retire ids for
good on delete. Every command replays the journal, so state survives between
invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags. Their defaults are also the config defaults, so an
	// unset flag never shadows the environment or the config file.
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "", "path to a TOML config file")
	pf.String(config.KeyDB, config.DefaultDB, "path to the SQLite journal")
	pf.String(config.KeyLogLevel, config.DefaultLogLevel, "log level (trace|debug|info|warn|error|disabled)")
	pf.String(config.KeyLogFormat, config.DefaultLogFormat, "log format (console|json)")
	pf.String(config.KeyFormat, config.DefaultFormat, "output format (json|text)")
	pf.Duration(config.KeyAskTimeout, config.DefaultAskTimeout, "how long to wait for an entity to answer")
	pf.BoolP(config.KeyVerbose, "v", false, "verbose output")
	pf.Bool(config.KeyMetrics, false, "print Prometheus metrics to stderr after the command")

	cmd.AddCommand(NewKVCommand(opts))
	cmd.AddCommand(NewFactoryCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	withMetrics(cmd, opts)
	return cmd
}

// withMetrics makes every runnable command under cmd print metrics when
// asked, whether or not it fails. Cobra skips post-run hooks on error.
func withMetrics(cmd *cobra.Command, opts *RootOptions) {
	for _, sub := range cmd.Commands() {
		withMetrics(sub, opts)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if opts.Config.Metrics {
			metrics.WritePrometheus(cmd.ErrOrStderr(), false)
		}
		return err
	}
}

// resolve loads the layered config and builds the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{Flags: cmd.Flags(), ConfigFile: o.ConfigFile})
	if err != nil {
		return wrapf(CodeUsage, err, "invalid configuration")
	}
	if !isValidFormat(cfg.Format) {
		return failf(CodeUsage, "invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return wrapf(CodeUsage, err, "invalid logging configuration")
	}

	o.Config = cfg
	o.Logger = logger
	return nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Config.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Config.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
