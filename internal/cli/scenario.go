package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/persistable/internal/harness"
)

// ScenarioOptions holds flags for the scenario run command.
type ScenarioOptions struct {
	*RootOptions
	Journal  string
	Snapshot bool
}

// ScenarioRunResult holds the outcome of one scenario file.
type ScenarioRunResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run YAML scenarios against fresh entities",
	}

	run := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Execute scenarios and check their expectations",
		Long: `Execute each scenario against a fresh journal and report whether every
expect clause and assertion held.

Scenarios run in memory unless --journal names a SQLite file. They never touch
the journal given by --db.

Exit codes:
  0 - All scenarios passed
  1 - At least one scenario failed
  2 - Command error (file not found, invalid scenario, etc.)

Examples:
  persistable scenario run testdata/scenarios/store_durability.yaml
  persistable scenario run --snapshot testdata/scenarios/factory_lifecycle.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}
	run.Flags().StringVar(&opts.Journal, "journal", "", "SQLite file to run scenarios in (default in memory)")
	run.Flags().BoolVar(&opts.Snapshot, "snapshot", false, "print the canonical trace snapshot of each run")

	cmd.AddCommand(run)
	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, files []string) error {
	f := opts.formatter(cmd)

	var runOpts []harness.Option
	runOpts = append(runOpts, harness.WithLogger(opts.Logger))
	if opts.Journal != "" {
		runOpts = append(runOpts, harness.WithJournalPath(opts.Journal))
	}

	results := make([]ScenarioRunResult, 0, len(files))
	failed := 0
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return wrapf(CodeUsage, err, "failed to load %s", file)
		}
		f.VerboseLog("running %s (%s)", scenario.Name, file)

		res, err := harness.Run(scenario, runOpts...)
		if err != nil {
			return wrapf(CodeInternal, err, "failed to run %s", file)
		}
		if !res.Pass {
			failed++
		}

		if opts.Snapshot && f.Format != "json" {
			snap, err := harness.Snapshot(scenario.Name, res)
			if err != nil {
				return wrapf(CodeInternal, err, "failed to render snapshot")
			}
			if _, err := f.Writer.Write(snap); err != nil {
				return err
			}
		}
		results = append(results, ScenarioRunResult{File: file, Name: scenario.Name, Pass: res.Pass, Errors: res.Errors})
	}

	if err := f.Print(results, func(w io.Writer) { writeScenarioText(w, results) }); err != nil {
		return err
	}
	if failed > 0 {
		return failf(CodeScenario, "%d of %d scenario(s) failed", failed, len(files))
	}
	return nil
}

func writeScenarioText(w io.Writer, results []ScenarioRunResult) {
	for _, r := range results {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", status, r.Name, r.File)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}
