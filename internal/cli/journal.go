package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/persistable/internal/journal"
)

// JournalEvent is the JSON view of one stored event.
type JournalEvent struct {
	Seq  int64           `json:"seq"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the event journal",
		Long: `Inspect the event journal without starting any entity.

Examples:
  persistable journal list
  persistable journal show keyed-store-6f1c0c1e-0d53-4b0e-9d0b-8a3f4c1b2a10`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Summarize every persistence id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(cmd, rootOpts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <persistence-id>",
		Short: "Print the events of one persistence id in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalShow(cmd, rootOpts, args[0])
		},
	})

	return cmd
}

func openJournal(opts *RootOptions) (*journal.Journal, error) {
	j, err := journal.Open(opts.Config.DB)
	if err != nil {
		return nil, wrapf(CodeJournal, err, "failed to open journal")
	}
	return j, nil
}

func runJournalList(cmd *cobra.Command, opts *RootOptions) error {
	j, err := openJournal(opts)
	if err != nil {
		return err
	}
	defer j.Close()

	summaries, err := j.ListPersistenceIDs(cmd.Context())
	if err != nil {
		return wrapf(CodeJournal, err, "failed to list journal")
	}

	return opts.formatter(cmd).Print(summaries, func(w io.Writer) {
		if len(summaries) == 0 {
			fmt.Fprintln(w, "Journal is empty.")
			return
		}
		for _, s := range summaries {
			fmt.Fprintf(w, "%s  events=%d last_seq=%d\n", s.PersistenceID, s.Events, s.LastSeq)
		}
	})
}

func runJournalShow(cmd *cobra.Command, opts *RootOptions, persistenceID string) error {
	j, err := openJournal(opts)
	if err != nil {
		return err
	}
	defer j.Close()

	events, err := j.Replay(cmd.Context(), persistenceID)
	if err != nil {
		return wrapf(CodeJournal, err, "failed to read journal")
	}

	out := make([]JournalEvent, len(events))
	for i, ev := range events {
		out[i] = JournalEvent{Seq: ev.Seq, Type: ev.Type, Data: json.RawMessage(ev.Data)}
	}
	return opts.formatter(cmd).Print(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintf(w, "No events for %s.\n", persistenceID)
			return
		}
		for _, ev := range out {
			fmt.Fprintf(w, "%d  %-10s %s\n", ev.Seq, ev.Type, ev.Data)
		}
	})
}
