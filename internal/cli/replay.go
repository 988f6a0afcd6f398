package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/persistable/internal/codec"
	"github.com/roach88/persistable/internal/entity"
	"github.com/roach88/persistable/internal/journal"
	"github.com/roach88/persistable/internal/kv"
	"github.com/roach88/persistable/internal/lifecycle"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	PersistenceID string // optional - one stream only
}

// ReplayStreamResult holds the replay result for a single persistence id.
type ReplayStreamResult struct {
	PersistenceID string `json:"persistence_id"`
	Kind          string `json:"kind"`
	Events        int    `json:"events"`
	State         string `json:"state,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Streams          []ReplayStreamResult `json:"streams"`
	TotalStreams     int                  `json:"total_streams"`
	AllDeterministic bool                 `json:"all_deterministic"`
	Failed           int                  `json:"failed"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Fold every journaled stream and verify determinism",
		Long: `Rebuild the state of every persistence id from the journal, without
starting any entity, and verify that replay is deterministic.

Each stream is folded twice through the same event handlers its entity uses
on recovery, and the two resulting states are compared byte for byte in
canonical JSON. A stream whose events cannot be folded is reported as failed.

Exit codes:
  0 - All streams fold and are deterministic
  1 - A stream failed to fold or replay diverged
  2 - Command error (database not found, etc.)

Examples:
  persistable replay --db ./persistable.db
  persistable replay --db ./persistable.db --id keyed-store-<uuid>
  persistable replay --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.PersistenceID, "id", "", "replay one persistence id only")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	ctx := cmd.Context()

	j, err := openJournal(opts.RootOptions)
	if err != nil {
		return err
	}
	defer j.Close()

	var ids []string
	if opts.PersistenceID != "" {
		ids = []string{opts.PersistenceID}
	} else {
		summaries, err := j.ListPersistenceIDs(ctx)
		if err != nil {
			return wrapf(CodeJournal, err, "failed to list journal")
		}
		for _, s := range summaries {
			ids = append(ids, s.PersistenceID)
		}
	}

	result := ReplayResult{
		Streams:          make([]ReplayStreamResult, 0, len(ids)),
		TotalStreams:     len(ids),
		AllDeterministic: true,
	}
	for _, id := range ids {
		r, err := replayStream(ctx, j, id)
		if err != nil {
			return wrapf(CodeJournal, err, "failed to replay %s", id)
		}
		opts.formatter(cmd).VerboseLog("replayed %s (%d events)", id, r.Events)
		if r.Error != "" {
			result.Failed++
		}
		if r.Error == "" && !r.Deterministic {
			result.AllDeterministic = false
		}
		result.Streams = append(result.Streams, r)
	}

	if err := opts.formatter(cmd).Print(result, func(w io.Writer) { writeReplayText(w, result) }); err != nil {
		return err
	}
	if result.Failed > 0 {
		return failf(CodeFold, "%d stream(s) failed to fold", result.Failed)
	}
	if !result.AllDeterministic {
		return failf(CodeDiverged, "replay is not deterministic")
	}
	return nil
}

// replayStream folds one stream twice and compares the states. Fold
// failures are reported in the result; only journal errors are returned.
func replayStream(ctx context.Context, j *journal.Journal, persistenceID string) (ReplayStreamResult, error) {
	r := ReplayStreamResult{PersistenceID: persistenceID}

	id, err := entity.ParseIdentity(persistenceID)
	if err != nil {
		r.Error = err.Error()
		return r, nil
	}
	r.Kind = id.Kind

	first, err := j.Replay(ctx, persistenceID)
	if err != nil {
		return r, err
	}
	second, err := j.Replay(ctx, persistenceID)
	if err != nil {
		return r, err
	}
	r.Events = len(first)

	a, describe, err := foldStream(id.Kind, first)
	if err != nil {
		r.Error = err.Error()
		return r, nil
	}
	b, _, err := foldStream(id.Kind, second)
	if err != nil {
		r.Error = err.Error()
		return r, nil
	}

	r.Deterministic = bytes.Equal(a, b)
	r.State = describe
	return r, nil
}

// foldStream applies events to a fresh behavior of kind and returns the
// canonical encoding of the resulting state with a short description.
func foldStream(kind string, events []entity.Event) ([]byte, string, error) {
	var (
		state    any
		describe string
	)
	switch kind {
	case kv.Kind:
		s := kv.New[string, json.RawMessage]()
		if err := applyAll(s, events); err != nil {
			return nil, "", err
		}
		snap := s.Snapshot()
		state, describe = snap, fmt.Sprintf("%d keys", len(snap))
	case lifecycle.Kind:
		m := newFactory()
		if err := applyAll(m, events); err != nil {
			return nil, "", err
		}
		children := m.Children()
		state = ListReply{Active: idList(children.Active), Retired: idList(children.Retired)}
		describe = fmt.Sprintf("%d active, %d retired", len(children.Active), len(children.Retired))
	default:
		return nil, "", fmt.Errorf("unknown kind %q", kind)
	}

	encoded, err := codec.Marshal(state)
	if err != nil {
		return nil, "", err
	}
	return encoded, describe, nil
}

func applyAll(b entity.Behavior, events []entity.Event) error {
	for _, ev := range events {
		if err := b.Apply(ev); err != nil {
			return fmt.Errorf("seq %d: %w", ev.Seq, err)
		}
	}
	return nil
}

func writeReplayText(w io.Writer, result ReplayResult) {
	if result.TotalStreams == 0 {
		fmt.Fprintln(w, "No streams found in journal.")
		return
	}

	fmt.Fprintf(w, "Replay verification: %d stream(s)\n\n", result.TotalStreams)
	for _, s := range result.Streams {
		switch {
		case s.Error != "":
			fmt.Fprintf(w, "  FAIL %s: %s\n", s.PersistenceID, s.Error)
		case !s.Deterministic:
			fmt.Fprintf(w, "  DIFF %s (%d events)\n", s.PersistenceID, s.Events)
		default:
			fmt.Fprintf(w, "  ok   %s (%d events, %s)\n", s.PersistenceID, s.Events, s.State)
		}
	}

	fmt.Fprintln(w)
	if result.Failed == 0 && result.AllDeterministic {
		fmt.Fprintln(w, "All streams replay deterministically.")
	}
}
