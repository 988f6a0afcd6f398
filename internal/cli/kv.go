package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/persistable/internal/idgen"
	"github.com/roach88/persistable/internal/kv"
)

// StoreReply is the JSON payload of a keyed store answer.
type StoreReply struct {
	Reply   string            `json:"reply"`
	Key     string            `json:"key,omitempty"`
	Value   *string           `json:"value,omitempty"`
	Entries map[string]string `json:"entries,omitempty"`
	Count   *int              `json:"count,omitempty"`
}

// NewKVCommand creates the kv command group.
func NewKVCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write keyed stores",
		Long: `Read and write keyed stores of string keys and string values.

Each store is named by an id. A store's writes are journaled before they are
acknowledged, and the store is rebuilt from the journal on every command.

Examples:
  persistable kv new
  persistable kv specify 6f1c0c1e-0d53-4b0e-9d0b-8a3f4c1b2a10 colour blue
  persistable kv get 6f1c0c1e-0d53-4b0e-9d0b-8a3f4c1b2a10 colour
  persistable kv all 6f1c0c1e-0d53-4b0e-9d0b-8a3f4c1b2a10 --format json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Print a fresh store id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := idgen.Random{}.NewID()
			return rootOpts.formatter(cmd).Print(map[string]string{"id": id.String()}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	})

	for _, sub := range storeSubcommands {
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.ExactArgs(sub.args + 1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStoreCommand(cmd, rootOpts, args)
			},
		})
	}

	return cmd
}

type storeSubcommand struct {
	name  string
	use   string
	short string
	args  int // arguments after the entity id
}

var storeSubcommands = []storeSubcommand{
	{"specify", "specify <store-id> <key> <value>", "Set a key to a value", 2},
	{"delete", "delete <store-id> <key>", "Remove a key", 1},
	{"get", "get <store-id> <key>", "Print the value of a key", 1},
	{"all", "all <store-id>", "Print every entry", 0},
	{"len", "len <store-id>", "Print the number of keys", 0},
}

func runStoreCommand(cmd *cobra.Command, opts *RootOptions, args []string) (err error) {
	id, err := parseID("store id", args[0])
	if err != nil {
		return err
	}
	msg, err := storeMessage(cmd.Name(), args[1:])
	if err != nil {
		return err
	}

	rt, err := opts.openRuntime()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rt.close()) }()

	p, err := rt.spawn(kv.Identity(id), kv.New[string, string]())
	if err != nil {
		return err
	}
	rt.log.Debug().Str("store", id.String()).Str("command", cmd.Name()).Msg("asking store")

	reply, err := rt.ask(cmd.Context(), p, msg)
	if err != nil {
		return err
	}
	return printStoreReply(opts.formatter(cmd), args[1:], reply)
}

// storeMessage builds the store command named by command. args holds the
// positional arguments after the entity id.
func storeMessage(command string, args []string) (any, error) {
	i := slices.IndexFunc(storeSubcommands, func(s storeSubcommand) bool { return s.name == command })
	if i < 0 {
		return nil, failf(CodeUsage, "unknown store command %q", command)
	}
	if n := storeSubcommands[i].args; len(args) != n {
		return nil, failf(CodeUsage, "%s takes %d argument(s), got %d", command, n, len(args))
	}

	switch command {
	case "specify":
		return kv.Specify[string, string]{Key: args[0], Value: args[1]}, nil
	case "delete":
		return kv.Delete[string]{Key: args[0]}, nil
	case "get":
		return kv.Get[string]{Key: args[0]}, nil
	case "all":
		return kv.GetAll{}, nil
	default:
		return kv.Len{}, nil
	}
}

// describeStoreReply converts a store answer into its JSON payload.
func describeStoreReply(args []string, reply any) (StoreReply, error) {
	var key string
	if len(args) > 0 {
		key = args[0]
	}
	switch r := reply.(type) {
	case kv.Specified:
		return StoreReply{Reply: "Specified", Key: key}, nil
	case kv.Deleted:
		return StoreReply{Reply: "Deleted", Key: key}, nil
	case kv.Got[string]:
		return StoreReply{Reply: "Got", Key: key, Value: &r.Value}, nil
	case kv.NotFound:
		return StoreReply{Reply: "NotFound", Key: key}, nil
	case kv.GotAll[string, string]:
		return StoreReply{Reply: "GotAll", Entries: r.Entries}, nil
	case kv.Count:
		return StoreReply{Reply: "Count", Count: &r.N}, nil
	}
	return StoreReply{}, fmt.Errorf("unexpected reply %T", reply)
}

func printStoreReply(f *OutputFormatter, args []string, reply any) error {
	out, err := describeStoreReply(args, reply)
	if err != nil {
		return err
	}
	if err := f.Print(out, func(w io.Writer) { writeStoreReply(w, out) }); err != nil {
		return err
	}
	if out.Reply == "NotFound" {
		return failf(CodeNotFound, "key %q not found", out.Key)
	}
	return nil
}

func writeStoreReply(w io.Writer, r StoreReply) {
	switch r.Reply {
	case "Specified":
		fmt.Fprintf(w, "specified %s\n", r.Key)
	case "Deleted":
		fmt.Fprintf(w, "deleted %s\n", r.Key)
	case "Got":
		fmt.Fprintln(w, *r.Value)
	case "GotAll":
		for _, k := range slices.Sorted(maps.Keys(r.Entries)) {
			fmt.Fprintf(w, "%s=%s\n", k, r.Entries[k])
		}
	case "Count":
		fmt.Fprintln(w, *r.Count)
	}
}

// idList renders ids as strings, keeping their order.
func idList(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
