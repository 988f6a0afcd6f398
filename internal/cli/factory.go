package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/persistable/internal/idgen"
	"github.com/roach88/persistable/internal/kv"
	"github.com/roach88/persistable/internal/lifecycle"
)

// ListReply is the JSON payload of a factory list.
type ListReply struct {
	Active  []string `json:"active"`
	Retired []string `json:"retired"`
}

// NewFactoryCommand creates the factory command group. A factory is a
// lifecycle manager whose children are keyed stores.
func NewFactoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "factory",
		Short: "Issue, address and retire keyed stores through a factory",
		Long: `A factory issues child ids, starts a child store the first time it is
addressed, and retires ids for good on delete. Messages to unknown or
retired children are dropped, so forward exits with code 1.

Examples:
  persistable factory new
  persistable factory create <factory-id>
  persistable factory forward <factory-id> <child-id> specify colour blue
  persistable factory forward <factory-id> <child-id> all
  persistable factory delete <factory-id> <child-id>
  persistable factory list <factory-id> --format json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Print a fresh factory id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := idgen.Random{}.NewID()
			return rootOpts.formatter(cmd).Print(map[string]string{"id": id.String()}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <factory-id>",
		Short: "Issue a new child id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFactoryCommand(cmd, rootOpts, args[0], lifecycle.Create{}, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <factory-id> <child-id>",
		Short: "Retire a child id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			child, err := parseID("child id", args[1])
			if err != nil {
				return err
			}
			return runFactoryCommand(cmd, rootOpts, args[0], lifecycle.Delete{ID: child}, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <factory-id>",
		Short: "Print issued and retired child ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFactoryCommand(cmd, rootOpts, args[0], lifecycle.List{}, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forward <factory-id> <child-id> <specify|delete|get|all|len> [args...]",
		Short: "Send a store command to a child",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			child, err := parseID("child id", args[1])
			if err != nil {
				return err
			}
			msg, err := storeMessage(args[2], args[3:])
			if err != nil {
				return err
			}
			return runFactoryCommand(cmd, rootOpts, args[0], lifecycle.Forward{ID: child, Message: msg}, args[3:])
		},
	})

	return cmd
}

// newFactory builds the manager behavior used for every factory.
func newFactory() *lifecycle.Manager {
	return lifecycle.New(kv.Kind, kv.NewStringStore)
}

func runFactoryCommand(cmd *cobra.Command, opts *RootOptions, factoryArg string, msg any, storeArgs []string) (err error) {
	id, err := parseID("factory id", factoryArg)
	if err != nil {
		return err
	}

	rt, err := opts.openRuntime()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rt.close()) }()

	p, err := rt.spawn(lifecycle.Identity(id), newFactory())
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	reply, err := rt.ask(cmd.Context(), p, msg)
	switch fwd, ok := msg.(lifecycle.Forward); {
	case err == nil:
		return printFactoryReply(f, storeArgs, reply)
	case ok && CodeOf(err) == CodeNoReply:
		return f.Report(wrapf(CodeNoReply, err, "child %s is unknown or retired", fwd.ID),
			map[string]string{"factory": id.String(), "child": fwd.ID.String()})
	default:
		return err
	}
}

func printFactoryReply(f *OutputFormatter, storeArgs []string, reply any) error {
	switch r := reply.(type) {
	case lifecycle.Created:
		return f.Print(map[string]string{"reply": "Created", "id": r.ID.String()}, func(w io.Writer) {
			fmt.Fprintln(w, r.ID)
		})
	case lifecycle.Deleted:
		return f.Print(map[string]string{"reply": "Deleted"}, func(w io.Writer) {
			fmt.Fprintln(w, "deleted")
		})
	case lifecycle.Listed:
		out := ListReply{Active: idList(r.Active), Retired: idList(r.Retired)}
		return f.Print(out, func(w io.Writer) {
			for _, id := range out.Active {
				fmt.Fprintf(w, "active  %s\n", id)
			}
			for _, id := range out.Retired {
				fmt.Fprintf(w, "retired %s\n", id)
			}
		})
	}
	return printStoreReply(f, storeArgs, reply)
}
