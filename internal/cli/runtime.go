package cli

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roach88/persistable/internal/entity"
	"github.com/roach88/persistable/internal/journal"
)

// shutdownTimeout bounds how long a command waits for processes to stop.
const shutdownTimeout = 10 * time.Second

// runtime is one command's entity system over the configured journal.
type runtime struct {
	journal *journal.Journal
	sys     *entity.System
	timeout time.Duration
	log     zerolog.Logger
}

// openRuntime opens the journal and starts an empty entity system on it.
func (o *RootOptions) openRuntime() (*runtime, error) {
	j, err := journal.Open(o.Config.DB)
	if err != nil {
		return nil, wrapf(CodeJournal, err, "failed to open journal")
	}
	log := o.Logger.With().Str("db", o.Config.DB).Logger()
	return &runtime{
		journal: j,
		sys:     entity.NewSystem(j, entity.WithLogger(log)),
		timeout: o.Config.AskTimeout,
		log:     log,
	}, nil
}

// spawn starts the top-level process for id.
func (r *runtime) spawn(id entity.Identity, b entity.Behavior) (*entity.Process, error) {
	p, err := r.sys.Spawn(id, b)
	if err != nil {
		return nil, wrapf(CodeInternal, err, "failed to start %s", id)
	}
	return p, nil
}

// ask sends msg to p and waits for the reply. The wait ends early if p
// stops, which is how a failed persist shows up.
func (r *runtime) ask(ctx context.Context, p *entity.Process, msg any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	go func() {
		select {
		case <-p.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	env, err := entity.Ask(ctx, p, msg)
	if err == nil {
		return env.Message, nil
	}
	if perr := p.Err(); perr != nil {
		return nil, wrapf(CodeFailed, perr, "%s failed", p.Identity())
	}
	if errors.Is(err, entity.ErrNoReply) {
		return nil, wrapf(CodeNoReply, err, "%s did not reply", p.Identity())
	}
	return nil, err
}

// close stops every process and closes the journal.
func (r *runtime) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := r.sys.Shutdown(ctx)
	return errors.Join(err, r.journal.Close())
}

// parseID parses an entity id argument.
func parseID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, wrapf(CodeUsage, err, "invalid %s %q", what, s)
	}
	return id, nil
}
