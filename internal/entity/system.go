package entity

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// System owns the registry of live processes and the journal they share.
//
// At most one live process exists per identity. Processes run until stopped,
// until they fail, or until Shutdown.
type System struct {
	ctx     context.Context
	cancel  context.CancelFunc
	journal Journal
	log     zerolog.Logger

	registry  *xsync.MapOf[string, *Process]
	onFailure func(Identity, error)
	wg        sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger processes derive theirs from.
// Default: zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(s *System) {
		s.log = log
	}
}

// WithFailureHandler sets the function told about failed top-level
// processes. Children report to their parent instead.
// Default: log at error level.
func WithFailureHandler(fn func(Identity, error)) Option {
	return func(s *System) {
		s.onFailure = fn
	}
}

// NewSystem creates a System backed by j.
func NewSystem(j Journal, opts ...Option) *System {
	ctx, cancel := context.WithCancel(context.Background())
	s := &System{
		ctx:      ctx,
		cancel:   cancel,
		journal:  j,
		log:      zerolog.Nop(),
		registry: xsync.NewMapOf[string, *Process](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onFailure == nil {
		s.onFailure = func(id Identity, err error) {
			s.log.Error().Err(err).Str("persistence_id", id.String()).Msg("top-level entity failed")
		}
	}
	return s
}

// Spawn starts a top-level process for id. The process recovers from the
// journal before handling any message; messages told meanwhile are queued.
func (s *System) Spawn(id Identity, b Behavior) (*Process, error) {
	return s.spawn(id, b, nil)
}

func (s *System) spawn(id Identity, b Behavior, parent *Process) (*Process, error) {
	if id.Kind == "" {
		return nil, fmt.Errorf("spawn: identity kind is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, fmt.Errorf("spawn %s: %w", id, ErrSystemStopped)
	}

	p := newProcess(s, id, b, parent)
	if _, loaded := s.registry.LoadOrStore(id.String(), p); loaded {
		return nil, fmt.Errorf("spawn %s: %w", id, ErrIdentityInUse)
	}

	processesStarted(id.Kind).Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.run(s.ctx)
	}()
	return p, nil
}

// Lookup returns the live process for id, if any.
func (s *System) Lookup(id Identity) (*Process, bool) {
	return s.registry.Load(id.String())
}

// Live returns the number of live processes.
func (s *System) Live() int {
	return s.registry.Size()
}

// release vacates the identity held by p. A newer process registered under
// the same identity is left alone.
func (s *System) release(p *Process) {
	s.registry.Compute(p.id.String(), func(cur *Process, loaded bool) (*Process, bool) {
		if !loaded {
			return nil, true
		}
		return cur, cur == p
	})
}

// Shutdown stops every top-level process, letting each finish its current
// command and cascade to its children, then waits for all processes to end.
// If ctx ends first the remaining processes are cancelled.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.registry.Range(func(_ string, p *Process) bool {
		if p.parent == nil {
			p.Stop()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}
