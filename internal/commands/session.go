package commands

import (
	"context"
	"io"
	"sync"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/service"
)

// attachTimeout bounds waiting for the first snapshot and for echoes.
const attachTimeout = 15 * time.Second

// session drives a controller for one command invocation and tracks the
// snapshots it emits.
type session struct {
	ctl *controller.Controller

	mu      sync.Mutex
	version int
	latest  service.TaskList
	changed chan struct{}
}

// openSession attaches a controller to the configured list and waits for
// the first snapshot.
func openSession(ctx context.Context, cfg *config.Config, store Store, errOut io.Writer) (*session, error) {
	return openSessionFor(ctx, cfg, store, cfg.List(), errOut)
}

func openSessionFor(ctx context.Context, cfg *config.Config, store Store, listID string, errOut io.Writer) (*session, error) {
	s := &session{changed: make(chan struct{}, 1)}
	s.ctl = controller.New(store, listID, s.listen, controller.WithLogger(cfg.Logger(errOut)))
	if err := s.ctl.Start(ctx); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, attachTimeout)
	defer cancel()
	if _, err := s.ctl.Wait(waitCtx); err != nil {
		s.ctl.Detach()
		return nil, err
	}
	// The listener runs just after Wait unblocks.
	if _, _, err := s.waitAfter(waitCtx, 0); err != nil {
		s.ctl.Detach()
		return nil, err
	}
	return s, nil
}

func (s *session) listen(l service.TaskList) {
	s.mu.Lock()
	s.version++
	s.latest = l
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// current returns the latest snapshot and its version.
func (s *session) current() (service.TaskList, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.version
}

// waitAfter blocks until a snapshot newer than version arrives.
func (s *session) waitAfter(ctx context.Context, version int) (service.TaskList, int, error) {
	for {
		s.mu.Lock()
		if s.version > version {
			l, v := s.latest, s.version
			s.mu.Unlock()
			return l, v, nil
		}
		s.mu.Unlock()

		select {
		case <-s.changed:
		case <-ctx.Done():
			return service.TaskList{}, version, ctx.Err()
		}
	}
}

// mutate runs op and waits for the store to echo the result.
func (s *session) mutate(ctx context.Context, op func(context.Context, *controller.Controller) error) (service.TaskList, error) {
	_, v := s.current()
	if err := op(ctx, s.ctl); err != nil {
		return service.TaskList{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, attachTimeout)
	defer cancel()
	l, _, err := s.waitAfter(waitCtx, v)
	return l, err
}

func (s *session) close() {
	s.ctl.Detach()
}
