package amstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"tasksync/internal/service"
)

// DefaultListID is the list created in a fresh replica.
const DefaultListID = "default"

// cliSyncInterval keeps short-lived sync windows responsive.
const cliSyncInterval = 100 * time.Millisecond

// ErrListExists is returned by NewList when the derived ID is taken.
var ErrListExists = errors.New("list already exists")

// SessionConfig describes where a Session keeps its replica and which
// server, if any, it syncs with.
type SessionConfig struct {
	// Path of the local replica file.
	Path string

	// ServerURL of tasksyncd. Empty keeps the session offline.
	ServerURL string

	// StoreName on the server.
	StoreName string

	// Window bounds each sync exchange.
	Window time.Duration

	Logger *slog.Logger
}

// Session is a local replica that pulls from the server when opened and
// pushes back when closed. It implements service.SyncedStore.
type Session struct {
	store  *Store
	client *Client
	path   string
	window time.Duration
	log    *slog.Logger
}

// OpenSession loads the replica at sc.Path, bootstrapping it from the server
// when it does not exist yet, and catches up with the server.
func OpenSession(ctx context.Context, sc SessionConfig) (*Session, error) {
	log := sc.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	st, exists, err := OpenFile(sc.Path, WithLogger(log))
	if err != nil {
		return nil, err
	}
	s := &Session{store: st, path: sc.Path, window: sc.Window, log: log}

	if sc.ServerURL != "" {
		s.client, err = NewClient(sc.ServerURL, sc.StoreName,
			WithSyncInterval(cliSyncInterval), WithClientLogger(log))
		if err != nil {
			return nil, err
		}
		if !exists {
			raw, err := s.client.Fetch(ctx)
			switch {
			case err == nil:
				if s.store, err = Load(raw, WithLogger(log)); err != nil {
					return nil, err
				}
				log.Debug("bootstrapped replica from server", "store", sc.StoreName)
			case errors.Is(err, ErrNoRemote):
				log.Debug("server has no such store yet", "store", sc.StoreName)
			default:
				return nil, err
			}
		} else if err := s.client.SyncFor(ctx, s.store, s.window); err != nil {
			log.Warn("server unreachable, using local replica", "err", err)
		}
	}

	if err := s.store.CreateList(DefaultListID, DefaultListName); err != nil {
		return nil, err
	}
	return s, nil
}

// Store returns the underlying store.
func (s *Session) Store() *Store {
	return s.store
}

// Subscribe implements service.SyncedStore.
func (s *Session) Subscribe(ctx context.Context, listID string, fn func(service.TaskList)) (service.Subscription, error) {
	return s.store.Subscribe(ctx, listID, fn)
}

// Apply implements service.SyncedStore.
func (s *Session) Apply(ctx context.Context, listID string, ops ...service.Op) error {
	return s.store.Apply(ctx, listID, ops...)
}

// Lists returns every list in the replica.
func (s *Session) Lists(context.Context) ([]service.TaskList, error) {
	return s.store.Lists()
}

// NewList creates a list whose ID is derived from name.
func (s *Session) NewList(_ context.Context, name string) (service.TaskList, error) {
	id := Slug(name)
	if id == "" {
		return service.TaskList{}, fmt.Errorf("invalid list name: %q", name)
	}
	if _, err := s.store.List(id); err == nil {
		return service.TaskList{}, fmt.Errorf("%s: %w", id, ErrListExists)
	}
	if err := s.store.CreateList(id, name); err != nil {
		return service.TaskList{}, err
	}
	return service.TaskList{ID: id, Name: name}, nil
}

// DeleteList removes a list.
func (s *Session) DeleteList(_ context.Context, listID string) error {
	return s.store.DeleteList(listID)
}

// Follow keeps syncing with the server until ctx is done.
func (s *Session) Follow(ctx context.Context) {
	if s.client == nil {
		<-ctx.Done()
		return
	}
	s.client.SyncContinuously(ctx, s.store)
}

// Close saves the replica and pushes local changes to the server. A failed
// push is logged; the changes go out with the next session.
func (s *Session) Close(ctx context.Context) error {
	defer s.store.Close()
	if err := s.store.WriteFile(s.path); err != nil {
		return err
	}
	if s.client == nil {
		return nil
	}
	if err := s.client.SyncFor(ctx, s.store, s.window); err != nil {
		s.log.Warn("changes not pushed to server", "err", err)
		return nil
	}
	return s.store.WriteFile(s.path)
}

// Slug derives a list ID from a display name.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
