// Package amstore is a service.SyncedStore kept in an automerge document.
//
// Every list lives under lists/<id> in one document. Local writes and
// changes merged from sync peers both publish a fresh snapshot to
// subscribers of the affected lists.
package amstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/automerge/automerge-go"

	"tasksync/internal/backend/feed"
	"tasksync/internal/order"
	"tasksync/internal/service"
)

// DefaultListName is the name given to lists created implicitly.
const DefaultListName = "My Tasks"

// Store holds the document and fans out snapshots.
type Store struct {
	mu      sync.Mutex
	doc     *automerge.Doc
	feed    *feed.Feed
	watched map[string]int
	last    map[string]service.TaskList
	log     *slog.Logger

	// write defaults to writeOp. Tests replace it to fail mid-batch.
	write func(*automerge.Doc, service.TaskList, positions, service.Op) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New wraps doc. A nil doc starts a fresh document.
func New(doc *automerge.Doc, opts ...Option) *Store {
	if doc == nil {
		doc = automerge.New()
	}
	s := &Store{
		doc:     doc,
		feed:    feed.New(),
		watched: make(map[string]int),
		last:    make(map[string]service.TaskList),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		write:   writeOp,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores a store from bytes produced by Save.
func Load(raw []byte, opts ...Option) (*Store, error) {
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return New(doc, opts...), nil
}

// Save serializes the whole document.
func (s *Store) Save() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Save()
}

// Heads identifies the current document version.
func (s *Store) Heads() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	heads := s.doc.Heads()
	parts := make([]string, len(heads))
	for i, h := range heads {
		parts[i] = h.String()
	}
	return strings.Join(parts, ",")
}

// SetActorID sets the actor used for local changes.
func (s *Store) SetActorID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SetActorID(id)
}

// CreateList creates an empty list unless one with listID already exists.
func (s *Store) CreateList(listID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := readList(s.doc, listID); err != nil {
		return err
	} else if ok {
		return nil
	}
	if err := listPath(s.doc, listID).Set(encodeList(name)); err != nil {
		return fmt.Errorf("failed to create list %s: %w", listID, err)
	}
	if _, err := s.doc.Commit("create list "+listID, automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.log.Debug("created list", "list", listID)
	return nil
}

// Lists returns every list in the document ordered by ID.
func (s *Store) Lists() ([]service.TaskList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.doc.Path(keyLists).Get()
	if err != nil {
		return nil, err
	}
	if v.Kind() != automerge.KindMap {
		return nil, nil
	}
	keys, err := v.Map().Keys()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]service.TaskList, 0, len(keys))
	for _, id := range keys {
		list, ok, err := readList(s.doc, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, list)
		}
	}
	return out, nil
}

// DeleteList removes listID. Its subscribers get no further snapshots.
func (s *Store) DeleteList(listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := readList(s.doc, listID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("list %s: %w", listID, service.ErrNotFound)
	}
	if err := s.doc.Path(keyLists).Map().Delete(listID); err != nil {
		return fmt.Errorf("failed to delete list %s: %w", listID, err)
	}
	if _, err := s.doc.Commit("delete list "+listID, automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// List returns the current snapshot of listID.
func (s *Store) List(listID string) (service.TaskList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok, err := readList(s.doc, listID)
	if err != nil {
		return service.TaskList{}, err
	}
	if !ok {
		return service.TaskList{}, fmt.Errorf("list %s: %w", listID, service.ErrNotFound)
	}
	return list, nil
}

// Subscribe delivers the current snapshot of listID and every later one.
func (s *Store) Subscribe(_ context.Context, listID string, fn func(service.TaskList)) (service.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok, err := readList(s.doc, listID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("list %s: %w", listID, service.ErrNotFound)
	}
	s.watched[listID]++
	s.last[listID] = list

	sub := s.feed.Subscribe(listID, &list, fn)
	var once sync.Once
	return service.SubscriptionFunc(func() {
		once.Do(func() {
			sub.Cancel()
			s.mu.Lock()
			if s.watched[listID]--; s.watched[listID] <= 0 {
				delete(s.watched, listID)
				delete(s.last, listID)
			}
			s.mu.Unlock()
		})
	}), nil
}

// Apply validates ops against the current list, writes them to the document
// as one change and publishes the result. The ops are written to a fork that
// is merged back only once every op succeeded, so a failed batch leaves
// nothing behind.
func (s *Store) Apply(_ context.Context, listID string, ops ...service.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, pos, ok, err := readListPos(s.doc, listID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("list %s: %w", listID, service.ErrNotFound)
	}
	if _, err := order.ApplyOps(cur, ops...); err != nil {
		return err
	}

	draft, err := s.doc.Fork()
	if err != nil {
		return fmt.Errorf("failed to fork: %w", err)
	}
	if err := draft.SetActorID(s.doc.ActorID()); err != nil {
		return fmt.Errorf("failed to set actor: %w", err)
	}
	for _, op := range ops {
		if err := s.write(draft, cur, pos, op); err != nil {
			return fmt.Errorf("failed to write %s: %w", op.Kind, err)
		}
		if cur, err = order.ApplyOp(cur, op); err != nil {
			return err
		}
	}
	if _, err := draft.Commit(commitMessage(ops), automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	if _, err := s.doc.Merge(draft); err != nil {
		return fmt.Errorf("failed to merge: %w", err)
	}
	s.log.Debug("applied", "list", listID, "ops", len(ops))

	s.publishLocked(listID, true)
	return nil
}

func commitMessage(ops []service.Op) string {
	kinds := make([]string, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind.String()
	}
	return strings.Join(kinds, "+")
}

// Refresh republishes every watched list whose content changed since it was
// last published. Sync peers call it after merging remote changes.
func (s *Store) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for listID := range s.watched {
		s.publishLocked(listID, false)
	}
}

func (s *Store) publishLocked(listID string, force bool) {
	if _, ok := s.watched[listID]; !ok {
		return
	}
	list, ok, err := readList(s.doc, listID)
	if err != nil {
		s.log.Warn("failed to read list for publish", "list", listID, "err", err)
		return
	}
	if !ok {
		return
	}
	if !force && list.Equal(s.last[listID]) {
		return
	}
	s.last[listID] = list
	s.feed.Publish(list)
}

// Close cancels every subscription.
func (s *Store) Close() {
	s.feed.Close()
}

// Peer is the sync state of one connection to another replica.
type Peer struct {
	s     *Store
	state *automerge.SyncState
}

// NewPeer starts a sync session against this store.
func (s *Store) NewPeer() *Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Peer{s: s, state: automerge.NewSyncState(s.doc)}
}

// Receive merges a sync message from the other replica.
func (p *Peer) Receive(msg []byte) error {
	p.s.mu.Lock()
	_, err := p.state.ReceiveMessage(msg)
	p.s.mu.Unlock()
	if err != nil {
		return err
	}
	p.s.Refresh()
	return nil
}

// Generate returns the next message for the other replica, if any.
func (p *Peer) Generate() ([]byte, bool) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	msg, valid := p.state.GenerateMessage()
	if !valid || msg == nil {
		return nil, false
	}
	return msg.Bytes(), true
}
