// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tasksync/internal/backend/feed"
	"tasksync/internal/order"
	"tasksync/internal/service"
)

// DefaultListID is the ID used for the default list.
const DefaultListID = "default"

// Write records one Apply call.
type Write struct {
	ListID string
	Ops    []service.Op
}

// FakeStore is an in-memory implementation of service.SyncedStore for testing.
// Applied writes are recorded. When Echo is true they are also applied to the
// stored list and published back to subscribers, like a real store would.
type FakeStore struct {
	mu     sync.Mutex
	lists  map[string]service.TaskList
	writes []Write
	feed   *feed.Feed

	// Echo publishes a new snapshot after every successful Apply.
	Echo bool

	// Error injection for testing
	SubscribeErr error
	ApplyErr     error
	ListsErr     error
	CloseErr     error

	closed bool
}

// NewFakeStore creates a new FakeStore with an empty default list.
func NewFakeStore() *FakeStore {
	fs := &FakeStore{
		lists: make(map[string]service.TaskList),
		feed:  feed.New(),
		Echo:  true,
	}
	fs.lists[DefaultListID] = service.TaskList{ID: DefaultListID, Name: "My Tasks"}
	return fs
}

// SetList replaces a list without notifying subscribers.
func (f *FakeStore) SetList(list service.TaskList) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[list.ID] = list.Clone()
}

// AddTask appends a task to a list without notifying subscribers.
func (f *FakeStore) AddTask(listID, taskID, text string, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[listID]
	l.ID = listID
	l.Items = append(l.Items, service.Task{ID: taskID, Text: text, Completed: completed})
	f.lists[listID] = l
}

// List returns the stored list.
func (f *FakeStore) List(listID string) service.TaskList {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[listID].Clone()
}

// Publish notifies subscribers with the stored list, simulating a remote change.
func (f *FakeStore) Publish(listID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed.Publish(f.lists[listID])
}

// Writes returns the recorded Apply calls.
func (f *FakeStore) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// Subscribers returns the number of active subscriptions.
func (f *FakeStore) Subscribers() int {
	return f.feed.Len()
}

// Subscribe implements service.SyncedStore.
func (f *FakeStore) Subscribe(ctx context.Context, listID string, onSnapshot func(service.TaskList)) (service.Subscription, error) {
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.lists[listID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return f.feed.Subscribe(listID, &list, onSnapshot), nil
}

// Apply implements service.SyncedStore.
func (f *FakeStore) Apply(ctx context.Context, listID string, ops ...service.Op) error {
	if f.ApplyErr != nil {
		return f.ApplyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, Write{ListID: listID, Ops: append([]service.Op(nil), ops...)})
	if !f.Echo {
		return nil
	}

	list, ok := f.lists[listID]
	if !ok {
		return service.ErrNotFound
	}
	next, err := order.ApplyOps(list, ops...)
	if err != nil {
		return err
	}
	f.lists[listID] = next
	f.feed.Publish(next)
	return nil
}

// Follow blocks until ctx is done.
func (f *FakeStore) Follow(ctx context.Context) {
	<-ctx.Done()
}

// Close ends all subscriptions.
func (f *FakeStore) Close(context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.feed.Close()
	return f.CloseErr
}

// Closed reports whether Close was called.
func (f *FakeStore) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Lists returns every list sorted by ID, without items.
func (f *FakeStore) Lists(context.Context) ([]service.TaskList, error) {
	if f.ListsErr != nil {
		return nil, f.ListsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.TaskList, 0, len(f.lists))
	for id, l := range f.lists {
		out = append(out, service.TaskList{ID: id, Name: l.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NewList creates an empty list whose ID is the lowercased name.
func (f *FakeStore) NewList(_ context.Context, name string) (service.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	if _, ok := f.lists[id]; ok {
		return service.TaskList{}, fmt.Errorf("list %s exists", id)
	}
	l := service.TaskList{ID: id, Name: name}
	f.lists[id] = l
	return l, nil
}

// DeleteList removes a list.
func (f *FakeStore) DeleteList(_ context.Context, listID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lists[listID]; !ok {
		return fmt.Errorf("list %s: %w", listID, service.ErrNotFound)
	}
	delete(f.lists, listID)
	return nil
}
