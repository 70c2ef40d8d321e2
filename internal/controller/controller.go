// Package controller owns the live snapshot of one synced task list.
//
// The controller is a write-through cache: local operations compute the
// target index with package order and send a single write to the
// service.SyncedStore. The cached snapshot changes only when the store
// delivers a new one, at which point the listener is called with a copy.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"tasksync/internal/order"
	"tasksync/internal/service"
)

// State is the lifecycle state of a Controller.
type State int

const (
	// Unattached means no snapshot has been received yet.
	Unattached State = iota

	// Attached means the controller holds a live snapshot.
	Attached

	// Detached is terminal: no further snapshots are delivered.
	Detached
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Listener receives every applied snapshot. The value is a private copy.
// Listeners are never called concurrently. A listener may call Detach.
type Listener func(service.TaskList)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithIDGenerator overrides how new task IDs are created.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// Controller is the synced list controller for a single list.
type Controller struct {
	store    service.SyncedStore
	listID   string
	listener Listener
	log      *slog.Logger
	newID    func() string

	// emitMu serializes apply-and-notify. Detach never takes it.
	emitMu sync.Mutex

	mu         sync.Mutex
	state      State
	current    service.TaskList
	sub        service.Subscription
	subscribed bool
	ready      chan struct{}
	gone       chan struct{}
}

// New creates an unattached controller for listID backed by store.
// listener may be nil.
func New(store service.SyncedStore, listID string, listener Listener, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		listID:   listID,
		listener: listener,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:    func() string { return ulid.Make().String() },
		ready:    make(chan struct{}),
		gone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListID returns the ID of the list this controller follows.
func (c *Controller) ListID() string {
	return c.listID
}

// Start subscribes to the store. Every delivered snapshot is passed to
// OnRemoteSnapshot. Calling Start again is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		return service.ErrDetached
	}
	if c.subscribed {
		c.mu.Unlock()
		return nil
	}
	c.subscribed = true
	c.mu.Unlock()

	sub, err := c.store.Subscribe(ctx, c.listID, c.OnRemoteSnapshot)
	if err != nil {
		c.mu.Lock()
		c.subscribed = false
		c.mu.Unlock()
		return &service.StoreError{Op: "subscribe", ListID: c.listID, Err: err}
	}

	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		sub.Cancel()
		return service.ErrDetached
	}
	c.sub = sub
	c.mu.Unlock()

	c.log.Debug("subscribed", "list", c.listID)
	return nil
}

// Attach installs the first snapshot and notifies the listener.
// On an attached controller it behaves as OnRemoteSnapshot.
func (c *Controller) Attach(snapshot service.TaskList) error {
	if !c.apply(snapshot) {
		return service.ErrDetached
	}
	return nil
}

// OnRemoteSnapshot replaces the cached snapshot wholesale and notifies the
// listener, even when the snapshot is identical to the current one.
// Snapshots arriving after Detach are dropped.
func (c *Controller) OnRemoteSnapshot(snapshot service.TaskList) {
	if !c.apply(snapshot) {
		c.log.Debug("dropped snapshot after detach", "list", snapshot.ID)
	}
}

func (c *Controller) apply(snapshot service.TaskList) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		return false
	}
	first := c.state == Unattached
	c.state = Attached
	c.current = snapshot.Clone()
	if first {
		close(c.ready)
	}
	c.mu.Unlock()

	if !order.CheckUnique(snapshot.Items) {
		c.log.Warn("snapshot contains duplicate task ids", "list", snapshot.ID)
	}
	c.log.Debug("snapshot applied", "list", snapshot.ID, "items", len(snapshot.Items),
		"ordered", order.CheckOrdered(snapshot.Items))

	if c.listener != nil {
		c.listener(snapshot.Clone())
	}
	return true
}

// Detach ends the subscription. It is idempotent and may be called from the
// listener. A listener call that was already under way runs to completion;
// no snapshot delivered after Detach returns reaches the listener. Every
// operation afterwards fails with service.ErrDetached.
func (c *Controller) Detach() {
	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		return
	}
	c.state = Detached
	sub := c.sub
	c.sub = nil
	close(c.gone)
	c.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}

	c.log.Debug("detached", "list", c.listID)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current snapshot and whether one exists.
func (c *Controller) Snapshot() (service.TaskList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Attached {
		return service.TaskList{}, false
	}
	return c.current.Clone(), true
}

// Wait blocks until the first snapshot has been applied and returns it.
func (c *Controller) Wait(ctx context.Context) (service.TaskList, error) {
	select {
	case <-c.ready:
	case <-c.gone:
		return service.TaskList{}, service.ErrDetached
	case <-ctx.Done():
		return service.TaskList{}, ctx.Err()
	}
	list, ok := c.Snapshot()
	if !ok {
		return service.TaskList{}, service.ErrDetached
	}
	return list, nil
}

// attached returns the cached snapshot for read-only use by an operation.
func (c *Controller) attached() (service.TaskList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Detached:
		return service.TaskList{}, service.ErrDetached
	case Unattached:
		return service.TaskList{}, service.ErrUnattached
	}
	return c.current, nil
}

func (c *Controller) write(ctx context.Context, op string, ops ...service.Op) error {
	if err := c.store.Apply(ctx, c.listID, ops...); err != nil {
		c.log.Debug("write failed", "op", op, "list", c.listID, "err", err)
		return &service.StoreError{Op: op, ListID: c.listID, Err: err}
	}
	c.log.Debug("write sent", "op", op, "list", c.listID)
	return nil
}

// AddTask creates an incomplete task at the end of the incomplete block.
// The task appears once the store echoes the write back.
func (c *Controller) AddTask(ctx context.Context, text string) (service.Task, error) {
	list, err := c.attached()
	if errors.Is(err, service.ErrDetached) {
		return service.Task{}, err
	}
	task, verr := service.NewTask(c.newID(), text)
	if verr != nil {
		return service.Task{}, verr
	}
	if err != nil {
		return service.Task{}, err
	}

	at := order.InsertionIndex(list.Items, task)
	if err := c.write(ctx, "insert", service.InsertOp(task, at)); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// ToggleCompletion flips the completed flag of taskID and moves the task to
// the index that keeps incomplete tasks above completed ones.
func (c *Controller) ToggleCompletion(ctx context.Context, taskID string) error {
	list, err := c.attached()
	if err != nil {
		return err
	}
	i := list.IndexOf(taskID)
	if i < 0 {
		return fmt.Errorf("task %s: %w", taskID, service.ErrNotFound)
	}

	flipped := list.Clone()
	flipped.Items[i].Completed = !flipped.Items[i].Completed
	dest, err := order.ReinsertionIndexAfterToggle(flipped.Items, i)
	if err != nil {
		return err
	}

	ops := []service.Op{service.UpdateCompletionOp(taskID, flipped.Items[i].Completed)}
	if dest != i {
		ops = append(ops, service.MoveOp(taskID, i, dest))
	}
	return c.write(ctx, "toggle", ops...)
}

// EditText replaces the text of taskID.
func (c *Controller) EditText(ctx context.Context, taskID, text string) error {
	list, err := c.attached()
	if errors.Is(err, service.ErrDetached) {
		return err
	}
	if verr := service.ValidateText(text); verr != nil {
		return verr
	}
	if err != nil {
		return err
	}
	if list.IndexOf(taskID) < 0 {
		return fmt.Errorf("task %s: %w", taskID, service.ErrNotFound)
	}
	return c.write(ctx, "edit", service.EditTextOp(taskID, text))
}

// DeleteTask removes taskID.
func (c *Controller) DeleteTask(ctx context.Context, taskID string) error {
	list, err := c.attached()
	if err != nil {
		return err
	}
	if list.IndexOf(taskID) < 0 {
		return fmt.Errorf("task %s: %w", taskID, service.ErrNotFound)
	}
	return c.write(ctx, "delete", service.DeleteOp(taskID))
}

// MoveTask moves the task at from to to. The move is not constrained by the
// completed/incomplete ordering. A move onto the same index sends nothing.
func (c *Controller) MoveTask(ctx context.Context, from, to int) error {
	list, err := c.attached()
	if err != nil {
		return err
	}
	n := len(list.Items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d->%d of %d: %w", from, to, n, service.ErrNotFound)
	}
	if from == to {
		return nil
	}
	return c.write(ctx, "move", service.MoveOp(list.Items[from].ID, from, to))
}
