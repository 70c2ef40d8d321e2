// Package service defines the backend-agnostic types and interface for synced task lists.
package service

import "context"

// SyncedStore defines the interface for a durable, multi-client task list backend.
// The store is the single source of truth. Writes take visible effect only
// once the store delivers a snapshot reflecting them.
// The controller never imports a backend SDK directly.
type SyncedStore interface {
	// Subscribe delivers the current snapshot of listID and every subsequent
	// merged snapshot, in store order, until the subscription is cancelled.
	// onSnapshot is never called concurrently with itself.
	Subscribe(ctx context.Context, listID string, onSnapshot func(TaskList)) (Subscription, error)

	// Apply performs ops against listID as one logical write.
	// Failure reasons are backend-specific; nothing is retried.
	Apply(ctx context.Context, listID string, ops ...Op) error
}

// Subscription is a handle on snapshot delivery.
type Subscription interface {
	// Cancel stops delivery. Safe to call more than once.
	Cancel()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Cancel implements Subscription.
func (f SubscriptionFunc) Cancel() { f() }

// OpKind identifies a write-through operation.
type OpKind int

const (
	// OpInsert inserts Task at Index.
	OpInsert OpKind = iota + 1

	// OpUpdateCompletion sets the completed flag of TaskID.
	OpUpdateCompletion

	// OpEditText replaces the text of TaskID.
	OpEditText

	// OpMove moves the task at From (expected to be TaskID) to To.
	OpMove

	// OpDelete removes TaskID.
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdateCompletion:
		return "updateCompletion"
	case OpEditText:
		return "editText"
	case OpMove:
		return "move"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a single write-through operation against a task list.
type Op struct {
	Kind      OpKind
	Task      Task
	TaskID    string
	Text      string
	Completed bool
	Index     int
	From      int
	To        int
}

// InsertOp inserts task at index at.
func InsertOp(task Task, at int) Op {
	return Op{Kind: OpInsert, Task: task, TaskID: task.ID, Index: at}
}

// UpdateCompletionOp sets the completed flag of a task.
func UpdateCompletionOp(taskID string, completed bool) Op {
	return Op{Kind: OpUpdateCompletion, TaskID: taskID, Completed: completed}
}

// EditTextOp replaces the text of a task.
func EditTextOp(taskID, text string) Op {
	return Op{Kind: OpEditText, TaskID: taskID, Text: text}
}

// MoveOp moves the task at from to to. taskID names the task expected at from.
func MoveOp(taskID string, from, to int) Op {
	return Op{Kind: OpMove, TaskID: taskID, From: from, To: to}
}

// DeleteOp removes a task.
func DeleteOp(taskID string) Op {
	return Op{Kind: OpDelete, TaskID: taskID}
}
