// Package order computes index transformations that keep incomplete tasks
// above completed ones while preserving relative order within each group.
//
// All functions are pure: they never modify the slices they are given.
package order

import (
	"errors"
	"fmt"

	"tasksync/internal/service"
)

// ErrIndexOutOfRange is returned when an index does not address the slice.
var ErrIndexOutOfRange = errors.New("index out of range")

// InsertionIndex returns where a freshly created task belongs: immediately
// after the last incomplete task. newItem is accepted for symmetry with the
// toggle rule; new tasks are always incomplete.
func InsertionIndex(items []service.Task, newItem service.Task) int {
	n := 0
	for _, t := range items {
		if !t.Completed {
			n++
		}
	}
	return n
}

// ReinsertionIndexAfterToggle returns the destination of items[itemIndex]
// whose completed flag has just been flipped.
//
// A task that became completed sinks to the very end. A task that became
// incomplete lands just above the first completed task, where the completed
// count excludes the toggled task itself.
func ReinsertionIndexAfterToggle(items []service.Task, itemIndex int) (int, error) {
	if itemIndex < 0 || itemIndex >= len(items) {
		return 0, fmt.Errorf("toggle %d of %d: %w", itemIndex, len(items), ErrIndexOutOfRange)
	}
	if items[itemIndex].Completed {
		return len(items) - 1, nil
	}
	completed := 0
	for i, t := range items {
		if i != itemIndex && t.Completed {
			completed++
		}
	}
	return len(items) - completed - 1, nil
}

// Move removes the task at from and reinserts it at to.
// Indices after the removal point shift by one. Move does not enforce the
// completed/incomplete ordering: an explicit drag is honored as given.
func Move(items []service.Task, from, to int) ([]service.Task, error) {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return nil, fmt.Errorf("move %d->%d of %d: %w", from, to, len(items), ErrIndexOutOfRange)
	}
	moved := items[from]
	rest, _ := Remove(items, from)
	return Insert(rest, moved, to)
}

// Insert returns a copy of items with item placed at index at.
func Insert(items []service.Task, item service.Task, at int) ([]service.Task, error) {
	if at < 0 || at > len(items) {
		return nil, fmt.Errorf("insert at %d of %d: %w", at, len(items), ErrIndexOutOfRange)
	}
	out := make([]service.Task, 0, len(items)+1)
	out = append(out, items[:at]...)
	out = append(out, item)
	out = append(out, items[at:]...)
	return out, nil
}

// Remove returns a copy of items without the task at index.
func Remove(items []service.Task, index int) ([]service.Task, error) {
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("remove %d of %d: %w", index, len(items), ErrIndexOutOfRange)
	}
	out := make([]service.Task, 0, len(items)-1)
	out = append(out, items[:index]...)
	out = append(out, items[index+1:]...)
	return out, nil
}

// CheckOrdered reports whether every incomplete task precedes every completed task.
func CheckOrdered(items []service.Task) bool {
	seenCompleted := false
	for _, t := range items {
		if t.Completed {
			seenCompleted = true
		} else if seenCompleted {
			return false
		}
	}
	return true
}

// CheckUnique reports whether no task ID appears twice.
func CheckUnique(items []service.Task) bool {
	seen := make(map[string]struct{}, len(items))
	for _, t := range items {
		if _, dup := seen[t.ID]; dup {
			return false
		}
		seen[t.ID] = struct{}{}
	}
	return true
}
