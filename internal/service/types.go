// Package service defines the backend-agnostic types and interface for synced task lists.
package service

import "strings"

// Task represents a single task item.
type Task struct {
	ID        string
	Text      string
	Completed bool
}

// NewTask creates an incomplete task.
// Returns ErrInvalidTask if text is empty or whitespace-only.
func NewTask(id, text string) (Task, error) {
	if err := ValidateText(text); err != nil {
		return Task{}, err
	}
	return Task{ID: id, Text: text}, nil
}

// ValidateText rejects empty and whitespace-only task text.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidTask
	}
	return nil
}

// SameAs reports whether t and other have the same identity.
func (t Task) SameAs(other Task) bool {
	return t.ID == other.ID
}

// TaskList represents an ordered, synced task list.
// Order of Items is meaningful: incomplete tasks first, completed tasks sunk to the bottom.
type TaskList struct {
	ID    string
	Name  string
	Items []Task
}

// SameAs reports whether l and other are the same list.
func (l TaskList) SameAs(other TaskList) bool {
	return l.ID == other.ID
}

// Equal reports whether two snapshots have identical content and order.
func (l TaskList) Equal(other TaskList) bool {
	if l.ID != other.ID || l.Name != other.Name || len(l.Items) != len(other.Items) {
		return false
	}
	for i := range l.Items {
		if l.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no memory with l.
func (l TaskList) Clone() TaskList {
	out := TaskList{ID: l.ID, Name: l.Name}
	if l.Items != nil {
		out.Items = make([]Task, len(l.Items))
		copy(out.Items, l.Items)
	}
	return out
}

// IndexOf returns the index of the task with the given ID, or -1.
func (l TaskList) IndexOf(taskID string) int {
	for i, t := range l.Items {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

// Counts returns the number of incomplete and completed tasks.
func (l TaskList) Counts() (open, done int) {
	for _, t := range l.Items {
		if t.Completed {
			done++
		} else {
			open++
		}
	}
	return open, done
}
