package order

import (
	"errors"
	"fmt"

	"tasksync/internal/service"
)

// ErrDuplicateID is returned when an insert would repeat an existing task ID.
var ErrDuplicateID = errors.New("duplicate task id")

// ApplyOp applies a single write-through op to a snapshot and returns the
// resulting snapshot. list is not modified.
//
// Ops that address a task by ID fail with service.ErrNotFound when the task
// is gone. A move whose From index no longer holds TaskID is re-anchored on
// the task's current index.
func ApplyOp(list service.TaskList, op service.Op) (service.TaskList, error) {
	out := list.Clone()
	switch op.Kind {
	case service.OpInsert:
		if out.IndexOf(op.Task.ID) >= 0 {
			return list, fmt.Errorf("insert %s: %w", op.Task.ID, ErrDuplicateID)
		}
		items, err := Insert(out.Items, op.Task, op.Index)
		if err != nil {
			return list, err
		}
		out.Items = items
	case service.OpUpdateCompletion:
		i := out.IndexOf(op.TaskID)
		if i < 0 {
			return list, fmt.Errorf("task %s: %w", op.TaskID, service.ErrNotFound)
		}
		out.Items[i].Completed = op.Completed
	case service.OpEditText:
		i := out.IndexOf(op.TaskID)
		if i < 0 {
			return list, fmt.Errorf("task %s: %w", op.TaskID, service.ErrNotFound)
		}
		out.Items[i].Text = op.Text
	case service.OpMove:
		from := op.From
		if op.TaskID != "" && (from < 0 || from >= len(out.Items) || out.Items[from].ID != op.TaskID) {
			from = out.IndexOf(op.TaskID)
			if from < 0 {
				return list, fmt.Errorf("task %s: %w", op.TaskID, service.ErrNotFound)
			}
		}
		items, err := Move(out.Items, from, op.To)
		if err != nil {
			return list, err
		}
		out.Items = items
	case service.OpDelete:
		i := out.IndexOf(op.TaskID)
		if i < 0 {
			return list, fmt.Errorf("task %s: %w", op.TaskID, service.ErrNotFound)
		}
		items, _ := Remove(out.Items, i)
		out.Items = items
	default:
		return list, fmt.Errorf("unknown op kind %d", op.Kind)
	}
	return out, nil
}

// ApplyOps applies ops in order. Either all ops apply or list is returned unchanged.
func ApplyOps(list service.TaskList, ops ...service.Op) (service.TaskList, error) {
	out := list
	for _, op := range ops {
		next, err := ApplyOp(out, op)
		if err != nil {
			return list, fmt.Errorf("%s: %w", op.Kind, err)
		}
		out = next
	}
	return out, nil
}
