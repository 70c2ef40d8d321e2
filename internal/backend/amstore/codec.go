package amstore

import (
	"fmt"
	"sort"

	"github.com/automerge/automerge-go"

	"tasksync/internal/order"
	"tasksync/internal/service"
)

// Document layout:
//
//	lists/<listID>/name                      string
//	lists/<listID>/items/<taskID>/id         string
//	lists/<listID>/items/<taskID>/text       string
//	lists/<listID>/items/<taskID>/completed  bool
//	lists/<listID>/items/<taskID>/pos        float64
//
// Items are ordered by pos, then by ID. A move only rewrites pos, so the
// item keeps its identity and concurrent edits to it still land.
const (
	keyLists     = "lists"
	keyName      = "name"
	keyItems     = "items"
	keyID        = "id"
	keyText      = "text"
	keyCompleted = "completed"
	keyPos       = "pos"
)

func listPath(doc *automerge.Doc, listID string) *automerge.Path {
	return doc.Path(keyLists, listID)
}

func itemPath(doc *automerge.Doc, listID, taskID string) *automerge.Path {
	return doc.Path(keyLists, listID, keyItems, taskID)
}

// positions maps task IDs to their pos in the document.
type positions map[string]float64

// readList decodes listID from doc. ok is false when the list does not exist.
func readList(doc *automerge.Doc, listID string) (list service.TaskList, ok bool, err error) {
	list, _, ok, err = readListPos(doc, listID)
	return list, ok, err
}

func readListPos(doc *automerge.Doc, listID string) (service.TaskList, positions, bool, error) {
	v, err := listPath(doc, listID).Get()
	if err != nil {
		return service.TaskList{}, nil, false, fmt.Errorf("failed to read list %s: %w", listID, err)
	}
	if v.Kind() != automerge.KindMap {
		return service.TaskList{}, nil, false, nil
	}
	m := v.Map()
	list := service.TaskList{ID: listID}
	pos := positions{}

	name, err := m.Get(keyName)
	if err != nil {
		return service.TaskList{}, nil, false, fmt.Errorf("failed to read list name: %w", err)
	}
	if name.Kind() == automerge.KindStr {
		list.Name = name.Str()
	}

	items, err := m.Get(keyItems)
	if err != nil {
		return service.TaskList{}, nil, false, fmt.Errorf("failed to read items: %w", err)
	}
	if items.Kind() != automerge.KindMap {
		return list, pos, true, nil
	}
	values, err := items.Map().Values()
	if err != nil {
		return service.TaskList{}, nil, false, fmt.Errorf("failed to read items: %w", err)
	}
	for key, iv := range values {
		task, p, err := decodeTask(iv)
		if err != nil {
			return service.TaskList{}, nil, false, fmt.Errorf("item %s: %w", key, err)
		}
		task.ID = key
		list.Items = append(list.Items, task)
		pos[key] = p
	}
	sort.Slice(list.Items, func(i, j int) bool {
		a, b := list.Items[i].ID, list.Items[j].ID
		if pos[a] != pos[b] {
			return pos[a] < pos[b]
		}
		return a < b
	})
	return list, pos, true, nil
}

func decodeTask(v *automerge.Value) (service.Task, float64, error) {
	if v.Kind() != automerge.KindMap {
		return service.Task{}, 0, fmt.Errorf("expected map, got %v", v.Kind())
	}
	m := v.Map()
	var t service.Task

	text, err := m.Get(keyText)
	if err != nil {
		return service.Task{}, 0, err
	}
	if text.Kind() == automerge.KindStr {
		t.Text = text.Str()
	}

	completed, err := m.Get(keyCompleted)
	if err != nil {
		return service.Task{}, 0, err
	}
	if completed.Kind() == automerge.KindBool {
		t.Completed = completed.Bool()
	}

	pv, err := m.Get(keyPos)
	if err != nil {
		return service.Task{}, 0, err
	}
	var pos float64
	switch pv.Kind() {
	case automerge.KindFloat64:
		pos = pv.Float64()
	case automerge.KindInt64:
		pos = float64(pv.Int64())
	case automerge.KindUint64:
		pos = float64(pv.Uint64())
	}
	return t, pos, nil
}

func encodeTask(t service.Task, pos float64) map[string]any {
	return map[string]any{
		keyID:        t.ID,
		keyText:      t.Text,
		keyCompleted: t.Completed,
		keyPos:       pos,
	}
}

func encodeList(name string) map[string]any {
	return map[string]any{
		keyName:  name,
		keyItems: map[string]any{},
	}
}

// gap returns a pos that sorts the item at j of next between its
// neighbours. ok is false when no such float exists and the list needs
// renumbering.
func gap(next service.TaskList, j int, pos positions) (p float64, ok bool) {
	hasLo, hasHi := j > 0, j < len(next.Items)-1
	switch {
	case !hasLo && !hasHi:
		return 0, true
	case !hasLo:
		return pos[next.Items[j+1].ID] - 1, true
	case !hasHi:
		return pos[next.Items[j-1].ID] + 1, true
	}
	lo, hi := pos[next.Items[j-1].ID], pos[next.Items[j+1].ID]
	if !(lo < hi) {
		return 0, false
	}
	mid := lo + (hi-lo)/2
	if mid <= lo || mid >= hi {
		return 0, false
	}
	return mid, true
}

// place gives taskID a pos matching its index in next, renumbering the
// whole list when the neighbours leave no room.
func place(doc *automerge.Doc, next service.TaskList, taskID string, pos positions) error {
	j := next.IndexOf(taskID)
	if p, ok := gap(next, j, pos); ok {
		pos[taskID] = p
		return itemPath(doc, next.ID, taskID).Path(keyPos).Set(p)
	}
	for k, t := range next.Items {
		p := float64(k)
		if cur, ok := pos[t.ID]; ok && cur == p && t.ID != taskID {
			continue
		}
		if err := itemPath(doc, next.ID, t.ID).Path(keyPos).Set(p); err != nil {
			return err
		}
		pos[t.ID] = p
	}
	return nil
}

// writeOp mutates doc for op and keeps pos current. cur is the snapshot
// before op and must already have been validated with order.ApplyOp.
func writeOp(doc *automerge.Doc, cur service.TaskList, pos positions, op service.Op) error {
	switch op.Kind {
	case service.OpInsert:
		next, err := order.ApplyOp(cur, op)
		if err != nil {
			return err
		}
		p, ok := gap(next, op.Index, pos)
		if err := itemPath(doc, cur.ID, op.Task.ID).Set(encodeTask(op.Task, p)); err != nil {
			return err
		}
		pos[op.Task.ID] = p
		if ok {
			return nil
		}
		return place(doc, next, op.Task.ID, pos)
	case service.OpUpdateCompletion:
		return itemPath(doc, cur.ID, op.TaskID).Path(keyCompleted).Set(op.Completed)
	case service.OpEditText:
		return itemPath(doc, cur.ID, op.TaskID).Path(keyText).Set(op.Text)
	case service.OpMove:
		next, err := order.ApplyOp(cur, op)
		if err != nil {
			return err
		}
		id := op.TaskID
		if id == "" {
			id = cur.Items[op.From].ID
		}
		return place(doc, next, id, pos)
	case service.OpDelete:
		delete(pos, op.TaskID)
		return doc.Path(keyLists, cur.ID, keyItems).Map().Delete(op.TaskID)
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}
