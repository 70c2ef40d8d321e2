package amstore

import (
	"github.com/automerge/automerge-go"

	"tasksync/internal/service"
)

// FailWriteAfter makes Apply fail on the write following the first n.
func FailWriteAfter(s *Store, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := 0
	s.write = func(doc *automerge.Doc, cur service.TaskList, pos positions, op service.Op) error {
		if calls == n {
			return err
		}
		calls++
		return writeOp(doc, cur, pos, op)
	}
}
