package testutil

import (
	"time"

	"tasksync/internal/service"
)

// TB is the subset of testing.TB (and rapid.T) the helpers need.
type TB interface {
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

// Recorder collects snapshots delivered to a listener.
type Recorder struct {
	C chan service.TaskList
}

// NewRecorder creates a recorder with room for n snapshots.
func NewRecorder(n int) *Recorder {
	return &Recorder{C: make(chan service.TaskList, n)}
}

// Listen is a controller.Listener.
func (r *Recorder) Listen(l service.TaskList) {
	r.C <- l
}

// Next waits for the next snapshot or fails the test.
func (r *Recorder) Next(t TB) service.TaskList {
	t.Helper()
	select {
	case l := <-r.C:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return service.TaskList{}
	}
}

// Until waits for a snapshot satisfying ok and returns it.
func (r *Recorder) Until(t TB, ok func(service.TaskList) bool) service.TaskList {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case l := <-r.C:
			if ok(l) {
				return l
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
			return service.TaskList{}
		}
	}
}

// None asserts that no snapshot arrives within d.
func (r *Recorder) None(t TB, d time.Duration) {
	t.Helper()
	select {
	case l := <-r.C:
		t.Fatalf("unexpected snapshot: %+v", l)
	case <-time.After(d):
	}
}
