package commands_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"tasksync/internal/backend/amstore"
	"tasksync/internal/commands"
	"tasksync/internal/exitcode"
)

// Each call opens and closes its own session over the same replica file,
// the way separate CLI invocations do.
func TestCommands_LocalReplica(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t, false)
	path := filepath.Join(t.TempDir(), "default.automerge")

	run := func(cmd commands.Command, args ...string) string {
		t.Helper()
		s, err := amstore.OpenSession(ctx, amstore.SessionConfig{Path: path})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		var out, errOut bytes.Buffer
		code := cmd.Run(ctx, cfg, s, args, &out, &errOut)
		if err := s.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}
		if code != exitcode.Success {
			t.Fatalf("%s %v: exit %d, stderr %q", cmd.Name(), args, code, errOut.String())
		}
		return out.String()
	}
	rows := func() []string {
		t.Helper()
		s, err := amstore.OpenSession(ctx, amstore.SessionConfig{Path: path})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer s.Close(ctx)
		list, err := s.Store().List(amstore.DefaultListID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		out := make([]string, len(list.Items))
		for i, task := range list.Items {
			out[i] = task.Text
			if task.Completed {
				out[i] += " (done)"
			}
		}
		return out
	}

	assert.Equal(t, run(&commands.AddCmd{}, "Buy", "milk"), "ok\n")
	run(&commands.AddCmd{}, "Walk dog")
	run(&commands.AddCmd{}, "Call mom")
	assert.Equal(t, rows(), []string{"Buy milk", "Walk dog", "Call mom"})

	assert.Equal(t, run(&commands.DoneCmd{}, "1"), "ok\n")
	assert.Equal(t, rows(), []string{"Walk dog", "Call mom", "Buy milk (done)"})

	// A new task goes above the completed ones.
	run(&commands.AddCmd{}, "Pay rent")
	assert.Equal(t, rows(), []string{"Walk dog", "Call mom", "Pay rent", "Buy milk (done)"})

	assert.Equal(t, run(&commands.MvCmd{}, "3", "1"), "ok\n")
	assert.Equal(t, rows(), []string{"Pay rent", "Walk dog", "Call mom", "Buy milk (done)"})

	assert.Equal(t, run(&commands.EditCmd{}, "2", "Walk", "the", "dog"), "ok\n")
	assert.Equal(t, run(&commands.RmCmd{}, "4"), "ok\n")
	assert.Equal(t, rows(), []string{"Pay rent", "Walk the dog", "Call mom"})

	// Reopening the completed task puts it back at the end of the open block.
	run(&commands.DoneCmd{}, "1")
	assert.Equal(t, rows(), []string{"Walk the dog", "Call mom", "Pay rent (done)"})
	run(&commands.DoneCmd{}, "3")
	assert.Equal(t, rows(), []string{"Walk the dog", "Call mom", "Pay rent"})

	out := run(&commands.ListCmd{})
	if !strings.Contains(out, "Walk the dog") || !strings.Contains(out, "Pay rent") {
		t.Errorf("unexpected list output %q", out)
	}
}
