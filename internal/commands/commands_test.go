package commands_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"tasksync/internal/backend/googletasks"
	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
	"tasksync/internal/testutil"
)

const header = "------------\nMy Tasks\n------------\n"

func newConfig(t *testing.T, quiet bool) *config.Config {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	cfg.Quiet = quiet
	return cfg
}

// runCommand is a helper to run a command against a FakeStore.
func runCommand(t *testing.T, cmd commands.Command, store *testutil.FakeStore, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	var s commands.Store
	if store != nil {
		s = store
	}
	code = cmd.Run(context.Background(), newConfig(t, quiet), s, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func seeded(tasks ...service.Task) *testutil.FakeStore {
	store := testutil.NewFakeStore()
	for _, task := range tasks {
		store.AddTask(testutil.DefaultListID, task.ID, task.Text, task.Completed)
	}
	return store
}

func open(id, text string) service.Task { return service.Task{ID: id, Text: text} }

func done(id, text string) service.Task {
	return service.Task{ID: id, Text: text, Completed: true}
}

func texts(l service.TaskList) []string {
	out := make([]string, len(l.Items))
	for i, t := range l.Items {
		out[i] = t.Text
	}
	return out
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "tasksync 0.1.0 (automerge backend)\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.HelpCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	for _, want := range []string{"Usage:", "tasksync mv", "tasksync watch", "--backend", "Aliases:", "  ls         list\n", "  toggle     done\n"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

// Tests for list command
func TestListCommand_WithTasks(t *testing.T) {
	store := seeded(open("a", "Buy milk"), open("b", "Buy eggs"), done("c", "Call mum"))

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, store, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := header +
		"   1  [ ] Buy milk\n" +
		"   2  [ ] Buy eggs\n" +
		"   3  [x] Call mum\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	if store.Subscribers() != 0 {
		t.Errorf("expected subscription to be cancelled, %d left", store.Subscribers())
	}
}

func TestListCommand_OpenOnly(t *testing.T) {
	store := seeded(open("a", "Buy milk"), done("c", "Call mum"))

	cmd := &commands.ListCmd{}
	cmd.SetOpenOnly(true)
	stdout, _, code := runCommand(t, cmd, store, nil, false)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stdout, header+"   1  [ ] Buy milk\n")
}

func TestListCommand_Empty(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, testutil.NewFakeStore(), nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != header+"no tasks found\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.ListCmd{}, testutil.NewFakeStore(), nil, true)

	assert.Equal(t, code, exitcode.Success)
	// Quiet mode should suppress "no tasks found"
	assert.Equal(t, stdout, header)
}

func TestListCommand_NamedList(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SetList(service.TaskList{ID: "shopping", Name: "Shopping", Items: []service.Task{open("x", "Bread")}})

	stdout, _, code := runCommand(t, &commands.ListCmd{}, store, []string{"shopping"}, false)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stdout, "------------\nShopping\n------------\n   1  [ ] Bread\n")
}

func TestListCommand_ListNotFound(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, testutil.NewFakeStore(), []string{"nope"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.HasPrefix(stderr, "error: not found") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_SubscribeFails(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SubscribeErr = errors.New("connection refused")

	_, stderr, code := runCommand(t, &commands.ListCmd{}, store, nil, false)

	assert.Equal(t, code, exitcode.BackendError)
	assert.Equal(t, strings.HasPrefix(stderr, "error: backend error:"), true)
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	store := seeded(open("a", "A"), done("b", "B"))

	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, store, []string{"Buy", "groceries"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}

	// The new task lands above the completed block.
	assert.Equal(t, texts(store.List(testutil.DefaultListID)), []string{"A", "Buy groceries", "B"})

	writes := store.Writes()
	if len(writes) != 1 || len(writes[0].Ops) != 1 || writes[0].Ops[0].Kind != service.OpInsert {
		t.Fatalf("expected one insert, got %+v", writes)
	}
	if writes[0].Ops[0].Task.ID == "" {
		t.Error("expected inserted task to carry an ID")
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, testutil.NewFakeStore(), []string{"Buy", "milk"}, true)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stderr, "")
	assert.Equal(t, stdout, "")
}

func TestAddCommand_NoText(t *testing.T) {
	for _, args := range [][]string{nil, {"   "}} {
		store := testutil.NewFakeStore()
		stdout, stderr, code := runCommand(t, &commands.AddCmd{}, store, args, false)

		if code != exitcode.UserError {
			t.Errorf("args %q: expected exit code %d, got %d", args, exitcode.UserError, code)
		}
		if stdout != "" {
			t.Errorf("args %q: expected no stdout, got %q", args, stdout)
		}
		if stderr != "error: task text required\n" {
			t.Errorf("args %q: unexpected stderr %q", args, stderr)
		}
		if len(store.Writes()) != 0 {
			t.Errorf("args %q: expected no writes", args)
		}
	}
}

func TestAddCommand_BackendError(t *testing.T) {
	store := testutil.NewFakeStore()
	store.ApplyErr = errors.New("disk full")

	_, stderr, code := runCommand(t, &commands.AddCmd{}, store, []string{"x"}, false)

	assert.Equal(t, code, exitcode.BackendError)
	assert.Equal(t, strings.Contains(stderr, "disk full"), true)
}

func TestAddCommand_AuthError(t *testing.T) {
	store := testutil.NewFakeStore()
	store.ApplyErr = googletasks.ErrAuth

	_, _, code := runCommand(t, &commands.AddCmd{}, store, []string{"x"}, false)

	assert.Equal(t, code, exitcode.AuthError)
}

// Tests for done command
func TestDoneCommand_CompletesAndSinks(t *testing.T) {
	store := seeded(open("a", "A"), open("b", "B"), open("c", "C"))

	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, store, []string{"1"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}

	list := store.List(testutil.DefaultListID)
	assert.Equal(t, texts(list), []string{"B", "C", "A"})
	assert.Equal(t, list.Items[2].Completed, true)

	// Flag and move travel in one write.
	writes := store.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
	ops := writes[0].Ops
	if len(ops) != 2 || ops[0].Kind != service.OpUpdateCompletion || ops[1].Kind != service.OpMove {
		t.Errorf("unexpected ops %+v", ops)
	}
}

func TestDoneCommand_Reopens(t *testing.T) {
	store := seeded(open("a", "A"), done("b", "B"), done("c", "C"))

	_, _, code := runCommand(t, &commands.DoneCmd{}, store, []string{"3"}, false)

	assert.Equal(t, code, exitcode.Success)
	list := store.List(testutil.DefaultListID)
	assert.Equal(t, texts(list), []string{"A", "C", "B"})
	assert.Equal(t, list.Items[1].Completed, false)
}

func TestDoneCommand_BadRefs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "error: task reference required\n"},
		{[]string{"x"}, "error: invalid task reference: x\n"},
		{[]string{"0"}, "error: invalid task reference: 0\n"},
		{[]string{"5"}, "error: task number out of range: 5\n"},
	}
	for _, tt := range tests {
		store := seeded(open("a", "A"))
		stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, store, tt.args, false)

		if code != exitcode.UserError {
			t.Errorf("args %q: expected exit code %d, got %d", tt.args, exitcode.UserError, code)
		}
		if stdout != "" {
			t.Errorf("args %q: expected no stdout, got %q", tt.args, stdout)
		}
		if stderr != tt.want {
			t.Errorf("args %q: expected %q, got %q", tt.args, tt.want, stderr)
		}
		if len(store.Writes()) != 0 {
			t.Errorf("args %q: expected no writes", tt.args)
		}
	}
}

// Tests for edit command
func TestEditCommand(t *testing.T) {
	store := seeded(open("a", "A"), open("b", "B"))

	stdout, _, code := runCommand(t, &commands.EditCmd{}, store, []string{"2", "Buy", "oat", "milk"}, false)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stdout, "ok\n")
	assert.Equal(t, texts(store.List(testutil.DefaultListID)), []string{"A", "Buy oat milk"})
}

func TestEditCommand_NoText(t *testing.T) {
	store := seeded(open("a", "A"))

	_, stderr, code := runCommand(t, &commands.EditCmd{}, store, []string{"1"}, false)

	assert.Equal(t, code, exitcode.UserError)
	assert.Equal(t, stderr, "error: task text required\n")
	assert.Equal(t, len(store.Writes()), 0)
}

// Tests for mv command
func TestMvCommand(t *testing.T) {
	store := seeded(open("a", "A"), open("b", "B"), done("c", "C"))

	stdout, _, code := runCommand(t, &commands.MvCmd{}, store, []string{"3", "1"}, false)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stdout, "ok\n")
	// Moves are not forced back under the open tasks.
	assert.Equal(t, texts(store.List(testutil.DefaultListID)), []string{"C", "A", "B"})
}

func TestMvCommand_SameRow(t *testing.T) {
	store := seeded(open("a", "A"), open("b", "B"))

	stdout, _, code := runCommand(t, &commands.MvCmd{}, store, []string{"2", "2"}, false)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stdout, "ok\n")
	assert.Equal(t, len(store.Writes()), 0)
}

func TestMvCommand_BadArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"1"}, "error: source and destination rows required\n"},
		{[]string{"1", "b"}, "error: invalid task reference: b\n"},
		{[]string{"1", "9"}, "error: task number out of range: 9\n"},
	}
	for _, tt := range tests {
		store := seeded(open("a", "A"), open("b", "B"))
		_, stderr, code := runCommand(t, &commands.MvCmd{}, store, tt.args, false)

		if code != exitcode.UserError {
			t.Errorf("args %q: expected exit code %d, got %d", tt.args, exitcode.UserError, code)
		}
		if stderr != tt.want {
			t.Errorf("args %q: expected %q, got %q", tt.args, tt.want, stderr)
		}
	}
}

// Tests for rm command
func TestRmCommand(t *testing.T) {
	store := seeded(open("a", "A"), open("b", "B"))

	stdout, _, code := runCommand(t, &commands.RmCmd{}, store, []string{"1"}, false)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stdout, "ok\n")
	assert.Equal(t, texts(store.List(testutil.DefaultListID)), []string{"B"})
}

func TestRmCommand_OutOfRange(t *testing.T) {
	store := seeded(open("a", "A"))

	_, stderr, code := runCommand(t, &commands.RmCmd{}, store, []string{"2"}, false)

	assert.Equal(t, code, exitcode.UserError)
	assert.Equal(t, stderr, "error: task number out of range: 2\n")
}

// Tests for lists commands
func TestListsCommand(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SetList(service.TaskList{ID: "work", Name: "Work"})

	stdout, stderr, code := runCommand(t, &commands.ListsCmd{}, store, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := "default  My Tasks *\nwork  Work\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestCreateListCommand(t *testing.T) {
	store := testutil.NewFakeStore()

	stdout, _, code := runCommand(t, &commands.CreateListCmd{}, store, []string{"Home", "Stuff"}, false)

	assert.Equal(t, code, exitcode.Success)
	assert.Equal(t, stdout, "home-stuff\n")
	assert.Equal(t, store.List("home-stuff").Name, "Home Stuff")

	_, stderr, code := runCommand(t, &commands.CreateListCmd{}, store, []string{"home", "stuff"}, false)
	assert.Equal(t, code, exitcode.UserError)
	assert.Equal(t, stderr, "error: list already exists: home stuff\n")
}

func TestCreateListCommand_NoName(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.CreateListCmd{}, testutil.NewFakeStore(), nil, false)

	assert.Equal(t, code, exitcode.UserError)
	assert.Equal(t, stderr, "error: list name required\n")
}

func TestRmListCommand(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SetList(service.TaskList{ID: "work", Name: "Work", Items: []service.Task{done("x", "X")}})

	// Completed tasks don't count as content.
	stdout, stderr, code := runCommand(t, &commands.RmListCmd{}, store, []string{"work"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	assert.Equal(t, stdout, "ok\n")
	lists, _ := store.Lists(context.Background())
	assert.Equal(t, len(lists), 1)
}

func TestRmListCommand_NotEmpty(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SetList(service.TaskList{ID: "work", Name: "Work", Items: []service.Task{open("x", "X")}})

	_, stderr, code := runCommand(t, &commands.RmListCmd{}, store, []string{"work"}, false)
	assert.Equal(t, code, exitcode.UserError)
	assert.Equal(t, stderr, "error: list not empty (use --force)\n")

	cmd := &commands.RmListCmd{}
	cmd.SetForce(true)
	_, _, code = runCommand(t, cmd, store, []string{"work"}, false)
	assert.Equal(t, code, exitcode.Success)
}

func TestRmListCommand_Default(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.RmListCmd{}, testutil.NewFakeStore(), []string{"default"}, false)

	assert.Equal(t, code, exitcode.UserError)
	assert.Equal(t, stderr, "error: cannot delete default list\n")
}

func TestRmListCommand_Unknown(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.RmListCmd{}, testutil.NewFakeStore(), []string{"nope"}, false)

	assert.Equal(t, code, exitcode.UserError)
	assert.Equal(t, strings.HasPrefix(stderr, "error: not found"), true)
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, what string, ok func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !ok() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchCommand(t *testing.T) {
	store := seeded(open("a", "A"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut syncBuffer
	codeCh := make(chan int, 1)
	go func() {
		codeCh <- (&commands.WatchCmd{}).Run(ctx, newConfig(t, false), store, nil, &out, &errOut)
	}()

	waitFor(t, "first frame", func() bool { return strings.Count(out.String(), "My Tasks") == 1 })

	// A change made by someone else.
	store.AddTask(testutil.DefaultListID, "b", "B", false)
	store.Publish(testutil.DefaultListID)

	waitFor(t, "second frame", func() bool { return strings.Contains(out.String(), "   2  [ ] B") })

	cancel()
	select {
	case code := <-codeCh:
		assert.Equal(t, code, exitcode.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	expected := header + "   1  [ ] A\n\n" + header + "   1  [ ] A\n   2  [ ] B\n\n"
	assert.Equal(t, out.String(), expected)
	assert.Equal(t, errOut.String(), "")
}
