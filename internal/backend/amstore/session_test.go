package amstore_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"tasksync/internal/backend/amstore"
	"tasksync/internal/service"
	"tasksync/internal/syncserver"
)

type nopRepo struct{}

func (nopRepo) LoadAll(context.Context) (map[string][]byte, error) { return nil, nil }
func (nopRepo) Save(context.Context, string, []byte) error         { return nil }

func TestSlug(t *testing.T) {
	assert.Equal(t, amstore.Slug("Groceries"), "groceries")
	assert.Equal(t, amstore.Slug("  Work / Q3 plans "), "work-q3-plans")
	assert.Equal(t, amstore.Slug("!!!"), "")
}

func TestSession_OfflinePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "default.automerge")

	s, err := amstore.OpenSession(ctx, amstore.SessionConfig{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Apply(ctx, amstore.DefaultListID, service.InsertOp(service.Task{ID: "a", Text: "milk"}, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	list, err := s.NewList(ctx, "Work Stuff")
	if err != nil {
		t.Fatalf("new list: %v", err)
	}
	assert.Equal(t, list.ID, "work-stuff")
	if _, err := s.NewList(ctx, "work stuff"); !errors.Is(err, amstore.ErrListExists) {
		t.Errorf("expected ErrListExists, got %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := amstore.OpenSession(ctx, amstore.SessionConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close(ctx)
	lists, err := reopened.Lists(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(lists), 2)
	assert.Equal(t, lists[0].ID, amstore.DefaultListID)
	assert.Equal(t, lists[0].Items[0].Text, "milk")
	assert.Equal(t, lists[1].Name, "Work Stuff")

	if err := reopened.DeleteList(ctx, "work-stuff"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := reopened.DeleteList(ctx, "work-stuff"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_SharesThroughServer(t *testing.T) {
	ts := httptest.NewServer(syncserver.New(nopRepo{}, syncserver.Options{SyncInterval: 20 * time.Millisecond}).Handler())
	defer ts.Close()
	ctx := context.Background()

	cfg := func(name string) amstore.SessionConfig {
		return amstore.SessionConfig{
			Path:      filepath.Join(t.TempDir(), name+".automerge"),
			ServerURL: ts.URL,
			StoreName: "family",
			Window:    500 * time.Millisecond,
		}
	}

	alice, err := amstore.OpenSession(ctx, cfg("alice"))
	if err != nil {
		t.Fatalf("open alice: %v", err)
	}
	if err := alice.Apply(ctx, amstore.DefaultListID, service.InsertOp(service.Task{ID: "t1", Text: "bread"}, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := alice.Close(ctx); err != nil {
		t.Fatalf("close alice: %v", err)
	}

	bob, err := amstore.OpenSession(ctx, cfg("bob"))
	if err != nil {
		t.Fatalf("open bob: %v", err)
	}
	defer bob.Close(ctx)
	list, err := bob.Store().List(amstore.DefaultListID)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(list.Items), 1)
	assert.Equal(t, list.Items[0].Text, "bread")
}

func TestSession_ServerDownUsesReplica(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "default.automerge")

	local, err := amstore.OpenSession(ctx, amstore.SessionConfig{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := local.Apply(ctx, amstore.DefaultListID, service.InsertOp(service.Task{ID: "a", Text: "milk"}, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := local.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	ts := httptest.NewServer(nil)
	down := ts.URL
	ts.Close()

	s, err := amstore.OpenSession(ctx, amstore.SessionConfig{
		Path:      path,
		ServerURL: down,
		StoreName: "default",
		Window:    200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("open with server down: %v", err)
	}
	list, err := s.Store().List(amstore.DefaultListID)
	assert.Equal(t, err, nil)
	assert.Equal(t, list.Items[0].Text, "milk")

	// Close still saves locally and only logs the failed push.
	assert.Equal(t, s.Close(ctx), nil)
}
