package syncwire_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"

	"tasksync/internal/syncwire"
)

// queuePeer sends queued messages and records what it receives.
type queuePeer struct {
	mu       sync.Mutex
	outbox   []string
	received []string
}

func (p *queuePeer) Receive(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, string(msg))
	return nil
}

func (p *queuePeer) Generate() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outbox) == 0 {
		return nil, false
	}
	msg := p.outbox[0]
	p.outbox = p.outbox[1:]
	return []byte(msg), true
}

func (p *queuePeer) Received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}

func TestSync_ExchangesUntilCancelled(t *testing.T) {
	server := &queuePeer{outbox: []string{"s1", "s2"}}
	serverDone := make(chan error, 1)

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- syncwire.Sync(context.Background(), conn, server, 10*time.Millisecond)
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	client := &queuePeer{outbox: []string{"c1"}}
	ctx, cancel := context.WithCancel(context.Background())
	clientDone := make(chan error, 1)
	go func() { clientDone <- syncwire.Sync(ctx, conn, client, 10*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(client.Received()) < 2 || len(server.Received()) < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: client got %v, server got %v", client.Received(), server.Received())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	// Both sides end cleanly: the client on cancel, the server on the close frame.
	for name, done := range map[string]chan error{"client": clientDone, "server": serverDone} {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("%s: unexpected error: %v", name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s did not stop", name)
		}
	}

	assert.Equal(t, client.Received(), []string{"s1", "s2"})
	assert.Equal(t, server.Received(), []string{"c1"})
}
