// Package syncwire runs the automerge sync protocol over a websocket.
package syncwire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is how often pending changes are pushed to the other side.
const DefaultInterval = time.Second

// Peer is one side of a sync session. amstore.Peer implements it.
type Peer interface {
	Receive(msg []byte) error
	Generate() ([]byte, bool)
}

var errClosed = errors.New("connection closed by peer")

func readAndReceive(conn *websocket.Conn, peer Peer) error {
	mt, p, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return errClosed
		}
		return fmt.Errorf("failed to read message: %w", err)
	}
	if mt != websocket.BinaryMessage {
		return nil
	}
	if err := peer.Receive(p); err != nil {
		return fmt.Errorf("failed to receive message: %w", err)
	}
	return nil
}

// flush writes generated messages until the peer has nothing more to say.
func flush(conn *websocket.Conn, peer Peer) error {
	for {
		msg, ok := peer.Generate()
		if !ok {
			return nil
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}
}

// Sync exchanges messages on conn until ctx is done or either side fails.
// A normal close from the other side, or ctx ending, returns nil.
func Sync(ctx context.Context, conn *websocket.Conn, peer Peer, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			if err := readAndReceive(conn, peer); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	})

	g.Go(func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			if err := flush(conn, peer); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case <-t.C:
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errClosed) {
		return nil
	}
	return err
}
