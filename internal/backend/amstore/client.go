package amstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"tasksync/internal/syncwire"
)

// ErrNoRemote is returned by Fetch when the server has no such store.
var ErrNoRemote = errors.New("store does not exist on server")

// Client talks to a tasksyncd server for one named store.
type Client struct {
	baseURL  *url.URL
	name     string
	http     *http.Client
	dialer   *websocket.Dialer
	interval time.Duration
	log      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the client used for plain requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithSyncInterval sets how often pending changes are pushed.
func WithSyncInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.interval = d }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for store name on the server at rawURL.
func NewClient(rawURL, name string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", rawURL)
	}
	c := &Client{
		baseURL:  u,
		name:     name,
		http:     http.DefaultClient,
		dialer:   websocket.DefaultDialer,
		interval: syncwire.DefaultInterval,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch downloads the latest saved document from the server.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	u := c.baseURL.JoinPath("stores", c.name, "latest")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from get: %w", err)
		}
		return raw, nil
	case http.StatusNotFound:
		return nil, ErrNoRemote
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func (c *Client) syncURL() string {
	u := c.baseURL.JoinPath("stores", c.name, "sync")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// Sync connects once and syncs s until ctx is done or the connection ends.
func (c *Client) Sync(ctx context.Context, s *Store) error {
	conn, _, err := c.dialer.DialContext(ctx, c.syncURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()
	if err := syncwire.Sync(ctx, conn, s.NewPeer(), c.interval); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	return nil
}

// SyncFor syncs s for at most d. Running out of time is not an error.
func (c *Client) SyncFor(ctx context.Context, s *Store, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := c.Sync(ctx, s)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.log.Debug("sync window ended with error", "err", err)
		return nil
	}
	return err
}

// SyncContinuously keeps s synced, reconnecting after failures, until ctx is
// done.
func (c *Client) SyncContinuously(ctx context.Context, s *Store) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		if err := c.Sync(ctx, s); err != nil {
			c.log.Warn("failed to sync", "err", err)
		} else if ctx.Err() == nil {
			c.log.Debug("sync connection closed")
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			c.log.Debug("stopping scheduled sync")
			return
		}
	}
}
