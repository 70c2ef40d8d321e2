// Package googletasks implements service.SyncedStore on top of the Google Tasks API.
//
// Google Tasks has no push channel, so subscriptions poll. A snapshot is every
// top-level task of a list, completed and hidden ones included, ordered by
// position.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"tasksync/internal/backend/feed"
	"tasksync/internal/config"
	"tasksync/internal/order"
	"tasksync/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// DefaultPollInterval is how often subscribed lists are refetched.
	DefaultPollInterval = 10 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// ErrAuth is returned when the stored token is no longer accepted.
var ErrAuth = errors.New("token expired or revoked (run: tasksync login)")

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets how often subscribed lists are refetched.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client implements service.SyncedStore using Google Tasks API.
type Client struct {
	svc  *tasks.Service
	poll time.Duration
	log  *slog.Logger
	feed *feed.Feed

	mu      sync.Mutex
	pollers map[string]*poller
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	oauthConfig, err := LoadOAuthConfig(cfg.OAuthClientPath())
	if err != nil {
		return nil, err
	}
	token, err := LoadToken(cfg.TokenPath())
	if err != nil {
		return nil, err
	}

	// Token source refreshes on its own
	tokenSource := oauthConfig.TokenSource(ctx, token)
	httpClient := oauth2.NewClient(ctx, tokenSource)

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return newClient(svc, opts...), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint
// (for testing). An empty endpoint uses the public API.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string, opts ...Option) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	svc, err := tasks.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	return newClient(svc, opts...), nil
}

func newClient(svc *tasks.Service, opts ...Option) *Client {
	c := &Client{
		svc:     svc,
		poll:    DefaultPollInterval,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		feed:    feed.New(),
		pollers: make(map[string]*poller),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot fetches the current state of a list.
func (c *Client) Snapshot(ctx context.Context, listID string) (service.TaskList, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	meta, err := c.svc.Tasklists.Get(listID).Context(ctx).Do()
	if err != nil {
		return service.TaskList{}, wrapError(err)
	}

	var items []*tasks.Task
	err = c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowDeleted(false).
		ShowHidden(true).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				if t.Parent == "" && !t.Deleted {
					items = append(items, t)
				}
			}
			return nil
		})
	if err != nil {
		return service.TaskList{}, wrapError(err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	list := service.TaskList{ID: listID, Name: meta.Title}
	for _, t := range items {
		list.Items = append(list.Items, service.Task{
			ID:        t.Id,
			Text:      t.Title,
			Completed: t.Status == statusCompleted,
		})
	}
	return list, nil
}

// Subscribe fetches listID, delivers it, then keeps polling for changes.
func (c *Client) Subscribe(ctx context.Context, listID string, fn func(service.TaskList)) (service.Subscription, error) {
	list, err := c.Snapshot(ctx, listID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	sub := c.feed.Subscribe(listID, &list, fn)
	p, ok := c.pollers[listID]
	if !ok {
		p = c.startPoller(listID, list)
		c.pollers[listID] = p
	}
	p.refs++
	c.mu.Unlock()

	var once sync.Once
	return service.SubscriptionFunc(func() {
		once.Do(func() {
			sub.Cancel()
			c.mu.Lock()
			if p.refs--; p.refs == 0 {
				delete(c.pollers, listID)
				p.cancel()
			}
			c.mu.Unlock()
		})
	}), nil
}

// Apply realises ops against the API, one call per op, and refreshes
// subscribers right after. ops are checked against a fresh snapshot first.
func (c *Client) Apply(ctx context.Context, listID string, ops ...service.Op) error {
	cur, err := c.Snapshot(ctx, listID)
	if err != nil {
		return err
	}
	if _, err := order.ApplyOps(cur, ops...); err != nil {
		return err
	}

	defer c.kick(listID)
	for _, op := range ops {
		if op, err = c.write(ctx, listID, cur, op); err != nil {
			return err
		}
		if cur, err = order.ApplyOp(cur, op); err != nil {
			return err
		}
	}
	return nil
}

// write performs one op. The returned op carries the server-assigned ID for
// inserts.
func (c *Client) write(ctx context.Context, listID string, cur service.TaskList, op service.Op) (service.Op, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	switch op.Kind {
	case service.OpInsert:
		task := &tasks.Task{Title: op.Task.Text, Status: statusNeedsAction}
		if op.Task.Completed {
			task.Status = statusCompleted
		}
		call := c.svc.Tasks.Insert(listID, task).Context(ctx)
		if op.Index > 0 {
			call = call.Previous(cur.Items[op.Index-1].ID)
		}
		created, err := call.Do()
		if err != nil {
			return op, wrapError(err)
		}
		op.Task.ID = created.Id
		return op, nil

	case service.OpUpdateCompletion:
		patch := &tasks.Task{Status: statusNeedsAction, NullFields: []string{"Completed"}}
		if op.Completed {
			patch = &tasks.Task{Status: statusCompleted}
		}
		_, err := c.svc.Tasks.Patch(listID, op.TaskID, patch).Context(ctx).Do()
		return op, wrapError(err)

	case service.OpEditText:
		_, err := c.svc.Tasks.Patch(listID, op.TaskID, &tasks.Task{Title: op.Text}).Context(ctx).Do()
		return op, wrapError(err)

	case service.OpMove:
		next, err := order.ApplyOp(cur, op)
		if err != nil {
			return op, err
		}
		call := c.svc.Tasks.Move(listID, op.TaskID).Context(ctx)
		if j := next.IndexOf(op.TaskID); j > 0 {
			call = call.Previous(next.Items[j-1].ID)
		}
		_, err = call.Do()
		return op, wrapError(err)

	case service.OpDelete:
		return op, wrapError(c.svc.Tasks.Delete(listID, op.TaskID).Context(ctx).Do())

	default:
		return op, fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

// Follow returns when ctx is done. Subscriptions poll on their own.
func (c *Client) Follow(ctx context.Context) {
	<-ctx.Done()
}

// Close stops every poller and subscription.
func (c *Client) Close(context.Context) error {
	c.mu.Lock()
	for id, p := range c.pollers {
		p.cancel()
		delete(c.pollers, id)
	}
	c.mu.Unlock()
	c.feed.Close()
	return nil
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	// Check for timeout
	if strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out: %w", context.DeadlineExceeded)
	}

	// Check for auth errors
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return ErrAuth
	}

	// Check for not found
	if strings.Contains(errStr, "404") {
		return fmt.Errorf("google tasks: %w", service.ErrNotFound)
	}

	return err
}
