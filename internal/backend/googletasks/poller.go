package googletasks

import (
	"context"
	"time"

	"tasksync/internal/service"
)

type poller struct {
	refs   int
	cancel context.CancelFunc
	kick   chan struct{}
}

// startPoller must be called with c.mu held.
func (c *Client) startPoller(listID string, last service.TaskList) *poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{cancel: cancel, kick: make(chan struct{}, 1)}
	go c.runPoller(ctx, p, listID, last)
	return p
}

func (c *Client) runPoller(ctx context.Context, p *poller, listID string, last service.TaskList) {
	t := time.NewTicker(c.poll)
	defer t.Stop()
	for {
		force := false
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-p.kick:
			force = true
		}

		list, err := c.Snapshot(ctx, listID)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("poll failed", "list", listID, "err", err)
			}
			continue
		}
		if !force && list.Equal(last) {
			continue
		}
		last = list
		c.mu.Lock()
		if ctx.Err() == nil {
			c.feed.Publish(list)
		}
		c.mu.Unlock()
	}
}

// kick asks the poller of listID, if any, to refetch and publish right away.
func (c *Client) kick(listID string) {
	c.mu.Lock()
	p, ok := c.pollers[listID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
}
