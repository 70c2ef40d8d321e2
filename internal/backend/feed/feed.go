// Package feed delivers snapshots to subscribers in publish order, each
// subscriber on its own goroutine, without coalescing.
package feed

import (
	"sync"

	"tasksync/internal/service"
)

// Feed fans snapshots of one or more lists out to subscribers.
type Feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

// New creates an empty feed.
func New() *Feed {
	return &Feed{subs: make(map[int]*subscriber)}
}

type subscriber struct {
	listID string
	fn     func(service.TaskList)

	mu      sync.Mutex
	queue   []service.TaskList
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

// Subscribe registers fn for snapshots of listID and queues initial as the
// first delivery. Callers that publish under a lock should subscribe under the
// same lock so initial is ordered before any later Publish.
// The returned subscription stops delivery when cancelled; a snapshot
// already handed to fn is allowed to finish.
func (f *Feed) Subscribe(listID string, initial *service.TaskList, fn func(service.TaskList)) service.Subscription {
	s := &subscriber{
		listID: listID,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = s
	if initial != nil {
		s.push(initial.Clone())
	}
	f.mu.Unlock()

	go s.run()

	var once sync.Once
	return service.SubscriptionFunc(func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			s.stop()
		})
	})
}

// Publish queues snapshot for every subscriber of snapshot.ID.
func (f *Feed) Publish(snapshot service.TaskList) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.listID == snapshot.ID {
			s.push(snapshot.Clone())
		}
	}
}

// Len returns the number of active subscriptions.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close cancels every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[int]*subscriber)
	f.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber) push(snapshot service.TaskList) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, snapshot)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		s.queue = nil
		close(s.done)
	}
	s.mu.Unlock()
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if s.stopped || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.fn(next)
		}
	}
}
