package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// QueryFunc runs a query once against a backend.
type QueryFunc func(ctx context.Context, q Query) ([]model.Image, error)

// Hub turns one-shot queries into live queries. Backends call Notify after
// each commit and the Hub re-runs every subscription on that collection.
//
// HOW A LIVE QUERY WORKS:
//
//	Subscribe  → start a goroutine, run the query once, deliver it
//	Notify     → mark every subscription on that collection dirty
//	loop       → when dirty, re-run the query and deliver the result
//	Unsubscribe → stop the goroutine; later results are dropped
//
// WHY RE-RUN THE QUERY INSTEAD OF SENDING THE NEW RECORD?
// A subscriber holds a limited, sorted window ("newest 50"). Working out
// how one new record changes that window means re-implementing the
// ordering and limit outside the database. Re-running the query is one
// indexed read and always returns exactly what a fresh query would.
//
// Each subscription runs in its own goroutine. Notifications that arrive
// while a query is running are coalesced into one re-run, so a subscriber
// never sees a snapshot older than the last commit it was notified about.
type Hub struct {
	run QueryFunc

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	q     Query
	fn    func(Snapshot)
	dirty chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewHub returns a Hub that runs queries with run.
func NewHub(run QueryFunc) *Hub {
	return &Hub{run: run, subs: make(map[*subscription]struct{})}
}

// Subscribe starts a live query. fn receives the initial snapshot and one
// snapshot per later commit on q.Collection. An unknown collection is
// reported through fn as ErrInvalidQuery.
func (h *Hub) Subscribe(q Query, fn func(Snapshot)) (Unsubscribe, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	s := &subscription{
		q:     q,
		fn:    fn,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	h.subs[s] = struct{}{}
	go h.loop(s)

	// Unsubscribe never waits for the loop, so it is safe to call from
	// inside fn.
	return func() {
		h.remove(s)
		s.stop()
	}, nil
}

func (h *Hub) loop(s *subscription) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	for {
		images, err := h.query(ctx, s.q)

		select {
		case <-s.done:
			return
		default:
		}

		if err != nil {
			h.remove(s)
			s.stop()
			s.fn(Snapshot{Err: err})
			return
		}
		s.fn(Snapshot{Images: images})

		select {
		case <-s.done:
			return
		case <-s.dirty:
		}
	}
}

func (h *Hub) query(ctx context.Context, q Query) ([]model.Image, error) {
	if _, err := ParsePath(q.Collection); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, err.Error())
	}
	return h.run(ctx, q)
}

func (h *Hub) remove(s *subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Notify marks every subscription on collection as stale.
func (h *Hub) Notify(collection Path) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.q.Collection != collection {
			continue
		}
		select {
		case s.dirty <- struct{}{}:
		default: // already pending
		}
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close stops every subscription. Later Subscribe calls return ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		s.stop()
		delete(h.subs, s)
	}
}
