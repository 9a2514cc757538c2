package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// Status is the feed's display state.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusEmpty     Status = "empty"
	StatusError     Status = "error"
	StatusPopulated Status = "populated"
)

// Default query bounds and placeholder count.
const (
	DefaultUserLimit    = 20
	DefaultGlobalLimit  = 50
	DefaultPlaceholders = 10
)

// Options tunes an Aggregator. Zero values take the defaults.
type Options struct {
	UserLimit    int
	GlobalLimit  int
	Placeholders int
}

func (o Options) withDefaults() Options {
	if o.UserLimit <= 0 {
		o.UserLimit = DefaultUserLimit
	}
	if o.GlobalLimit <= 0 {
		o.GlobalLimit = DefaultGlobalLimit
	}
	if o.Placeholders <= 0 {
		o.Placeholders = DefaultPlaceholders
	}
	return o
}

// State is what the gallery renders. Images is the full merged list and
// replaces whatever was shown before.
type State struct {
	Status       Status        `json:"status"`
	Images       []model.Image `json:"images"`
	Error        string        `json:"error,omitempty"`
	Placeholders int           `json:"placeholders,omitempty"`

	Err error `json:"-"`
}

type source struct {
	images    []model.Image
	delivered bool
	err       error
}

// Aggregator keeps a merged feed up to date from two live queries.
//
// WHY ONE LOCK FOR BOTH SOURCES?
// The two subscriptions deliver on their own goroutines. If each updated
// its list and merged without coordinating, a merge could read the user
// list from one moment and the global list from another, and the later
// of two merges could finish first. Holding a.mu from "store this
// snapshot" through "derive and publish" means each published State is
// the merge of exactly the snapshots that arrived before it.
//
// DERIVING THE STATUS:
//
//	either source failed       → error (the user source is checked first)
//	merged list not empty      → populated
//	both sources delivered     → empty
//	otherwise                  → loading, with placeholders
//
// A source that reports Loading keeps the records it delivered last, so a
// backend hiccup does not blank the gallery.
type Aggregator struct {
	store  docstore.Subscriber
	uid    string
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	user      source
	global    source
	state     State
	listeners map[int]func(State)
	nextID    int
	changed   chan struct{} // closed and replaced on every state change
	unsubs    []docstore.Unsubscribe
	closed    bool
}

// New returns an Aggregator for uid. Call Start to begin receiving data.
func New(store docstore.Subscriber, uid string, opts Options, logger *slog.Logger) *Aggregator {
	opts = opts.withDefaults()
	return &Aggregator{
		store:     store,
		uid:       uid,
		opts:      opts,
		logger:    logger,
		state:     State{Status: StatusLoading, Images: []model.Image{}, Placeholders: opts.Placeholders},
		listeners: make(map[int]func(State)),
		changed:   make(chan struct{}),
	}
}

// Start subscribes to both queries.
func (a *Aggregator) Start() error {
	userQ := docstore.Query{Collection: docstore.UserImages(a.uid), Limit: a.opts.UserLimit}
	globalQ := docstore.Query{Collection: docstore.Global, Limit: a.opts.GlobalLimit}

	unsubUser, err := a.store.Subscribe(userQ, func(s docstore.Snapshot) { a.apply(&a.user, s) })
	if err != nil {
		return apperror.QueryFailed(fmt.Errorf("subscribing to %s: %w", userQ.Collection, err))
	}
	unsubGlobal, err := a.store.Subscribe(globalQ, func(s docstore.Snapshot) { a.apply(&a.global, s) })
	if err != nil {
		unsubUser()
		return apperror.QueryFailed(fmt.Errorf("subscribing to %s: %w", globalQ.Collection, err))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.unsubs = []docstore.Unsubscribe{unsubUser, unsubGlobal}
	if a.closed {
		// Close raced with Start.
		unsubUser()
		unsubGlobal()
	}
	return nil
}

// apply folds one snapshot into src and re-derives the state. It runs on
// every delivery from either query.
func (a *Aggregator) apply(src *source, snap docstore.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	switch {
	case snap.Err != nil:
		src.err = snap.Err
		a.logger.Warn("feed query failed",
			slog.String("user_id", a.uid),
			slog.String("error", snap.Err.Error()),
		)
	case snap.Loading:
		// Keep whatever this source delivered last.
	default:
		src.images = snap.Images
		src.delivered = true
	}

	a.state = a.derive()
	a.publish()
}

// derive must be called with a.mu held.
func (a *Aggregator) derive() State {
	for _, src := range []*source{&a.user, &a.global} {
		if src.err != nil {
			qerr := apperror.QueryFailed(src.err)
			return State{Status: StatusError, Images: []model.Image{}, Error: qerr.Error(), Err: qerr}
		}
	}

	merged := Merge(a.user.images, a.global.images)
	switch {
	case len(merged) > 0:
		return State{Status: StatusPopulated, Images: merged}
	case a.user.delivered && a.global.delivered:
		return State{Status: StatusEmpty, Images: merged}
	default:
		return State{Status: StatusLoading, Images: merged, Placeholders: a.opts.Placeholders}
	}
}

// publish must be called with a.mu held.
func (a *Aggregator) publish() {
	for _, fn := range a.listeners {
		fn(a.state)
	}
	close(a.changed)
	a.changed = make(chan struct{})
}

// State returns the current state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Watch calls fn with the current state and then on every change until the
// returned function is called. fn runs with the aggregator locked and must
// not call back into it.
func (a *Aggregator) Watch(fn func(State)) (stop func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	fn(a.state)

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Wait blocks until the feed has left the loading state or ctx is done,
// and returns the state at that point.
func (a *Aggregator) Wait(ctx context.Context) (State, error) {
	for {
		a.mu.Lock()
		st, ch := a.state, a.changed
		a.mu.Unlock()

		if st.Status != StatusLoading {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ch:
		}
	}
}

// Close unsubscribes from both queries. It is idempotent.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unsubs := a.unsubs
	a.listeners = map[int]func(State){}
	a.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}
