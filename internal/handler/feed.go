package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/feed"
)

// Live feed timings.
const (
	DefaultFeedWait = 3 * time.Second
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
)

// FeedOptions configures the feed endpoints.
type FeedOptions struct {
	Feed feed.Options
	// Wait bounds how long GET /api/feed waits for the first data before
	// answering with the loading state.
	Wait time.Duration
	// AllowedOrigins restricts websocket upgrades. Empty means same origin
	// only.
	AllowedOrigins []string
}

// FeedHandler serves the merged gallery feed, once or as a live stream.
type FeedHandler struct {
	store    docstore.Subscriber
	opts     FeedOptions
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time
}

func NewFeedHandler(store docstore.Subscriber, opts FeedOptions, logger *slog.Logger) *FeedHandler {
	if opts.Wait <= 0 {
		opts.Wait = DefaultFeedWait
	}
	h := &FeedHandler{store: store, opts: opts, logger: logger, now: time.Now}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *FeedHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	// same origin
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (h *FeedHandler) start(r *http.Request) (*feed.Aggregator, error) {
	userID, _ := auth.UserIDFromContext(r.Context())
	agg := feed.New(h.store, userID, h.opts.Feed, h.logger.With(slog.String("user_id", userID)))
	if err := agg.Start(); err != nil {
		agg.Close()
		return nil, err
	}
	return agg, nil
}

// HandleFeed returns the merged feed. A feed still loading after the wait
// is returned as is, with placeholders.
//
// HTTP: GET /api/feed
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	agg, err := h.start(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer agg.Close()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Wait)
	defer cancel()

	st, err := agg.Wait(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		// client went away
		return
	}
	if st.Status == feed.StatusError {
		writeError(w, st.Err)
		return
	}
	writeJSON(w, http.StatusOK, st.View(h.now()))
}

// HandleStream pushes the feed over a websocket on every change, starting
// with the current state. Slow clients only ever see the latest state.
//
// HTTP: GET /api/feed/ws
func (h *FeedHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("feed stream: upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	agg, err := h.start(r)
	if err != nil {
		h.logger.Warn("feed stream: subscribe failed", slog.String("error", err.Error()))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(writeWait))
		return
	}
	defer agg.Close()

	updates := make(chan feed.State, 1)
	stop := agg.Watch(func(st feed.State) {
		// Keep only the newest state. fn runs under the aggregator lock,
		// so this must not block.
		select {
		case <-updates:
		default:
		}
		updates <- st
	})
	defer stop()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case st := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(st.View(h.now())); err != nil {
				h.logger.Debug("feed stream: write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed,
// and closes done when the connection ends.
func (h *FeedHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
