// Package diagnostics is the out-of-band channel for failures that need
// operator attention rather than (or as well as) a message to the user.
//
// The main producer is the upload pipeline: when the blob is stored but
// the metadata writes fail, the blob is orphaned and nothing in the feed
// points at it. The event records enough to find and clean it up.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event kinds.
const (
	KindOrphanedBlob = "orphaned_blob"
)

// Event describes one diagnosable failure.
type Event struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"userId"`
	BlobPath  string    `json:"blobPath"`
	DocPaths  []string  `json:"docPaths"`
	Operation string    `json:"operation"` // "batch" or "set"
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// Reporter receives events. Report must not block for long and must not
// fail the caller: delivery problems are the reporter's to log.
type Reporter interface {
	Report(ctx context.Context, e Event)
}

// LogReporter writes events to the structured log at error level.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(_ context.Context, e Event) {
	r.Logger.Error("diagnostic event",
		slog.String("kind", e.Kind),
		slog.String("user_id", e.UserID),
		slog.String("blob_path", e.BlobPath),
		slog.Any("doc_paths", e.DocPaths),
		slog.String("operation", e.Operation),
		slog.String("error", e.Error),
	)
}

// Publisher is the part of *redis.Client used by RedisReporter.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisReporter publishes events as JSON on a Redis channel, for a cleanup
// worker or alerting hook to subscribe to.
type RedisReporter struct {
	client  Publisher
	channel string
	logger  *slog.Logger
}

// NewRedisReporter returns a reporter publishing on channel.
func NewRedisReporter(client Publisher, channel string, logger *slog.Logger) *RedisReporter {
	return &RedisReporter{client: client, channel: channel, logger: logger}
}

func (r *RedisReporter) Report(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("diagnostics: encoding event", slog.String("error", err.Error()))
		return
	}

	// The request context may already be cancelled by the time a failed
	// upload is reported. The event still has to go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Error("diagnostics: publishing event",
			slog.String("channel", r.channel),
			slog.String("error", err.Error()),
		)
	}
}

// Multi fans an event out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, e Event) {
	for _, r := range m {
		r.Report(ctx, e)
	}
}

// Recorder keeps events in memory. Tests use it to assert on what was
// reported.
type Recorder struct {
	events chan Event
}

// NewRecorder returns a Recorder that buffers up to n events.
func NewRecorder(n int) *Recorder {
	return &Recorder{events: make(chan Event, n)}
}

func (r *Recorder) Report(_ context.Context, e Event) {
	select {
	case r.events <- e:
	default:
	}
}

// ErrNoEvent is returned by Next when nothing was reported.
var ErrNoEvent = errors.New("diagnostics: no event reported")

// Next returns the oldest unread event.
func (r *Recorder) Next() (Event, error) {
	select {
	case e := <-r.events:
		return e, nil
	default:
		return Event{}, ErrNoEvent
	}
}
