package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func sampleEvent() Event {
	return Event{
		Kind:      KindOrphanedBlob,
		UserID:    "u1",
		BlobPath:  "images/u1/1_a.png",
		DocPaths:  []string{"images/abc", "users/u1/images/abc"},
		Operation: "batch",
		Error:     "permission denied",
	}
}

func TestRedisReporter_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	var logs bytes.Buffer
	r := NewRedisReporter(pub, "imagedrop:diagnostics", slog.New(slog.NewTextHandler(&logs, nil)))

	r.Report(context.Background(), sampleEvent())

	assert.Equal(t, "imagedrop:diagnostics", pub.channel)
	var got Event
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, sampleEvent().DocPaths, got.DocPaths)
	assert.Equal(t, "batch", got.Operation)
	assert.Empty(t, logs.String())
}

func TestRedisReporter_PublishErrorIsLogged(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	var logs bytes.Buffer
	r := NewRedisReporter(pub, "ch", slog.New(slog.NewTextHandler(&logs, nil)))

	r.Report(context.Background(), sampleEvent())

	assert.Contains(t, logs.String(), "redis down")
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := NewRecorder(1), NewRecorder(1)
	Multi{a, b}.Report(context.Background(), sampleEvent())

	for _, rec := range []*Recorder{a, b} {
		e, err := rec.Next()
		require.NoError(t, err)
		assert.Equal(t, "images/u1/1_a.png", e.BlobPath)

		_, err = rec.Next()
		assert.ErrorIs(t, err, ErrNoEvent)
	}
}

func TestLogReporter(t *testing.T) {
	var logs bytes.Buffer
	LogReporter{Logger: slog.New(slog.NewTextHandler(&logs, nil))}.Report(context.Background(), sampleEvent())

	assert.Contains(t, logs.String(), "orphaned_blob")
	assert.Contains(t, logs.String(), "users/u1/images/abc")
}
