package upload

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/diagnostics"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore/sqlite"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

func newTestOrchestrator(blobs *fakeBlobs, docs docstore.Writer) (*Orchestrator, *diagnostics.Recorder) {
	rec := diagnostics.NewRecorder(4)
	o := NewOrchestrator(blobs, docs, rec, testLogger(), DefaultMaxFileSize)
	o.now = func() time.Time { return time.Unix(0, 1700000000123456789) }
	o.newID = func() string { return "img1" }
	return o, rec
}

func TestBlobPath(t *testing.T) {
	at := time.Unix(0, 42)
	tests := []struct {
		filename string
		want     string
	}{
		{"cat.png", "images/u1/42_cat.png"},
		{"../../etc/passwd", "images/u1/42_passwd"},
		{`C:\fakepath\dog.jpg`, "images/u1/42_dog.jpg"},
		{"", "images/u1/42_upload"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, BlobPath("u1", at, tt.filename))
		})
	}
}

// =========================================================================
// SUCCESS
// =========================================================================

func TestUpload_DualWriteWithBatch(t *testing.T) {
	blobs := &fakeBlobs{}
	docs := &batchDocs{setOnlyDocs: newSetOnlyDocs()}
	o, rec := newTestOrchestrator(blobs, docs)

	img, err := o.Upload(context.Background(), alice, pngFile("cat.png", 100), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, docs.batches)
	assert.Equal(t, []string{"images/alice/1700000000123456789_cat.png"}, blobs.puts)
	assert.Equal(t, "https://cdn.test/images/alice/1700000000123456789_cat.png", img.URL)
	assert.Equal(t, docs.writes["images/img1"], docs.writes["users/alice/images/img1"])
	assert.Equal(t, "Alice", img.UserName)

	_, err = rec.Next()
	assert.ErrorIs(t, err, diagnostics.ErrNoEvent)
}

func TestUpload_SetFallbackWritesBoth(t *testing.T) {
	docs := newSetOnlyDocs()
	o, _ := newTestOrchestrator(&fakeBlobs{}, docs)

	_, err := o.Upload(context.Background(), alice, pngFile("cat.png", 100), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, docs.count())
	assert.Equal(t, docs.writes["images/img1"], docs.writes["users/alice/images/img1"])
}

func TestUpload_ProfileFallbacks(t *testing.T) {
	docs := newSetOnlyDocs()
	o, _ := newTestOrchestrator(&fakeBlobs{}, docs)

	img, err := o.Upload(context.Background(), &model.Identity{UID: "bob"}, pngFile("a.png", 100), nil)
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", img.UserName)
	assert.Equal(t, "https://i.pravatar.cc/40?u=bob", img.UserPhotoURL)
}

func TestUpload_ReportsProgress(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeBlobs{reportProgress: true}, newSetOnlyDocs())

	var seen []int64
	_, err := o.Upload(context.Background(), alice, pngFile("a.png", 100), func(transferred, total int64) {
		seen = append(seen, transferred)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 100}, seen)
}

// The records in both collections of a real store must match exactly,
// server timestamp included.
func TestUpload_SQLiteStoreRecordsIdentical(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	o, _ := newTestOrchestrator(&fakeBlobs{}, store)
	_, err = o.Upload(context.Background(), alice, pngFile("a.png", 100), nil)
	require.NoError(t, err)

	global := make(chan docstore.Snapshot, 1)
	mine := make(chan docstore.Snapshot, 1)
	u1, err := store.Subscribe(docstore.Query{Collection: docstore.Global, Limit: 50}, func(s docstore.Snapshot) { global <- s })
	require.NoError(t, err)
	defer u1()
	u2, err := store.Subscribe(docstore.Query{Collection: docstore.UserImages("alice"), Limit: 20}, func(s docstore.Snapshot) { mine <- s })
	require.NoError(t, err)
	defer u2()

	g, m := <-global, <-mine
	require.Len(t, g.Images, 1)
	require.Len(t, m.Images, 1)
	assert.Equal(t, g.Images[0], m.Images[0])
	assert.Equal(t, "img1", g.Images[0].ID)
	assert.False(t, g.Images[0].CreatedAt.IsZero())
}

// =========================================================================
// FAILURES
// =========================================================================

func TestUpload_Unauthenticated(t *testing.T) {
	blobs := &fakeBlobs{}
	o, _ := newTestOrchestrator(blobs, newSetOnlyDocs())

	for _, id := range []*model.Identity{nil, {UID: ""}} {
		_, err := o.Upload(context.Background(), id, pngFile("a.png", 100), nil)
		assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	}
	assert.Zero(t, blobs.putCount())
}

func TestUpload_TooLargeNeverTouchesObjectStore(t *testing.T) {
	blobs := &fakeBlobs{}
	docs := newSetOnlyDocs()
	o, _ := newTestOrchestrator(blobs, docs)

	for _, size := range []int{5<<20 + 1, 6291456, 20 << 20} {
		_, err := o.Upload(context.Background(), alice, pngFile("big.png", size), nil)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	}
	assert.Zero(t, blobs.putCount())
	assert.Zero(t, docs.count())
}

func TestUpload_TransferErrorWritesNothing(t *testing.T) {
	docs := newSetOnlyDocs()
	o, rec := newTestOrchestrator(&fakeBlobs{putErr: errors.New("network unreachable")}, docs)

	_, err := o.Upload(context.Background(), alice, pngFile("a.png", 100), nil)

	assert.ErrorIs(t, err, apperror.ErrTransfer)
	assert.EqualError(t, err, "network unreachable")
	assert.Zero(t, docs.count())
	_, noEvent := rec.Next()
	assert.ErrorIs(t, noEvent, diagnostics.ErrNoEvent)
}

func TestUpload_DownloadURLErrorIsTransferError(t *testing.T) {
	docs := newSetOnlyDocs()
	o, _ := newTestOrchestrator(&fakeBlobs{urlErr: errors.New("presign failed")}, docs)

	_, err := o.Upload(context.Background(), alice, pngFile("a.png", 100), nil)
	assert.ErrorIs(t, err, apperror.ErrTransfer)
	assert.Zero(t, docs.count())
}

func TestUpload_PermissionDeniedIsPersistenceError(t *testing.T) {
	tests := []struct {
		name   string
		docs   docstore.Writer
		wantOp string
	}{
		{
			name:   "batch",
			docs:   &batchDocs{setOnlyDocs: newSetOnlyDocs(), err: docstore.ErrPermissionDenied},
			wantOp: OpBatch,
		},
		{
			name: "set",
			docs: func() docstore.Writer {
				d := newSetOnlyDocs()
				d.fail[docstore.UserImages("alice")] = docstore.ErrPermissionDenied
				return d
			}(),
			wantOp: OpSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, rec := newTestOrchestrator(&fakeBlobs{}, tt.docs)

			_, err := o.Upload(context.Background(), alice, pngFile("a.png", 100), nil)

			require.ErrorIs(t, err, apperror.ErrPersistence)
			assert.ErrorIs(t, err, docstore.ErrPermissionDenied)
			assert.Equal(t, "file stored, metadata not saved", err.Error())

			ev, recErr := rec.Next()
			require.NoError(t, recErr)
			assert.Equal(t, diagnostics.KindOrphanedBlob, ev.Kind)
			assert.Equal(t, tt.wantOp, ev.Operation)
			assert.Equal(t, []string{"images/img1", "users/alice/images/img1"}, ev.DocPaths)
			assert.True(t, strings.HasPrefix(ev.BlobPath, "images/alice/"))
			assert.Contains(t, ev.Error, "permission denied")
		})
	}
}

func TestUpload_MalformedRecordIsNeverWritten(t *testing.T) {
	docs := &batchDocs{setOnlyDocs: newSetOnlyDocs()}
	o, rec := newTestOrchestrator(&fakeBlobs{url: "not a url"}, docs)

	_, err := o.Upload(context.Background(), alice, pngFile("a.png", 100), nil)

	require.ErrorIs(t, err, apperror.ErrPersistence)
	assert.Zero(t, docs.batches)
	assert.Zero(t, docs.count())

	ev, recErr := rec.Next()
	require.NoError(t, recErr)
	assert.Contains(t, ev.Error, "malformed record")
}
