package upload

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Dhrumilshah777/imageDrop/internal/blobstore"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// =========================================================================
// FAKE COLLABORATORS
// =========================================================================

// fakeBlobs records Put calls. When reportProgress is set it reports two
// halves of the body; when gate is non-nil Put waits on it first.
type fakeBlobs struct {
	mu             sync.Mutex
	puts           []string
	putErr         error
	urlErr         error
	url            string
	reportProgress bool
	gate           chan struct{}
}

func (f *fakeBlobs) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress blobstore.ProgressFunc) (blobstore.Handle, error) {
	f.mu.Lock()
	f.puts = append(f.puts, path)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.putErr != nil {
		return blobstore.Handle{}, f.putErr
	}
	if _, err := io.ReadAll(r); err != nil {
		return blobstore.Handle{}, err
	}
	if f.reportProgress && progress != nil {
		progress(size/2, size)
		progress(size, size)
	}
	return blobstore.Handle{Path: path, Size: size, ContentType: contentType}, nil
}

func (f *fakeBlobs) DownloadURL(_ context.Context, h blobstore.Handle) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://cdn.test/" + h.Path, nil
}

func (f *fakeBlobs) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

// setOnlyDocs is a document store without a batch primitive. Writes to a
// collection listed in fail are rejected with err.
type setOnlyDocs struct {
	mu     sync.Mutex
	writes map[string]model.Image
	fail   map[docstore.Path]error
}

func newSetOnlyDocs() *setOnlyDocs {
	return &setOnlyDocs{writes: map[string]model.Image{}, fail: map[docstore.Path]error{}}
}

func (d *setOnlyDocs) Set(_ context.Context, auth string, w docstore.Write) error {
	if err := docstore.Authorize(auth, w); err != nil {
		return err
	}
	if err := d.fail[w.Collection]; err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes[w.DocPath()] = w.Image
	return nil
}

func (d *setOnlyDocs) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

// batchDocs adds an all-or-nothing Batch on top of setOnlyDocs.
type batchDocs struct {
	*setOnlyDocs
	batches int
	err     error
}

func (d *batchDocs) Batch(ctx context.Context, auth string, writes []docstore.Write) error {
	d.batches++
	if d.err != nil {
		return d.err
	}
	if err := docstore.AuthorizeAll(auth, writes); err != nil {
		return err
	}
	for _, w := range writes {
		if err := d.Set(ctx, auth, w); err != nil {
			return err
		}
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// pngHeader is enough for content sniffing to say image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func pngFile(name string, size int) model.LocalFile {
	data := make([]byte, size)
	copy(data, pngHeader)
	return model.LocalFile{Name: name, DeclaredType: "image/png", Size: int64(size), Data: data}
}

var alice = &model.Identity{UID: "alice", DisplayName: "Alice", PhotoURL: "https://example.com/alice.png"}
