// Package upload moves a selected image from the user's machine into the
// object store and records it in the document store.
//
// An upload runs in a fixed order:
//
//  1. validate the file (no network calls on failure)
//  2. transfer the bytes to the object store
//  3. resolve a download URL
//  4. write the same record, under one fresh id, to the global feed and to
//     the uploader's own collection
//
// A failure in step 2 or 3 leaves nothing behind. A failure in step 4
// leaves an orphaned blob, which is reported to diagnostics.
//
// WHY TWO RECORDS FOR ONE IMAGE?
// The feed reads two lists: everyone's recent uploads ("images") and the
// signed-in user's own recent uploads ("users/{uid}/images"). Keeping a
// copy in each collection lets both be a single indexed query, with no
// filtering by user inside the global list. The price is that the two
// copies must stay identical: same id, same fields, same timestamp. That
// is why step 4 uses one id and, where the store allows it, one atomic
// batch.
//
// WHY IS AN ORPHANED BLOB REPORTED AND NOT DELETED?
// When step 4 fails the bytes are already in the object store. Deleting
// them is another network call that can fail for the same reason the
// write did (the store is down, the network is gone). Instead the
// orchestrator returns a PersistenceError to the user and sends a
// diagnostics.Event naming the blob path and the document paths it tried
// to write. Whoever reads the diagnostics channel can clean up or re-link.
//
// THE TWO LAYERS IN THIS PACKAGE:
//
//	Orchestrator  → one upload, start to finish, no state between calls
//	Session       → what one user has selected, whether it is uploading,
//	                and the last notice shown to them
//
// The HTTP handlers only talk to Session (through Manager). Session calls
// the Orchestrator through the Uploader interface, so session tests can
// swap in a fake.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/blobstore"
	"github.com/Dhrumilshah777/imageDrop/internal/diagnostics"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// records checks the validate tags on model.Image before anything is written.
var records = validator.New()

// Operation kinds reported in diagnostics events.
const (
	OpBatch = "batch"
	OpSet   = "set"
)

// Orchestrator runs uploads. It is safe for concurrent use.
type Orchestrator struct {
	blobs    blobstore.Store
	docs     docstore.Writer
	reporter diagnostics.Reporter
	logger   *slog.Logger
	maxSize  int64

	now   func() time.Time
	newID func() string
}

// NewOrchestrator wires an Orchestrator. If docs also implements
// docstore.Batcher the two record writes are committed atomically;
// otherwise they are issued concurrently as two independent writes.
func NewOrchestrator(blobs blobstore.Store, docs docstore.Writer, reporter diagnostics.Reporter, logger *slog.Logger, maxSize int64) *Orchestrator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Orchestrator{
		blobs:    blobs,
		docs:     docs,
		reporter: reporter,
		logger:   logger,
		maxSize:  maxSize,
		now:      time.Now,
		newID:    func() string { return xid.New().String() },
	}
}

// MaxFileSize returns the configured size limit.
func (o *Orchestrator) MaxFileSize() int64 {
	return o.maxSize
}

// BlobPath builds the object store path for a file: images/{uid}/{nanos}_{name}.
// Only the base name of the original file is kept.
func BlobPath(uid string, at time.Time, filename string) string {
	name := path.Base("/" + strings.ReplaceAll(filename, `\`, "/"))
	if name == "/" {
		name = "upload"
	}
	return fmt.Sprintf("images/%s/%d_%s", uid, at.UnixNano(), name)
}

// Upload stores file for the given identity and returns the record that was
// written. progress may be nil.
func (o *Orchestrator) Upload(ctx context.Context, identity *model.Identity, file model.LocalFile, progress blobstore.ProgressFunc) (model.Image, error) {
	if identity == nil || identity.UID == "" {
		return model.Image{}, apperror.Unauthenticated("sign in to upload images")
	}
	uid := identity.UID

	contentType, err := Validate(file, o.maxSize)
	if err != nil {
		return model.Image{}, err
	}

	blobPath := BlobPath(uid, o.now(), file.Name)
	handle, err := o.blobs.Put(ctx, blobPath, bytes.NewReader(file.Data), int64(len(file.Data)), contentType, progress)
	if err != nil {
		o.logger.Warn("blob transfer failed",
			slog.String("user_id", uid),
			slog.String("blob_path", blobPath),
			slog.String("error", err.Error()),
		)
		return model.Image{}, apperror.TransferFailed(err)
	}

	url, err := o.blobs.DownloadURL(ctx, handle)
	if err != nil {
		o.logger.Warn("resolving download url failed",
			slog.String("user_id", uid),
			slog.String("blob_path", blobPath),
			slog.String("error", err.Error()),
		)
		return model.Image{}, apperror.TransferFailed(err)
	}

	id := o.newID()
	img := model.Image{
		ID:           id,
		URL:          url,
		UserID:       uid,
		UserName:     identity.DisplayName,
		UserPhotoURL: identity.PhotoURL,
	}
	if img.UserName == "" {
		img.UserName = model.AnonymousName
	}
	if img.UserPhotoURL == "" {
		img.UserPhotoURL = model.FallbackAvatarURL(uid)
	}

	writes := []docstore.Write{
		{Collection: docstore.Global, ID: id, Image: img},
		{Collection: docstore.UserImages(uid), ID: id, Image: img},
	}

	op, err := o.persist(ctx, uid, writes)
	if err != nil {
		docPaths := make([]string, len(writes))
		for i, w := range writes {
			docPaths[i] = w.DocPath()
		}
		o.reporter.Report(ctx, diagnostics.Event{
			Kind:      diagnostics.KindOrphanedBlob,
			UserID:    uid,
			BlobPath:  blobPath,
			DocPaths:  docPaths,
			Operation: op,
			Error:     err.Error(),
			At:        o.now().UTC(),
		})
		return model.Image{}, apperror.PersistenceFailed(err)
	}

	o.logger.Info("image uploaded",
		slog.String("id", id),
		slog.String("user_id", uid),
		slog.String("blob_path", blobPath),
		slog.Int64("size", handle.Size),
	)
	return img, nil
}

// persist writes both records and returns which kind of operation it used.
//
// VALIDATE BEFORE WRITING:
// A record that would fail the model.Image validate tags (no id, a URL
// that is neither a URL nor a data URI) is refused here, before either
// copy is written. Half a malformed pair in the feed is worse than none,
// and the caller treats the refusal like any other write failure: the
// blob is reported as orphaned.
//
// BATCH OR TWO SETS:
//
//	docs implements Batcher → one atomic commit, all or nothing
//	docs is a plain Writer  → two concurrent Sets, both must succeed
//
// In the second case a failure can leave one copy behind. errors.Join
// keeps both errors so the diagnostics event shows which write failed.
func (o *Orchestrator) persist(ctx context.Context, auth string, writes []docstore.Write) (string, error) {
	b, batched := o.docs.(docstore.Batcher)
	op := OpSet
	if batched {
		op = OpBatch
	}
	for _, w := range writes {
		if err := records.Struct(w.Image); err != nil {
			return op, fmt.Errorf("upload: malformed record %s: %w", w.DocPath(), err)
		}
	}
	if batched {
		return op, b.Batch(ctx, auth, writes)
	}

	// No atomic primitive: issue both writes together and require both.
	// There is no rollback of a write that did succeed.
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(writes))
	)
	for i, w := range writes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = o.docs.Set(ctx, auth, w)
		}()
	}
	wg.Wait()
	return OpSet, errors.Join(errs...)
}
