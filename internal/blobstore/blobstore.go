// Package blobstore stores uploaded image bytes and resolves a URL the
// browser can load them from.
package blobstore

import (
	"context"
	"io"
)

// ProgressFunc receives upload progress. total is the expected size in
// bytes; transferred never exceeds it.
type ProgressFunc func(transferred, total int64)

// Handle identifies a stored blob.
type Handle struct {
	Path        string
	Size        int64
	ContentType string
	ETag        string

	// inline is the data URI for blobs kept by Inline.
	inline string
}

// Store is an object store.
//
// Put is the long-running step of an upload. Implementations that can
// measure progress call progress as bytes go out; those that cannot never
// call it at all, and callers must treat that as "busy, progress unknown".
type Store interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) (Handle, error)
	DownloadURL(ctx context.Context, h Handle) (string, error)
}
