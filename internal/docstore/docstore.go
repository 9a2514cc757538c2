// Package docstore defines the document store the upload pipeline writes
// image records to and the feed reads them back from.
//
// Two collections exist: the global feed "images" and the per-user mirror
// "users/{uid}/images". Every record in the global collection has an
// identically keyed copy in its uploader's mirror.
//
// The store owns three behaviours callers must not re-implement:
//   - timestamps are assigned by the store, never by the caller
//   - ownership rules are enforced on every write (see Authorize)
//   - live queries push a fresh snapshot after every relevant commit
//
// WHY AN INTERFACE WITH TWO BACKENDS?
// The upload pipeline and the feed only need four operations: Set, Batch,
// Subscribe and Close. Everything else (SQL, BSON, change streams) stays
// inside a backend package:
//
//	docstore/sqlite → single file, in-process live queries, the default
//	docstore/mongo  → replica set, change streams, for several servers
//
// main.go picks one from DOCSTORE_DRIVER. Tests use the SQLite backend
// with ":memory:", or fakes that implement only Writer or Subscriber.
//
// THE SMALLER INTERFACES:
// Callers accept only what they use. The orchestrator takes a Writer and
// checks at runtime whether it is also a Batcher. The feed takes a
// Subscriber. A backend only has to satisfy Store to be wired in main.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

var (
	// ErrPermissionDenied is returned when a write violates the ownership rules.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidQuery is delivered when a live query cannot be served, for
	// example because the collection path does not exist.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("docstore: closed")
)

// Path is a collection path such as "images" or "users/abc/images".
type Path string

// Global is the shared feed collection.
const Global Path = "images"

// UserImages returns the per-user mirror collection for uid.
func UserImages(uid string) Path {
	return Path("users/" + uid + "/images")
}

// ParsePath validates p and returns the owning uid. The global collection
// has no owner and returns "".
func ParsePath(p Path) (string, error) {
	if p == Global {
		return "", nil
	}
	parts := strings.Split(string(p), "/")
	if len(parts) == 3 && parts[0] == "users" && parts[1] != "" && parts[2] == "images" {
		return parts[1], nil
	}
	return "", fmt.Errorf("unknown collection %q", p)
}

// Write is one document write. ID is the document key; Image.CreatedAt is
// ignored and replaced with the store's timestamp.
type Write struct {
	Collection Path
	ID         string
	Image      model.Image
}

// DocPath returns the full document path, e.g. "images/abc".
func (w Write) DocPath() string {
	return string(w.Collection) + "/" + w.ID
}

// Query selects the newest Limit records in Collection, ordered by
// createdAt descending. Limit <= 0 means no limit.
type Query struct {
	Collection Path
	Limit      int
}

// Snapshot is one delivery from a live query. Err is terminal: no further
// snapshots follow it.
type Snapshot struct {
	Images  []model.Image
	Loading bool
	Err     error
}

// Unsubscribe stops a live query. It is idempotent.
type Unsubscribe func()

// Writer stores single documents.
type Writer interface {
	Set(ctx context.Context, auth string, w Write) error
}

// Batcher commits several writes atomically: either all become visible or
// none do. Every document in the batch gets the same timestamp.
type Batcher interface {
	Batch(ctx context.Context, auth string, writes []Write) error
}

// Subscriber serves live queries.
type Subscriber interface {
	Subscribe(q Query, fn func(Snapshot)) (Unsubscribe, error)
}

// Store is a complete document store backend.
type Store interface {
	Writer
	Batcher
	Subscriber
	Close() error
}
