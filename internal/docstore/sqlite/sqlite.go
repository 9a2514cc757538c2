// Package sqlite is a document store backed by a single SQLite file.
//
// Both collections share one "documents" table keyed by (collection, id).
// Live queries are driven in-process: every successful commit notifies the
// docstore.Hub, which re-runs the affected subscriptions. That only works
// when this process is the sole writer, which is how the server runs it.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

var _ docstore.Store = (*Store)(nil)

// Store implements docstore.Store.
type Store struct {
	conn  *sqlx.DB
	clock *docstore.Clock
	hub   *docstore.Hub
}

// row is the table layout of one document.
type row struct {
	Collection   string `db:"collection"`
	ID           string `db:"id"`
	URL          string `db:"url"`
	UserID       string `db:"user_id"`
	UserName     string `db:"user_name"`
	UserPhotoURL string `db:"user_photo_url"`
	AIHint       string `db:"ai_hint"`
	CreatedAt    int64  `db:"created_at"` // unix milliseconds
}

func toRow(w docstore.Write, ts time.Time) row {
	return row{
		Collection:   string(w.Collection),
		ID:           w.ID,
		URL:          w.Image.URL,
		UserID:       w.Image.UserID,
		UserName:     w.Image.UserName,
		UserPhotoURL: w.Image.UserPhotoURL,
		AIHint:       w.Image.AIHint,
		CreatedAt:    ts.UnixMilli(),
	}
}

func (r row) image() model.Image {
	return model.Image{
		ID:           r.ID,
		URL:          r.URL,
		UserID:       r.UserID,
		UserName:     r.UserName,
		UserPhotoURL: r.UserPhotoURL,
		AIHint:       r.AIHint,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// Open opens (or creates) the database at path and runs migrations.
// ":memory:" gives a throwaway database for tests.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("docstore/sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty
	// database, so pin the pool to a single connection there.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore/sqlite: pinging database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore/sqlite: setting WAL mode: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore/sqlite: running migrations: %w", err)
	}

	return newStore(conn, docstore.NewClock(nil)), nil
}

func newStore(conn *sqlx.DB, clock *docstore.Clock) *Store {
	s := &Store{conn: conn, clock: clock}
	s.hub = docstore.NewHub(s.query)
	return s
}

func migrate(conn *sqlx.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection     TEXT NOT NULL,
			id             TEXT NOT NULL,
			url            TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			user_name      TEXT NOT NULL DEFAULT '',
			user_photo_url TEXT NOT NULL DEFAULT '',
			ai_hint        TEXT NOT NULL DEFAULT '',
			created_at     INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection_created
			ON documents(collection, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Close stops all live queries and closes the database.
func (s *Store) Close() error {
	s.hub.Close()
	return s.conn.Close()
}

const upsertSQL = `
	INSERT INTO documents (collection, id, url, user_id, user_name, user_photo_url, ai_hint, created_at)
	VALUES (:collection, :id, :url, :user_id, :user_name, :user_photo_url, :ai_hint, :created_at)
	ON CONFLICT(collection, id) DO UPDATE SET
		url = excluded.url,
		user_id = excluded.user_id,
		user_name = excluded.user_name,
		user_photo_url = excluded.user_photo_url,
		ai_hint = excluded.ai_hint,
		created_at = excluded.created_at`

// Set writes one document, overwriting any existing one with the same key.
func (s *Store) Set(ctx context.Context, auth string, w docstore.Write) error {
	if err := docstore.Authorize(auth, w); err != nil {
		return err
	}

	err := s.clock.Commit(func(ts time.Time) error {
		_, err := s.conn.NamedExecContext(ctx, upsertSQL, toRow(w, ts))
		return err
	})
	if err != nil {
		return fmt.Errorf("docstore/sqlite: writing %s: %w", w.DocPath(), err)
	}

	s.hub.Notify(w.Collection)
	return nil
}

// Batch writes all documents in one transaction with one shared timestamp.
func (s *Store) Batch(ctx context.Context, auth string, writes []docstore.Write) error {
	if err := docstore.AuthorizeAll(auth, writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	err := s.clock.Commit(func(ts time.Time) error {
		return s.commitBatch(ctx, writes, ts)
	})
	if err != nil {
		return err
	}

	for _, w := range writes {
		s.hub.Notify(w.Collection)
	}
	return nil
}

func (s *Store) commitBatch(ctx context.Context, writes []docstore.Write, ts time.Time) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore/sqlite: beginning batch: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	for _, w := range writes {
		if _, err := tx.NamedExecContext(ctx, upsertSQL, toRow(w, ts)); err != nil {
			return fmt.Errorf("docstore/sqlite: writing %s: %w", w.DocPath(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore/sqlite: committing batch: %w", err)
	}
	return nil
}

// Subscribe starts a live query. See docstore.Hub.
func (s *Store) Subscribe(q docstore.Query, fn func(docstore.Snapshot)) (docstore.Unsubscribe, error) {
	return s.hub.Subscribe(q, fn)
}

func (s *Store) query(ctx context.Context, q docstore.Query) ([]model.Image, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	var rows []row
	err := s.conn.SelectContext(ctx, &rows,
		`SELECT collection, id, url, user_id, user_name, user_photo_url, ai_hint, created_at
		 FROM documents
		 WHERE collection = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		string(q.Collection), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("docstore/sqlite: querying %s: %w", q.Collection, err)
	}

	images := make([]model.Image, 0, len(rows))
	for _, r := range rows {
		images = append(images, r.image())
	}
	return images, nil
}
