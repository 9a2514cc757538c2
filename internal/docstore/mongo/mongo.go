// Package mongo is a document store backed by MongoDB.
//
// All documents live in one MongoDB collection, "documents". The document
// path is the _id ("images/<id>", "users/<uid>/images/<id>") and the
// collection path is stored alongside it for querying. Batches run in a
// multi-document transaction, so the server must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

var _ docstore.Store = (*Store)(nil)

const documentsCollection = "documents"

// Store implements docstore.Store.
type Store struct {
	client *mongo.Client
	docs   *mongo.Collection
	clock  *docstore.Clock
	hub    *docstore.Hub
	logger *slog.Logger

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

type document struct {
	Key          string    `bson:"_id"`
	Collection   string    `bson:"collection"`
	ID           string    `bson:"id"`
	URL          string    `bson:"url"`
	UserID       string    `bson:"userId"`
	UserName     string    `bson:"userName"`
	UserPhotoURL string    `bson:"userPhotoURL"`
	AIHint       string    `bson:"aiHint,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func toDocument(w docstore.Write, ts time.Time) document {
	return document{
		Key:          w.DocPath(),
		Collection:   string(w.Collection),
		ID:           w.ID,
		URL:          w.Image.URL,
		UserID:       w.Image.UserID,
		UserName:     w.Image.UserName,
		UserPhotoURL: w.Image.UserPhotoURL,
		AIHint:       w.Image.AIHint,
		CreatedAt:    ts,
	}
}

func (d document) image() model.Image {
	return model.Image{
		ID:           d.ID,
		URL:          d.URL,
		UserID:       d.UserID,
		UserName:     d.UserName,
		UserPhotoURL: d.UserPhotoURL,
		AIHint:       d.AIHint,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// collectionOf returns the collection path of a document _id.
func collectionOf(key string) docstore.Path {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return ""
	}
	return docstore.Path(key[:i])
}

// Open connects to uri, ensures the query index exists and starts the
// change stream watcher that drives live queries.
func Open(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("docstore/mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("docstore/mongo: pinging: %w", err)
	}

	docs := client.Database(database).Collection(documentsCollection)
	_, err = docs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("docstore/mongo: creating index: %w", err)
	}

	s := &Store{
		client:    client,
		docs:      docs,
		clock:     docstore.NewClock(nil),
		logger:    logger,
		watchDone: make(chan struct{}),
	}
	s.hub = docstore.NewHub(s.query)

	watchCtx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	go s.watch(watchCtx)

	return s, nil
}

// watch forwards change stream events to the hub so writes made by other
// server instances reach local subscribers too. Local writes notify the
// hub directly, so a server without change streams still works for a
// single instance.
func (s *Store) watch(ctx context.Context) {
	defer close(s.watchDone)

	stream, err := s.docs.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("change streams unavailable, live queries see local writes only",
				slog.String("error", err.Error()),
			)
		}
		return
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event struct {
			DocumentKey struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&event); err != nil {
			s.logger.Error("decoding change event", slog.String("error", err.Error()))
			continue
		}
		s.hub.Notify(collectionOf(event.DocumentKey.ID))
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		s.logger.Error("change stream ended", slog.String("error", err.Error()))
	}
}

// Close stops live queries and disconnects.
func (s *Store) Close() error {
	s.hub.Close()
	s.stopWatch()
	<-s.watchDone
	return s.client.Disconnect(context.Background())
}

// Set replaces (or inserts) one document.
func (s *Store) Set(ctx context.Context, auth string, w docstore.Write) error {
	if err := docstore.Authorize(auth, w); err != nil {
		return err
	}

	err := s.clock.Commit(func(ts time.Time) error {
		doc := toDocument(w, ts)
		_, err := s.docs.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return fmt.Errorf("docstore/mongo: writing %s: %w", w.DocPath(), err)
	}

	s.hub.Notify(w.Collection)
	return nil
}

// Batch writes all documents inside one transaction.
func (s *Store) Batch(ctx context.Context, auth string, writes []docstore.Write) error {
	if err := docstore.AuthorizeAll(auth, writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("docstore/mongo: starting session: %w", err)
	}
	defer session.EndSession(context.Background())

	// The transaction may retry; every attempt reuses the same stamp and
	// all of them run inside Commit.
	err = s.clock.Commit(func(ts time.Time) error {
		_, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			for _, w := range writes {
				doc := toDocument(w, ts)
				_, err := s.docs.ReplaceOne(sc, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
				if err != nil {
					return nil, fmt.Errorf("writing %s: %w", w.DocPath(), err)
				}
			}
			return nil, nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("docstore/mongo: batch: %w", err)
	}

	for _, w := range writes {
		s.hub.Notify(w.Collection)
	}
	return nil
}

// Subscribe starts a live query. See docstore.Hub.
func (s *Store) Subscribe(q docstore.Query, fn func(docstore.Snapshot)) (docstore.Unsubscribe, error) {
	return s.hub.Subscribe(q, fn)
}

func (s *Store) query(ctx context.Context, q docstore.Query) ([]model.Image, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.docs.Find(ctx, bson.M{"collection": string(q.Collection)}, opts)
	if err != nil {
		return nil, fmt.Errorf("docstore/mongo: querying %s: %w", q.Collection, err)
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("docstore/mongo: reading %s: %w", q.Collection, err)
	}

	images := make([]model.Image, 0, len(docs))
	for _, d := range docs {
		images = append(images, d.image())
	}
	return images, nil
}
