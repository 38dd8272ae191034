// Package audit persists and queries the durable record of every
// write-path mutation, independent of the relational system of record.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

// Config configures the Mongo connection backing the audit store.
type Config struct {
	URI                    string
	Database               string
	Collection             string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

// Store wraps the audit collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials Mongo and ensures the collection's indexes exist.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	s := &Store{client: client, collection: collection}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromCollection wraps an already-connected collection (used by
// integration tests against a live or containerized Mongo instance).
func NewFromCollection(client *mongo.Client, collection *mongo.Collection) *Store {
	return &Store{client: client, collection: collection}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenant", Value: 1}, {Key: "service", Value: 1}, {Key: "environment", Value: 1}, {Key: "version", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "occurred_at", Value: -1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Insert persists a single audit document. A duplicate event_id is treated
// as a successful no-op: the audit consumer may observe the same message
// more than once under at-least-once delivery.
func (s *Store) Insert(ctx context.Context, doc domain.AuditDocument) error {
	_, err := s.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// RouteHistory returns every audit document for a single route coordinate,
// most recent first.
func (s *Store) RouteHistory(ctx context.Context, key domain.Key, limit int64) ([]domain.AuditDocument, error) {
	filter := bson.D{
		{Key: "tenant", Value: key.Tenant}, {Key: "service", Value: key.Service},
		{Key: "environment", Value: key.Environment}, {Key: "version", Value: key.Version},
	}
	return s.find(ctx, filter, limit)
}

// Recent returns the most recent audit documents across all routes.
func (s *Store) Recent(ctx context.Context, limit int64) ([]domain.AuditDocument, error) {
	return s.find(ctx, bson.D{}, limit)
}

// ByAction returns the most recent audit documents for a given action.
func (s *Store) ByAction(ctx context.Context, action domain.Action, limit int64) ([]domain.AuditDocument, error) {
	return s.find(ctx, bson.D{{Key: "action", Value: action}}, limit)
}

// TimeRange returns audit documents whose occurred_at falls within
// [from, to), most recent first.
func (s *Store) TimeRange(ctx context.Context, from, to time.Time, limit int64) ([]domain.AuditDocument, error) {
	filter := bson.D{{Key: "occurred_at", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lt", Value: to}}}}
	return s.find(ctx, filter, limit)
}

func (s *Store) find(ctx context.Context, filter bson.D, limit int64) ([]domain.AuditDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []domain.AuditDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Ping reports whether the Mongo deployment is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
