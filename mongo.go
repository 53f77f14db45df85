package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the store client surface a repository needs for one collection.
type Collection interface {
	Name() string
	// Registry is the codec registry the collection encodes documents with.
	Registry() *bsoncodec.Registry
	InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error)
	ReplaceOne(ctx context.Context, filter, replacement any, upsert bool) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update any) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any) (*mongo.DeleteResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, ordered bool) (*mongo.BulkWriteResult, error)
	CountDocuments(ctx context.Context, filter any) (int64, error)
	Find(ctx context.Context, filter any, opts *mongoOptions.FindOptions) (*mongo.Cursor, error)
	CreateIndexes(ctx context.Context, indexes []mongo.IndexModel) ([]string, error)
}

type mongoCollection struct {
	collection *mongo.Collection
	registry   *bsoncodec.Registry
	timeout    time.Duration
}

// NewCollection adapts a driver collection. reg must be the registry the collection's
// client was configured with; timeout bounds each call whose context has no deadline.
func NewCollection(coll *mongo.Collection, reg *bsoncodec.Registry, timeout time.Duration) Collection {
	if reg == nil {
		reg = bson.DefaultRegistry
	}
	return &mongoCollection{collection: coll, registry: reg, timeout: timeout}
}

func (m *mongoCollection) Name() string {
	return m.collection.Database().Name() + "." + m.collection.Name()
}

func (m *mongoCollection) Registry() *bsoncodec.Registry {
	return m.registry
}

func (m *mongoCollection) InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	res, err := m.collection.InsertOne(ctx, document)
	return res, wrapMongoError(err)
}

func (m *mongoCollection) InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	res, err := m.collection.InsertMany(ctx, documents)
	return res, wrapMongoError(err)
}

func (m *mongoCollection) ReplaceOne(ctx context.Context, filter, replacement any, upsert bool) (*mongo.UpdateResult, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	res, err := m.collection.ReplaceOne(ctx, filter, replacement, mongoOptions.Replace().SetUpsert(upsert))
	return res, wrapMongoError(err)
}

func (m *mongoCollection) UpdateMany(ctx context.Context, filter, update any) (*mongo.UpdateResult, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	res, err := m.collection.UpdateMany(ctx, filter, update)
	return res, wrapMongoError(err)
}

func (m *mongoCollection) DeleteOne(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	res, err := m.collection.DeleteOne(ctx, filter)
	return res, wrapMongoError(err)
}

func (m *mongoCollection) DeleteMany(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	res, err := m.collection.DeleteMany(ctx, filter)
	return res, wrapMongoError(err)
}

func (m *mongoCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, ordered bool) (*mongo.BulkWriteResult, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	res, err := m.collection.BulkWrite(ctx, models, mongoOptions.BulkWrite().SetOrdered(ordered))
	return res, wrapMongoError(err)
}

func (m *mongoCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	n, err := m.collection.CountDocuments(ctx, filter)
	return n, wrapMongoError(err)
}

// Find is not bounded by the operation timeout: the returned cursor keeps using ctx.
func (m *mongoCollection) Find(ctx context.Context, filter any, opts *mongoOptions.FindOptions) (*mongo.Cursor, error) {
	if opts == nil {
		opts = mongoOptions.Find()
	}
	cur, err := m.collection.Find(ctx, filter, opts)
	return cur, wrapMongoError(err)
}

func (m *mongoCollection) CreateIndexes(ctx context.Context, indexes []mongo.IndexModel) ([]string, error) {
	ctx, cancel := m.withOperationTimeout(ctx)
	defer cancel()

	names, err := m.collection.Indexes().CreateMany(ctx, indexes)
	return names, wrapMongoError(err)
}

func (m *mongoCollection) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

// wrapMongoError marks driver errors with the package sentinels while keeping the
// driver error in the chain.
func wrapMongoError(err error) error {
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", ErrKeyAlreadyExists, err)
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", ErrKeynotFound, err)
	}

	return err
}
