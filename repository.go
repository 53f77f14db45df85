package docstore

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/likearthian/docstore/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

// Repository gives generic data access to the collection of entity type T. Filters and
// updates are templates in either dialect understood by package query.
type Repository[T any] interface {
	Entity() *Entity
	Collection() Collection

	Persist(ctx context.Context, entity T) error
	PersistAll(ctx context.Context, entities ...T) error
	PersistSeq(ctx context.Context, entities iter.Seq[T]) error
	Update(ctx context.Context, entity T) error
	UpdateAll(ctx context.Context, entities ...T) error
	UpdateSeq(ctx context.Context, entities iter.Seq[T]) error
	PersistOrUpdate(ctx context.Context, entity T) error
	PersistOrUpdateAll(ctx context.Context, entities ...T) error
	PersistOrUpdateSeq(ctx context.Context, entities iter.Seq[T]) error
	Delete(ctx context.Context, entity T) error

	Find(filter string, params query.Params, options ...QueryOption) (*Query[T], error)
	FindDocument(filter any, options ...QueryOption) *Query[T]
	FindAll(options ...QueryOption) *Query[T]
	FindByID(ctx context.Context, id any) (*T, error)
	List(ctx context.Context, filter string, params query.Params, options ...QueryOption) ([]T, error)
	ListAll(ctx context.Context, options ...QueryOption) ([]T, error)
	Stream(ctx context.Context, filter string, params query.Params, options ...QueryOption) iter.Seq2[T, error]
	StreamAll(ctx context.Context, options ...QueryOption) iter.Seq2[T, error]
	Count(ctx context.Context, filter string, params query.Params) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	CountDocument(ctx context.Context, filter any) (int64, error)
	DeleteWhere(ctx context.Context, filter string, params query.Params) (int64, error)
	DeleteDocument(ctx context.Context, filter any) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteByID(ctx context.Context, id any) (bool, error)
	UpdateFields(update string, params query.Params) (*Update[T], error)

	EnsureIndexes(ctx context.Context) error
}

type repository[T any] struct {
	entity     *Entity
	collection Collection
	translator query.Translator
	logger     Logger
}

// NewRepository describes T and resolves its collection once; every call of the
// returned repository works on that collection.
func NewRepository[T any](resolver Resolver, options ...RepositoryOption) (Repository[T], error) {
	opt := &option{logger: NopLogger()}
	for _, op := range options {
		op(opt)
	}

	entity := Describe[T](opt.entity...)
	coll, err := resolver.Collection(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collection of %s: %w", entity.Type, err)
	}

	logger := opt.logger.With("collection", coll.Name())
	repo := &repository[T]{
		entity:     entity,
		collection: coll,
		logger:     logger,
		translator: query.Translator{
			Fields: entity,
			Debug:  logger.Debug,
		},
	}

	if opt.initValues != nil {
		if err := repo.init(opt.initValues); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (r *repository[T]) init(values any) error {
	seed, ok := values.([]T)
	if !ok {
		var model T
		return fmt.Errorf("values to init should be []%s, got %s", reflect.TypeOf(&model).Elem(), reflect.TypeOf(values))
	}

	return r.PersistOrUpdateAll(context.Background(), seed...)
}

func (r *repository[T]) Entity() *Entity {
	return r.entity
}

func (r *repository[T]) Collection() Collection {
	return r.collection
}

func (r *repository[T]) Find(filter string, params query.Params, options ...QueryOption) (*Query[T], error) {
	doc, err := r.translator.Filter(filter, params)
	if err != nil {
		return nil, err
	}

	return r.FindDocument(doc, options...), nil
}

func (r *repository[T]) FindDocument(filter any, options ...QueryOption) *Query[T] {
	opt := applyQueryOptions(options)
	return newQuery[T](r.collection, filter, opt.sort)
}

func (r *repository[T]) FindAll(options ...QueryOption) *Query[T] {
	return r.FindDocument(nil, options...)
}

// FindByID returns nil when no document has the given identity.
func (r *repository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return r.FindDocument(idFilter(id)).FirstResult(ctx)
}

func (r *repository[T]) List(ctx context.Context, filter string, params query.Params, options ...QueryOption) ([]T, error) {
	q, err := r.Find(filter, params, options...)
	if err != nil {
		return nil, err
	}
	return q.List(ctx)
}

func (r *repository[T]) ListAll(ctx context.Context, options ...QueryOption) ([]T, error) {
	return r.FindAll(options...).List(ctx)
}

// Stream yields the translation error, if any, as its only element.
func (r *repository[T]) Stream(ctx context.Context, filter string, params query.Params, options ...QueryOption) iter.Seq2[T, error] {
	q, err := r.Find(filter, params, options...)
	if err != nil {
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, err)
		}
	}
	return q.Stream(ctx)
}

func (r *repository[T]) StreamAll(ctx context.Context, options ...QueryOption) iter.Seq2[T, error] {
	return r.FindAll(options...).Stream(ctx)
}

func (r *repository[T]) Count(ctx context.Context, filter string, params query.Params) (int64, error) {
	doc, err := r.translator.Filter(filter, params)
	if err != nil {
		return 0, err
	}
	return r.collection.CountDocuments(ctx, doc)
}

func (r *repository[T]) CountAll(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.D{})
}

func (r *repository[T]) CountDocument(ctx context.Context, filter any) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	return r.collection.CountDocuments(ctx, filter)
}

func (r *repository[T]) DeleteWhere(ctx context.Context, filter string, params query.Params) (int64, error) {
	doc, err := r.translator.Filter(filter, params)
	if err != nil {
		return 0, err
	}

	res, err := r.collection.DeleteMany(ctx, doc)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteDocument deletes every document matching a prebuilt filter; nil matches all.
func (r *repository[T]) DeleteDocument(ctx context.Context, filter any) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}

	res, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *repository[T]) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *repository[T]) DeleteByID(ctx context.Context, id any) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func (r *repository[T]) UpdateFields(update string, params query.Params) (*Update[T], error) {
	doc, err := r.translator.Update(update, params)
	if err != nil {
		return nil, err
	}

	return &Update[T]{
		collection: r.collection,
		update:     doc,
		translator: r.translator,
	}, nil
}

// EnsureIndexes creates the indexes declared with WithIndex.
func (r *repository[T]) EnsureIndexes(ctx context.Context) error {
	if len(r.entity.Indexes) == 0 {
		return nil
	}

	models := Map(r.entity.Indexes, func(idx EntityIndex) mongo.IndexModel {
		keys := bson.D{}
		for _, field := range idx.Fields {
			if name, ok := r.entity.FieldName(field); ok {
				field = name
			}
			keys = append(keys, bson.E{Key: field, Value: 1})
		}
		opts := mongoOptions.Index().SetUnique(idx.Unique)
		if idx.Name != "" {
			opts.SetName(idx.Name)
		}
		return mongo.IndexModel{Keys: keys, Options: opts}
	})

	names, err := r.collection.CreateIndexes(ctx, models)
	if err != nil {
		return err
	}

	r.logger.Info("indexes ensured", "indexes", names)
	return nil
}
