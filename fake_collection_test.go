package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

var errInjected = errors.New("injected failure")

// fakeCollection keeps documents in insertion order and understands equality filters
// and $set updates.
type fakeCollection struct {
	mu       sync.Mutex
	name     string
	registry *bsoncodec.Registry
	docs     []bson.D

	calls       []string
	bulkModels  []mongo.WriteModel
	bulkOrdered bool
	lastFilter  any
	lastFind    *mongoOptions.FindOptions
	indexes     []mongo.IndexModel

	// failBulkAt makes the n-th (1-based) bulk element fail.
	failBulkAt int
	// failReplaceAt makes the n-th (1-based) ReplaceOne call fail.
	failReplaceAt int
	replaces      int
	err           error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{name: "test.items", registry: bson.DefaultRegistry}
}

func (f *fakeCollection) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeCollection) Name() string                  { return f.name }
func (f *fakeCollection) Registry() *bsoncodec.Registry { return f.registry }

func (f *fakeCollection) InsertOne(_ context.Context, document any) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("InsertOne"); err != nil {
		return nil, err
	}
	id, err := f.insert(document)
	if err != nil {
		return nil, err
	}
	return &mongo.InsertOneResult{InsertedID: id}, nil
}

func (f *fakeCollection) InsertMany(_ context.Context, documents []any) (*mongo.InsertManyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("InsertMany"); err != nil {
		return nil, err
	}
	res := &mongo.InsertManyResult{}
	for _, doc := range documents {
		id, err := f.insert(doc)
		if err != nil {
			return res, err
		}
		res.InsertedIDs = append(res.InsertedIDs, id)
	}
	return res, nil
}

func (f *fakeCollection) ReplaceOne(_ context.Context, filter, replacement any, upsert bool) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("ReplaceOne(upsert=%t)", upsert)); err != nil {
		return nil, err
	}
	f.replaces++
	if f.failReplaceAt == f.replaces {
		return nil, errInjected
	}
	f.lastFilter = filter
	return f.replace(filter, replacement, upsert)
}

func (f *fakeCollection) UpdateMany(_ context.Context, filter, update any) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("UpdateMany"); err != nil {
		return nil, err
	}
	f.lastFilter = filter

	set, _ := lookup(update.(bson.D), "$set")
	fields, _ := set.(bson.D)

	res := &mongo.UpdateResult{}
	for i, doc := range f.docs {
		if !matches(doc, filter) {
			continue
		}
		res.MatchedCount++
		updated := setFields(doc, fields)
		if !reflect.DeepEqual(updated, doc) {
			res.ModifiedCount++
			f.docs[i] = updated
		}
	}
	return res, nil
}

func (f *fakeCollection) DeleteOne(_ context.Context, filter any) (*mongo.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("DeleteOne"); err != nil {
		return nil, err
	}
	f.lastFilter = filter
	for i, doc := range f.docs {
		if matches(doc, filter) {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return &mongo.DeleteResult{DeletedCount: 1}, nil
		}
	}
	return &mongo.DeleteResult{}, nil
}

func (f *fakeCollection) DeleteMany(_ context.Context, filter any) (*mongo.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("DeleteMany"); err != nil {
		return nil, err
	}
	f.lastFilter = filter
	var kept []bson.D
	for _, doc := range f.docs {
		if !matches(doc, filter) {
			kept = append(kept, doc)
		}
	}
	deleted := int64(len(f.docs) - len(kept))
	f.docs = kept
	return &mongo.DeleteResult{DeletedCount: deleted}, nil
}

func (f *fakeCollection) BulkWrite(_ context.Context, models []mongo.WriteModel, ordered bool) (*mongo.BulkWriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("BulkWrite"); err != nil {
		return nil, err
	}
	f.bulkModels = models
	f.bulkOrdered = ordered

	res := &mongo.BulkWriteResult{}
	for i, model := range models {
		if f.failBulkAt == i+1 {
			return res, fmt.Errorf("element %d: %w", i, errInjected)
		}

		switch m := model.(type) {
		case *mongo.InsertOneModel:
			if _, err := f.insert(m.Document); err != nil {
				return res, err
			}
			res.InsertedCount++
		case *mongo.ReplaceOneModel:
			upsert := m.Upsert != nil && *m.Upsert
			r, err := f.replace(m.Filter, m.Replacement, upsert)
			if err != nil {
				return res, err
			}
			res.MatchedCount += r.MatchedCount
			res.ModifiedCount += r.ModifiedCount
			res.UpsertedCount += r.UpsertedCount
		default:
			return res, fmt.Errorf("unsupported write model %T", model)
		}
	}
	return res, nil
}

func (f *fakeCollection) CountDocuments(_ context.Context, filter any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("CountDocuments"); err != nil {
		return 0, err
	}
	var n int64
	for _, doc := range f.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeCollection) Find(_ context.Context, filter any, opts *mongoOptions.FindOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("Find"); err != nil {
		return nil, err
	}
	f.lastFilter = filter
	f.lastFind = opts

	var found []any
	for _, doc := range f.docs {
		if matches(doc, filter) {
			found = append(found, doc)
		}
	}

	if opts != nil && opts.Skip != nil {
		skip := int(*opts.Skip)
		if skip > len(found) {
			skip = len(found)
		}
		found = found[skip:]
	}
	if opts != nil && opts.Limit != nil && int(*opts.Limit) < len(found) {
		found = found[:*opts.Limit]
	}

	return mongo.NewCursorFromDocuments(found, nil, f.registry)
}

func (f *fakeCollection) CreateIndexes(_ context.Context, indexes []mongo.IndexModel) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("CreateIndexes"); err != nil {
		return nil, err
	}
	f.indexes = append(f.indexes, indexes...)
	return Map(indexes, func(idx mongo.IndexModel) string {
		if idx.Options != nil && idx.Options.Name != nil {
			return *idx.Options.Name
		}
		return "index"
	}), nil
}

func (f *fakeCollection) insert(document any) (any, error) {
	doc, err := encodeDocument(f.registry, document)
	if err != nil {
		return nil, err
	}

	id, ok := lookup(doc, IDKey)
	if !ok {
		id = primitive.NewObjectID()
		doc = append(bson.D{{Key: IDKey, Value: id}}, doc...)
	}
	if f.indexOf(id) >= 0 {
		return nil, duplicateKeyError()
	}

	f.docs = append(f.docs, doc)
	return id, nil
}

func (f *fakeCollection) replace(filter, replacement any, upsert bool) (*mongo.UpdateResult, error) {
	doc, err := encodeDocument(f.registry, replacement)
	if err != nil {
		return nil, err
	}

	for i, existing := range f.docs {
		if matches(existing, filter) {
			if id, ok := lookup(existing, IDKey); ok {
				doc = withID(doc, id)
			}
			f.docs[i] = doc
			return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}

	if !upsert {
		return &mongo.UpdateResult{}, nil
	}

	if id, ok := lookup(filter.(bson.D), IDKey); ok {
		doc = withID(doc, id)
	}
	f.docs = append(f.docs, doc)
	id, _ := lookup(doc, IDKey)
	return &mongo.UpdateResult{UpsertedCount: 1, UpsertedID: id}, nil
}

func (f *fakeCollection) indexOf(id any) int {
	for i, doc := range f.docs {
		if existing, ok := lookup(doc, IDKey); ok && reflect.DeepEqual(existing, id) {
			return i
		}
	}
	return -1
}

func (f *fakeCollection) ids() []any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Map(f.docs, func(doc bson.D) any {
		id, _ := lookup(doc, IDKey)
		return id
	})
}

func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
}

func lookup(doc bson.D, key string) (any, bool) {
	for _, elem := range doc {
		if elem.Key == key {
			return elem.Value, true
		}
	}
	return nil, false
}

func withID(doc bson.D, id any) bson.D {
	out := bson.D{{Key: IDKey, Value: id}}
	for _, elem := range doc {
		if elem.Key != IDKey {
			out = append(out, elem)
		}
	}
	return out
}

func setFields(doc bson.D, fields bson.D) bson.D {
	out := append(bson.D{}, doc...)
	for _, field := range fields {
		replaced := false
		for i := range out {
			if out[i].Key == field.Key {
				out[i].Value = field.Value
				replaced = true
			}
		}
		if !replaced {
			out = append(out, field)
		}
	}
	return out
}

// matches supports top level equality only.
func matches(doc bson.D, filter any) bool {
	f, ok := filter.(bson.D)
	if !ok || len(f) == 0 {
		return filter == nil || ok
	}
	for _, cond := range f {
		v, ok := lookup(doc, cond.Key)
		if !ok {
			if cond.Value != nil {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(v, cond.Value) {
			return false
		}
	}
	return true
}
