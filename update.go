package docstore

import (
	"context"

	"github.com/likearthian/docstore/query"
	"go.mongodb.org/mongo-driver/bson"
)

// Update is a translated update document waiting for the filter it applies to.
type Update[T any] struct {
	collection Collection
	update     bson.D
	translator query.Translator
}

// Document returns the normalized update document.
func (u *Update[T]) Document() bson.D {
	return u.update
}

// Where applies the update to every document matching the filter template and returns
// the number of modified documents.
func (u *Update[T]) Where(ctx context.Context, filter string, params query.Params) (int64, error) {
	doc, err := u.translator.Filter(filter, params)
	if err != nil {
		return 0, err
	}
	return u.apply(ctx, doc)
}

// All applies the update to the whole collection.
func (u *Update[T]) All(ctx context.Context) (int64, error) {
	return u.apply(ctx, bson.D{})
}

func (u *Update[T]) apply(ctx context.Context, filter bson.D) (int64, error) {
	res, err := u.collection.UpdateMany(ctx, filter, u.update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
