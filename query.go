package docstore

import (
	"context"
	"errors"
	"iter"

	"go.mongodb.org/mongo-driver/bson"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

var (
	errNoPage      = errors.New("page is not set, call Page first")
	errRangedQuery = errors.New("cannot page a ranged query, call Page first")
)

// Page selects Size results starting at page Index (0-based).
type Page struct {
	Index int
	Size  int
}

// Query is a deferred find over one collection. Page and range methods change the
// query in place; misuse is reported by the next execution.
type Query[T any] struct {
	collection Collection
	filter     any
	sort       bson.D

	page   *Page
	skip   *int64
	limit  *int64
	ranged bool
	count  *int64
	err    error
}

func newQuery[T any](coll Collection, filter any, sort bson.D) *Query[T] {
	if filter == nil {
		filter = bson.D{}
	}
	return &Query[T]{collection: coll, filter: filter, sort: sort}
}

// Filter returns the filter document sent to the store.
func (q *Query[T]) Filter() any {
	return q.filter
}

// Sort returns the sort document, nil for natural order.
func (q *Query[T]) Sort() bson.D {
	return q.sort
}

func (q *Query[T]) Page(index, size int) *Query[T] {
	if index < 0 || size <= 0 {
		q.err = errors.New("page index must not be negative and size must be positive")
		return q
	}
	q.page = &Page{Index: index, Size: size}
	q.ranged = false
	q.skip, q.limit = nil, nil
	q.err = nil
	return q
}

func (q *Query[T]) NextPage() *Query[T] {
	if q.checkPagination() {
		q.page = &Page{Index: q.page.Index + 1, Size: q.page.Size}
	}
	return q
}

func (q *Query[T]) PreviousPage() *Query[T] {
	if q.checkPagination() && q.page.Index > 0 {
		q.page = &Page{Index: q.page.Index - 1, Size: q.page.Size}
	}
	return q
}

func (q *Query[T]) FirstPage() *Query[T] {
	if q.checkPagination() {
		q.page = &Page{Index: 0, Size: q.page.Size}
	}
	return q
}

// LastPage moves to the last page, which needs the result count.
func (q *Query[T]) LastPage(ctx context.Context) (*Query[T], error) {
	count, err := q.PageCount(ctx)
	if err != nil {
		return q, err
	}

	last := 0
	if count > 0 {
		last = count - 1
	}
	q.page = &Page{Index: last, Size: q.page.Size}
	return q, nil
}

func (q *Query[T]) HasNextPage(ctx context.Context) (bool, error) {
	count, err := q.PageCount(ctx)
	if err != nil {
		return false, err
	}
	return q.page.Index < count-1, nil
}

func (q *Query[T]) HasPreviousPage() (bool, error) {
	if !q.checkPagination() {
		return false, q.err
	}
	return q.page.Index > 0, nil
}

// PageCount is the number of pages of the current size over all results.
func (q *Query[T]) PageCount(ctx context.Context) (int, error) {
	if !q.checkPagination() {
		return 0, q.err
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 1, nil
	}
	size := int64(q.page.Size)
	return int((count + size - 1) / size), nil
}

func (q *Query[T]) CurrentPage() (Page, error) {
	if !q.checkPagination() {
		return Page{}, q.err
	}
	return *q.page, nil
}

// Range selects results start to end, both inclusive and 0-based. It replaces any page.
func (q *Query[T]) Range(start, end int) *Query[T] {
	if start < 0 || end < start {
		q.err = errors.New("range start must not be negative or greater than end")
		return q
	}
	skip := int64(start)
	limit := int64(end - start + 1)
	q.skip, q.limit = &skip, &limit
	q.page = nil
	q.ranged = true
	q.err = nil
	return q
}

func (q *Query[T]) checkPagination() bool {
	if q.err != nil {
		return false
	}
	if q.ranged {
		q.err = errRangedQuery
		return false
	}
	if q.page == nil {
		q.err = errNoPage
		return false
	}
	return true
}

// Count counts every document matching the filter, ignoring paging. The result is
// cached for the lifetime of the query.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	if q.count != nil {
		return *q.count, nil
	}

	count, err := q.collection.CountDocuments(ctx, q.filter)
	if err != nil {
		return 0, err
	}
	q.count = &count
	return count, nil
}

func (q *Query[T]) List(ctx context.Context) ([]T, error) {
	opts, err := q.findOptions(0)
	if err != nil {
		return nil, err
	}

	cur, err := q.collection.Find(ctx, q.filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := []T{}
	if err := cur.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Stream iterates results lazily. Iteration stops after the first error.
func (q *Query[T]) Stream(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		opts, err := q.findOptions(0)
		if err != nil {
			yield(zero, err)
			return
		}

		cur, err := q.collection.Find(ctx, q.filter, opts)
		if err != nil {
			yield(zero, err)
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var item T
			if err := cur.Decode(&item); err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}

		if err := cur.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// FirstResult returns the first result of the current page or range, nil when there
// is none.
func (q *Query[T]) FirstResult(ctx context.Context) (*T, error) {
	items, err := q.firstResults(ctx, 1)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// SingleResult fails with ErrNoResult or ErrNotSingle unless exactly one document
// matches.
func (q *Query[T]) SingleResult(ctx context.Context) (T, error) {
	var zero T

	items, err := q.firstResults(ctx, 2)
	if err != nil {
		return zero, err
	}

	switch len(items) {
	case 0:
		return zero, ErrNoResult
	case 1:
		return items[0], nil
	default:
		return zero, ErrNotSingle
	}
}

func (q *Query[T]) firstResults(ctx context.Context, max int64) ([]T, error) {
	opts, err := q.findOptions(max)
	if err != nil {
		return nil, err
	}

	cur, err := q.collection.Find(ctx, q.filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []T
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// findOptions applies sort, paging and range. A positive max caps the limit.
func (q *Query[T]) findOptions(max int64) (*mongoOptions.FindOptions, error) {
	if q.err != nil {
		return nil, q.err
	}

	opts := mongoOptions.Find()
	if q.sort != nil {
		opts.SetSort(q.sort)
	}

	var limit int64
	switch {
	case q.page != nil:
		opts.SetSkip(int64(q.page.Index) * int64(q.page.Size))
		limit = int64(q.page.Size)
	case q.ranged:
		opts.SetSkip(*q.skip)
		limit = *q.limit
	}

	if max > 0 && (limit == 0 || max < limit) {
		limit = max
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	return opts, nil
}
