package docstore

import (
	"github.com/likearthian/docstore/query"
	"go.mongodb.org/mongo-driver/bson"
)

type EntityOption func(o *entityOption)

type entityOption struct {
	collection string
	database   string
	client     string
	naming     NamingStrategy
	indexes    []EntityIndex
	fields     query.FieldMapper
}

// WithName sets the collection name.
func WithName(name string) EntityOption {
	return func(o *entityOption) {
		o.collection = name
	}
}

func WithDatabase(name string) EntityOption {
	return func(o *entityOption) {
		o.database = name
	}
}

// WithClient selects the configured client the entity lives on.
func WithClient(name string) EntityOption {
	return func(o *entityOption) {
		if name != "" {
			o.client = name
		}
	}
}

// WithNaming derives the collection name from the type name when WithName is not given.
func WithNaming(naming NamingStrategy) EntityOption {
	return func(o *entityOption) {
		if naming != nil {
			o.naming = naming
		}
	}
}

// WithFields replaces the field mapping derived from bson tags, for registries whose
// struct codec names fields differently.
func WithFields(fields query.FieldMapper) EntityOption {
	return func(o *entityOption) {
		o.fields = fields
	}
}

// WithIndex declares an index created by Repository.EnsureIndexes.
func WithIndex(name string, unique bool, fields ...string) EntityOption {
	return func(o *entityOption) {
		o.indexes = append(o.indexes, EntityIndex{Name: name, Fields: fields, Unique: unique})
	}
}

type RepositoryOption func(o *option)

type option struct {
	entity     []EntityOption
	logger     Logger
	initValues any
}

// WithEntity passes descriptor options through to Describe.
func WithEntity(options ...EntityOption) RepositoryOption {
	return func(o *option) {
		o.entity = append(o.entity, options...)
	}
}

func WithLogger(logger Logger) RepositoryOption {
	return func(o *option) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// InitWith seeds the collection with values ([]T) when the repository is created.
// Values are upserted, so seeding twice is harmless.
func InitWith(values any) RepositoryOption {
	return func(o *option) {
		o.initValues = values
	}
}

type QueryOption func(o *queryOption)

type queryOption struct {
	sort bson.D
}

// WithSort orders results by the given sort.
func WithSort(sort query.Sort) QueryOption {
	return func(o *queryOption) {
		o.sort = sort.Document()
	}
}

// WithSortDocument orders results by a prebuilt sort document, sent as is.
func WithSortDocument(sort bson.D) QueryOption {
	return func(o *queryOption) {
		o.sort = sort
	}
}

// WithSorter orders results by "-field" (descending) and "+field" or "field"
// (ascending) entries.
func WithSorter(sorter ...string) QueryOption {
	return func(o *queryOption) {
		o.sort = query.ParseSort(sorter...).Document()
	}
}

func applyQueryOptions(options []QueryOption) *queryOption {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}
	return opt
}
