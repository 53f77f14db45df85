package docstore

import (
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/likearthian/docstore/query"
)

// IDKey is the identity field of every stored document.
const IDKey = "_id"

// NamingStrategy derives a collection name from an entity type name.
type NamingStrategy func(typeName string) string

// TypeNaming uses the type name as is.
func TypeNaming(typeName string) string { return typeName }

// SnakeCaseNaming turns UserAccount into user_account.
func SnakeCaseNaming(typeName string) string { return strcase.ToSnake(typeName) }

// LowerCamelNaming turns UserAccount into userAccount.
func LowerCamelNaming(typeName string) string { return strcase.ToLowerCamel(typeName) }

// Entity describes where an entity type is stored and how its logical field names
// map to document field names.
type Entity struct {
	Type       reflect.Type
	Collection string
	// Database is empty when the client's default database applies.
	Database string
	Client   string
	Fields   query.FieldMap
	// Mapper, when set, resolves field names instead of Fields.
	Mapper  query.FieldMapper
	Indexes []EntityIndex
}

// EntityIndex is a named index over document fields, in key order.
type EntityIndex struct {
	Name   string
	Fields []string
	Unique bool
}

// FieldName resolves a Go field name or a document field name to its document name.
func (e *Entity) FieldName(logical string) (string, bool) {
	if e.Mapper != nil {
		return e.Mapper.FieldName(logical)
	}
	return e.Fields.FieldName(logical)
}

// Describe builds the descriptor of T from its bson tags and the given options.
func Describe[T any](options ...EntityOption) *Entity {
	opt := &entityOption{naming: TypeNaming, client: DefaultClient}
	for _, op := range options {
		op(opt)
	}

	var model T
	m := reflect.TypeOf(&model).Elem()
	for m.Kind() == reflect.Ptr {
		m = m.Elem()
	}

	entity := &Entity{
		Type:       m,
		Collection: opt.collection,
		Database:   opt.database,
		Client:     opt.client,
		Fields:     query.FieldMap{},
		Mapper:     opt.fields,
		Indexes:    opt.indexes,
	}

	if entity.Collection == "" {
		entity.Collection = opt.naming(m.Name())
	}

	if m.Kind() == reflect.Struct {
		collectFields(m, "", entity.Fields)
	}

	return entity
}

// collectFields maps Go field names and bson names to bson names. Inline structs
// contribute their fields at the parent level.
func collectFields(model reflect.Type, prefix string, fields query.FieldMap) {
	for i := 0; i < model.NumField(); i++ {
		field := model.Field(i)
		if !field.IsExported() {
			continue
		}

		name, inline, skip := ParseBSONTag(field.Tag.Get("bson"))
		if skip {
			continue
		}

		fieldType := field.Type
		for fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}
		if inline && fieldType.Kind() == reflect.Struct {
			collectFields(fieldType, prefix, fields)
			continue
		}

		if name == "" {
			// the default struct codec lowercases untagged field names
			name = strings.ToLower(field.Name)
		}

		fields[prefix+field.Name] = prefix + name
		fields[prefix+name] = prefix + name
	}
}

// ParseBSONTag splits a bson struct tag into its key and the flags that change where
// the field is stored.
func ParseBSONTag(value string) (name string, inline bool, skip bool) {
	if value == "-" {
		return "", false, true
	}

	tagArr := strings.Split(value, ",")
	name = strings.TrimSpace(tagArr[0])
	for _, flag := range tagArr[1:] {
		if strings.EqualFold(strings.TrimSpace(flag), "inline") {
			inline = true
		}
	}

	return name, inline, false
}
