// Package query turns filter and update templates into MongoDB documents.
//
// A template is either a native document literal such as
//
//	{'status': ?1, 'age': {$gt: :age}}
//
// or an object query such as
//
//	status = ?1 and age > :age
//
// The dialect is chosen from the first non-blank character of the template: '{'
// selects the native dialect, anything else the object query dialect. This is a
// textual rule, not a parse; native templates must start with '{'.
package query

import (
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
)

// Dialect identifies the template language.
type Dialect int

const (
	ObjectQuery Dialect = iota
	Native
)

func (d Dialect) String() string {
	if d == Native {
		return "native"
	}
	return "object-query"
}

// DetectDialect picks the dialect of template from its first significant character.
func DetectDialect(template string) Dialect {
	trimmed := strings.TrimLeftFunc(template, unicode.IsSpace)
	if trimmed != "" && trimmed[0] == '{' {
		return Native
	}
	return ObjectQuery
}

// FieldMapper resolves a logical field name to the name used in stored documents.
type FieldMapper interface {
	FieldName(logical string) (string, bool)
}

// FieldMap is a FieldMapper backed by a fixed mapping. Names missing from the map
// are unknown.
type FieldMap map[string]string

func (m FieldMap) FieldName(logical string) (string, bool) {
	name, ok := m[logical]
	return name, ok
}

// Translator binds and translates templates for one entity type.
type Translator struct {
	// Fields resolves object query field names; nil passes names through.
	Fields FieldMapper
	// Debug, when set, receives the bound template of every translation.
	Debug func(msg string, args ...any)
}

// Filter translates a filter template into a filter document.
func (t Translator) Filter(template string, params Params) (bson.D, error) {
	bound, err := Bind(template, params)
	if err != nil {
		return nil, err
	}
	t.trace("bound filter", bound)

	if DetectDialect(template) == Native {
		return ParseDocument(bound)
	}
	return parseObjectQuery(bound, t.Fields)
}

// Update translates an update template and wraps it in $set when it carries no
// update operator.
func (t Translator) Update(template string, params Params) (bson.D, error) {
	bound, err := Bind(template, params)
	if err != nil {
		return nil, err
	}
	t.trace("bound update", bound)

	var update bson.D
	if DetectDialect(template) == Native {
		update, err = ParseDocument(bound)
	} else {
		update, err = parseAssignments(bound, t.Fields)
	}
	if err != nil {
		return nil, err
	}

	return NormalizeUpdate(update), nil
}

func (t Translator) trace(msg, bound string) {
	if t.Debug != nil {
		t.Debug(msg, "query", bound)
	}
}

// TranslateFilter is a shorthand for Translator{Fields: fields}.Filter.
func TranslateFilter(template string, params Params, fields FieldMapper) (bson.D, error) {
	return Translator{Fields: fields}.Filter(template, params)
}

// TranslateUpdate is a shorthand for Translator{Fields: fields}.Update.
func TranslateUpdate(template string, params Params, fields FieldMapper) (bson.D, error) {
	return Translator{Fields: fields}.Update(template, params)
}
