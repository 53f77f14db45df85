package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Direction is the order of a sort column, encoded as +1 / -1 in sort documents.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// Column is a single sort key.
type Column struct {
	Name      string
	Direction Direction
}

// Sort is an ordered list of sort columns.
//
//	query.By("lastname").And("age", query.Descending)
type Sort struct {
	Columns []Column
}

// By starts a sort on name, ascending unless a direction is given.
func By(name string, direction ...Direction) Sort {
	return Sort{}.And(name, direction...)
}

// And appends a column to the sort.
func (s Sort) And(name string, direction ...Direction) Sort {
	dir := Ascending
	if len(direction) > 0 {
		dir = direction[0]
	}

	cols := make([]Column, len(s.Columns), len(s.Columns)+1)
	copy(cols, s.Columns)
	s.Columns = append(cols, Column{Name: name, Direction: dir})
	return s
}

// Direction sets every column of the sort to dir.
func (s Sort) Direction(dir Direction) Sort {
	cols := make([]Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = Column{Name: c.Name, Direction: dir}
	}
	s.Columns = cols
	return s
}

func (s Sort) Ascending() Sort {
	return s.Direction(Ascending)
}

func (s Sort) Descending() Sort {
	return s.Direction(Descending)
}

// IsEmpty reports whether the sort has no columns.
func (s Sort) IsEmpty() bool {
	return len(s.Columns) == 0
}

// ParseSort builds a sort from field names prefixed by "-" for descending order
// and optionally "+" for ascending order.
//
// example:
//
//	ParseSort("-name", "+age")
func ParseSort(sorter ...string) Sort {
	var s Sort
	for _, f := range sorter {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		dir := Ascending
		switch f[0] {
		case '-':
			dir = Descending
			f = f[1:]
		case '+':
			f = f[1:]
		}

		if f == "" {
			continue
		}
		s = s.And(f, dir)
	}

	return s
}

// Document returns the ordered sort document, or nil for an empty sort so the
// store keeps its natural order.
func (s Sort) Document() bson.D {
	if s.IsEmpty() {
		return nil
	}

	doc := make(bson.D, 0, len(s.Columns))
	for _, c := range s.Columns {
		dir := 1
		if c.Direction == Descending {
			dir = -1
		}
		doc = append(doc, bson.E{Key: c.Name, Value: dir})
	}

	return doc
}
