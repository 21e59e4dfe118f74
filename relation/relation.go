// Package relation defines how the comparison engine reads relations.
package relation

import (
	"context"
	"strings"

	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned (possibly wrapped) by a Source when a relation
// cannot be resolved.
var ErrNotFound = errors.New("relation not found")

// Column is a column of a relation with its declared type.
type Column struct {
	Name string
	Type string
}

// Source provides read access to named relations.
type Source interface {
	// RowCount returns the number of rows in the relation.
	RowCount(ctx context.Context, rel string) (int64, error)
	// Schema returns the columns of the relation in declaration order.
	Schema(ctx context.Context, rel string) ([]Column, error)
	// Scan returns an iterator over the relation, with each row containing
	// the requested columns in the requested order.
	Scan(ctx context.Context, rel string, columns []string) (Iterator, error)
}

// Iterator streams rows from a relation. The usage pattern matches
// bufio.Scanner: call HasNext until it returns false, then check Error.
type Iterator interface {
	HasNext(ctx context.Context) bool
	Next(ctx context.Context) rowvalue.Row
	Error() error
	Close()
}

// OrderedSources holds the sources for side A and side B respectively.
type OrderedSources [2]Source

// ColumnIndex returns the position of the named column, matching names
// case-insensitively, or -1 if it is absent.
func ColumnIndex(schema []Column, name string) int {
	for i, c := range schema {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnNames returns the names of the given columns.
func ColumnNames(schema []Column) []string {
	ret := make([]string, len(schema))
	for i, c := range schema {
		ret[i] = c.Name
	}
	return ret
}

// Project resolves the requested column names against a schema, returning
// their positions. It fails if a column is absent.
func Project(schema []Column, columns []string) ([]int, error) {
	ret := make([]int, len(columns))
	for i, c := range columns {
		idx := ColumnIndex(schema, c)
		if idx < 0 {
			return nil, errors.Newf("column %q does not exist", c)
		}
		ret[i] = idx
	}
	return ret, nil
}

// Drain reads all remaining rows from an iterator and closes it.
func Drain(ctx context.Context, it Iterator) ([]rowvalue.Row, error) {
	defer it.Close()
	var ret []rowvalue.Row
	for it.HasNext(ctx) {
		ret = append(ret, it.Next(ctx))
	}
	return ret, it.Error()
}
