// Package keyspec resolves the optional row identity used to join two
// relations and encodes key tuples into identity strings.
package keyspec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
)

// Spec is either no key or an ordered list of key column names.
type Spec struct {
	columns []string
	present bool
}

func None() Spec {
	return Spec{}
}

func Columns(cols ...string) Spec {
	return Spec{columns: append([]string(nil), cols...), present: true}
}

// Parse reads a comma separated column list. Blank text means no key.
func Parse(text string) Spec {
	var cols []string
	for _, c := range strings.Split(text, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return None()
	}
	return Columns(cols...)
}

func (s Spec) IsSet() bool {
	return s.present
}

func (s Spec) ColumnNames() []string {
	return append([]string(nil), s.columns...)
}

func (s Spec) String() string {
	return strings.Join(s.columns, ",")
}

// InvalidKeyError is returned when a key column cannot be found in a relation.
type InvalidKeyError struct {
	Relation string
	Column   string
	Reason   string
}

func (e *InvalidKeyError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid key: %s", e.Reason)
	}
	return fmt.Sprintf("invalid key column %q for relation %s: %s", e.Column, e.Relation, e.Reason)
}

// Resolved holds the key columns as named, and positioned, in both schemas.
type Resolved struct {
	ColumnsA  []string
	ColumnsB  []string
	PositionA []int
	PositionB []int
}

// Resolve maps the key columns to positions in both schemas using
// case-insensitive name matching.
func Resolve(
	spec Spec, relA string, schemaA []relation.Column, relB string, schemaB []relation.Column,
) (Resolved, error) {
	if !spec.present {
		return Resolved{}, errors.AssertionFailedf("cannot resolve an absent key")
	}
	if len(spec.columns) == 0 {
		return Resolved{}, &InvalidKeyError{Reason: "no key columns specified"}
	}
	ret := Resolved{
		ColumnsA:  make([]string, len(spec.columns)),
		ColumnsB:  make([]string, len(spec.columns)),
		PositionA: make([]int, len(spec.columns)),
		PositionB: make([]int, len(spec.columns)),
	}
	seen := make(map[string]struct{}, len(spec.columns))
	for i, col := range spec.columns {
		if _, ok := seen[strings.ToLower(col)]; ok {
			return Resolved{}, &InvalidKeyError{Relation: relA, Column: col, Reason: "column specified more than once"}
		}
		seen[strings.ToLower(col)] = struct{}{}
		posA := relation.ColumnIndex(schemaA, col)
		if posA < 0 {
			return Resolved{}, &InvalidKeyError{Relation: relA, Column: col, Reason: "column does not exist"}
		}
		posB := relation.ColumnIndex(schemaB, col)
		if posB < 0 {
			return Resolved{}, &InvalidKeyError{Relation: relB, Column: col, Reason: "column does not exist"}
		}
		ret.ColumnsA[i] = schemaA[posA].Name
		ret.ColumnsB[i] = schemaB[posB].Name
		ret.PositionA[i] = posA
		ret.PositionB[i] = posB
	}
	return ret, nil
}

// Identity encodes a key tuple. Each value is quoted so separators inside
// values cannot make two distinct tuples collide; nulls are written as a bare
// NULL which no quoted value can equal.
func Identity(vals rowvalue.Row, opts rowvalue.CompareOptions) string {
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteByte(',')
		}
		v = opts.Canonical(v)
		if !v.Valid {
			sb.WriteString(rowvalue.NullText)
			continue
		}
		sb.WriteString(strconv.Quote(v.Text))
	}
	return sb.String()
}

// Project extracts the key values from a row by position.
func Project(row rowvalue.Row, positions []int) rowvalue.Row {
	ret := make(rowvalue.Row, len(positions))
	for i, p := range positions {
		ret[i] = row[p]
	}
	return ret
}
