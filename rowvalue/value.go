// Package rowvalue holds the row and value model shared by relation sources
// and comparators, including null normalization and tolerant equality.
package rowvalue

import "strings"

// NullText is how a true null is rendered in diffs and reports.
const NullText = "NULL"

// Value is a nullable scalar rendered in canonical text form.
type Value struct {
	Text  string
	Valid bool
}

// Row is an ordered list of values aligned with a requested column list.
type Row []Value

func Null() Value {
	return Value{}
}

func Of(s string) Value {
	return Value{Text: s, Valid: true}
}

// Strings builds a row of non-null values.
func Strings(vals ...string) Row {
	r := make(Row, len(vals))
	for i, v := range vals {
		r[i] = Of(v)
	}
	return r
}

func (v Value) IsNull() bool {
	return !v.Valid
}

func (v Value) String() string {
	if !v.Valid {
		return NullText
	}
	return v.Text
}

// DefaultSentinels are the literals treated as null when no set is configured.
func DefaultSentinels() []string {
	return []string{"", ".", NullText}
}

// SentinelSet is a case-insensitive set of literals treated as null.
type SentinelSet struct {
	literals map[string]struct{}
}

func NewSentinelSet(literals []string) SentinelSet {
	s := SentinelSet{literals: make(map[string]struct{}, len(literals))}
	for _, l := range literals {
		s.literals[strings.ToUpper(l)] = struct{}{}
	}
	return s
}

func (s SentinelSet) IsNull(v Value) bool {
	if !v.Valid {
		return true
	}
	_, ok := s.literals[strings.ToUpper(v.Text)]
	return ok
}

// Normalize converts sentinel literals into true nulls.
func (s SentinelSet) Normalize(v Value) Value {
	if s.IsNull(v) {
		return Null()
	}
	return v
}
