// Package result contains the records produced by a comparison and the sinks
// they are written to.
package result

import (
	"context"
	"strings"
	"time"
)

type DiffType string

const (
	DiffOnlyA     DiffType = "ONLY_A"
	DiffOnlyB     DiffType = "ONLY_B"
	DiffValueDiff DiffType = "VALUE_DIFF"
)

// Comparison is the outcome of comparing two relations.
type Comparison struct {
	RunID     string
	RelationA string
	RelationB string

	RowCountA      int64
	RowCountB      int64
	MatchedCount   int64
	OnlyACount     int64
	OnlyBCount     int64
	DiffValueCount int64
	// DiffRowCount is the number of common rows with at least one differing
	// column.
	DiffRowCount int64

	MatchPercentage float64
	Identical       bool

	HasKey          bool
	KeyColumns      []string
	ColumnsCompared []string
	ColumnsOnlyA    []string
	ColumnsOnlyB    []string

	// DuplicateKeysA and DuplicateKeysB count rows skipped because their key
	// was already seen on the same side.
	DuplicateKeysA int64
	DuplicateKeysB int64

	StartTime            time.Time
	ExecutionTimeSeconds float64
}

// Method returns the comparison method used.
func (c Comparison) Method() string {
	if c.HasKey {
		return "keyed"
	}
	return "hash"
}

func (c Comparison) KeyString() string {
	return strings.Join(c.KeyColumns, ",")
}

// Diff is a single row-level or value-level difference.
type Diff struct {
	RunID     string
	RelationA string
	RelationB string
	Type      DiffType
	// Identity is the key identity for keyed comparisons or the content hash
	// for hash comparisons.
	Identity string
	Column   string
	ValueA   string
	ValueB   string
	// Row is the formatted content of the row for sampled ONLY_A and ONLY_B
	// diffs of hash comparisons.
	Row string
}

// Sink receives the records produced by comparisons. Implementations must be
// safe for concurrent use by independent comparisons.
type Sink interface {
	WriteDiff(ctx context.Context, d Diff) error
	WriteComparison(ctx context.Context, c Comparison) error
	Close() error
}
