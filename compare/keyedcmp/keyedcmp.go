// Package keyedcmp compares two relations joined on a key, reporting rows
// present on one side only and per-column value differences.
package keyedcmp

import (
	"context"
	"fmt"

	"github.com/cockroachdb/datadiff/compare/scratch"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// DuplicatePolicy decides what happens when a key occurs more than once on
// the same side.
type DuplicatePolicy int

const (
	// DuplicatesReject fails the comparison.
	DuplicatesReject DuplicatePolicy = iota
	// DuplicatesFirstSeen compares the first row seen for each key and counts
	// the rest as duplicates.
	DuplicatesFirstSeen
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicatesReject:
		return "reject"
	case DuplicatesFirstSeen:
		return "first-seen"
	}
	return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
}

// ParseDuplicatePolicy parses the String form of a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "reject":
		return DuplicatesReject, nil
	case "first-seen":
		return DuplicatesFirstSeen, nil
	}
	return 0, errors.Newf("unknown duplicate key policy %q, expected reject or first-seen", s)
}

// DuplicateKeyError is returned when a duplicate key is found and the policy
// is DuplicatesReject.
type DuplicateKeyError struct {
	Relation string
	Identity string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %s in relation %s", e.Identity, e.Relation)
}

type ScanFunc func(ctx context.Context) (relation.Iterator, error)

// Input describes a keyed comparison. Rows from both scans start with the key
// columns followed by the compared columns, in the same order on both sides.
type Input struct {
	RelationA string
	RelationB string
	ScanA     ScanFunc
	ScanB     ScanFunc

	NumKeyColumns int
	// Columns names the compared columns, used in diff records.
	Columns []string

	Options         rowvalue.CompareOptions
	DuplicatePolicy DuplicatePolicy
	Scratch         scratch.Store
	Emit            func(ctx context.Context, d result.Diff) error
	Logger          zerolog.Logger
}

// Stats summarizes a keyed comparison.
type Stats struct {
	Common      int64
	Matched     int64
	OnlyA       int64
	OnlyB       int64
	DiffValues  int64
	DiffRows    int64
	DuplicatesA int64
	DuplicatesB int64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"common:%d, matched:%d, only_a:%d, only_b:%d, diff_values:%d, duplicates_a:%d, duplicates_b:%d",
		s.Common, s.Matched, s.OnlyA, s.OnlyB, s.DiffValues, s.DuplicatesA, s.DuplicatesB,
	)
}

// Compare performs a full outer join of both relations on the key, reading
// each side once. Diffs are emitted as they are found: value differences and
// B-only rows in B's scan order, then A-only rows in A's scan order.
func Compare(ctx context.Context, in Input) (Stats, error) {
	var stats Stats
	if in.NumKeyColumns == 0 {
		return stats, errors.AssertionFailedf("keyed comparison requires key columns")
	}
	keyPositions := make([]int, in.NumKeyColumns)
	for i := range keyPositions {
		keyPositions[i] = i
	}
	identity := func(row rowvalue.Row) string {
		return keyspec.Identity(keyspec.Project(row, keyPositions), in.Options)
	}

	indexA, err := in.Scratch.NewRowIndex(ctx)
	if err != nil {
		return stats, err
	}
	if err := scanAll(ctx, in.ScanA, func(row rowvalue.Row) error {
		id := identity(row)
		ok, err := indexA.Put(ctx, id, row)
		if err != nil {
			return err
		}
		if !ok {
			stats.DuplicatesA++
			return in.onDuplicate(in.RelationA, id)
		}
		return nil
	}); err != nil {
		return stats, err
	}

	seenB, err := in.Scratch.NewTally(ctx)
	if err != nil {
		return stats, err
	}
	if err := scanAll(ctx, in.ScanB, func(rowB rowvalue.Row) error {
		id := identity(rowB)
		cnt, err := seenB.Add(ctx, id)
		if err != nil {
			return err
		}
		if cnt > 1 {
			stats.DuplicatesB++
			return in.onDuplicate(in.RelationB, id)
		}
		rowA, ok, err := indexA.Take(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			stats.OnlyB++
			return in.Emit(ctx, in.diff(result.DiffOnlyB, id))
		}
		stats.Common++
		numDiffs, err := in.compareRows(ctx, id, rowA, rowB)
		if err != nil {
			return err
		}
		if numDiffs > 0 {
			stats.DiffRows++
			stats.DiffValues += numDiffs
		}
		return nil
	}); err != nil {
		return stats, err
	}

	if err := indexA.Remaining(ctx, func(id string, _ rowvalue.Row) error {
		stats.OnlyA++
		return in.Emit(ctx, in.diff(result.DiffOnlyA, id))
	}); err != nil {
		return stats, err
	}
	stats.Matched = stats.Common - stats.DiffRows
	return stats, nil
}

func (in Input) onDuplicate(rel string, id string) error {
	if in.DuplicatePolicy == DuplicatesReject {
		return &DuplicateKeyError{Relation: rel, Identity: id}
	}
	in.Logger.Warn().
		Str("relation", rel).
		Str("identity", id).
		Msgf("duplicate key, keeping first row seen")
	return nil
}

func (in Input) diff(typ result.DiffType, id string) result.Diff {
	return result.Diff{
		RelationA: in.RelationA,
		RelationB: in.RelationB,
		Type:      typ,
		Identity:  id,
	}
}

func (in Input) compareRows(
	ctx context.Context, id string, rowA, rowB rowvalue.Row,
) (int64, error) {
	if len(rowA) != len(rowB) || len(rowA) != in.NumKeyColumns+len(in.Columns) {
		return 0, errors.AssertionFailedf(
			"row width mismatch: a=%d, b=%d, expected %d",
			len(rowA), len(rowB), in.NumKeyColumns+len(in.Columns),
		)
	}
	var numDiffs int64
	for i, col := range in.Columns {
		a, b := rowA[in.NumKeyColumns+i], rowB[in.NumKeyColumns+i]
		if in.Options.Equal(a, b) {
			continue
		}
		numDiffs++
		d := in.diff(result.DiffValueDiff, id)
		d.Column = col
		d.ValueA = in.Options.Sentinels.Normalize(a).String()
		d.ValueB = in.Options.Sentinels.Normalize(b).String()
		if err := in.Emit(ctx, d); err != nil {
			return numDiffs, err
		}
	}
	return numDiffs, nil
}

func scanAll(ctx context.Context, scan ScanFunc, fn func(row rowvalue.Row) error) error {
	it, err := scan(ctx)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.HasNext(ctx) {
		if err := fn(it.Next(ctx)); err != nil {
			return err
		}
	}
	return it.Error()
}
