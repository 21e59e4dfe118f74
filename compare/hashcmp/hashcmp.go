// Package hashcmp compares two relations without a key by hashing the
// content of every row.
//
// Matching is existence based: a row of A matches if any row of B has the
// same hash, regardless of how often either side contains it. Duplicated
// rows can therefore report more matches than there are rows on one side.
package hashcmp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/datadiff/compare/scratch"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
)

type ScanFunc func(ctx context.Context) (relation.Iterator, error)

// Input describes a hash comparison. Rows from both scans contain Columns in
// the same order on both sides.
type Input struct {
	RelationA string
	RelationB string
	ScanA     ScanFunc
	ScanB     ScanFunc
	Columns   []string

	Options rowvalue.CompareOptions
	Scratch scratch.Store
	Emit    func(ctx context.Context, d result.Diff) error
	// SampleLimit is the number of diffs on each side which carry the
	// content of the row. B is scanned a second time to collect its
	// samples.
	SampleLimit int
}

type Stats struct {
	Matched int64
	OnlyA   int64
	OnlyB   int64
}

// Hasher computes content hashes which do not depend on column order.
type Hasher struct {
	names []string
	order []int
	opts  rowvalue.CompareOptions
}

func NewHasher(columns []string, opts rowvalue.CompareOptions) Hasher {
	h := Hasher{
		names: make([]string, len(columns)),
		order: make([]int, len(columns)),
		opts:  opts,
	}
	for i, c := range columns {
		h.names[i] = strings.ToLower(c)
		h.order[i] = i
	}
	sort.SliceStable(h.order, func(i, j int) bool {
		return h.names[h.order[i]] < h.names[h.order[j]]
	})
	return h
}

// Hash returns the hex encoded SHA-256 of the canonical row content.
func (h Hasher) Hash(row rowvalue.Row) string {
	sum := sha256.New()
	var sb strings.Builder
	for _, idx := range h.order {
		sb.Reset()
		sb.WriteString(strconv.Quote(h.names[idx]))
		sb.WriteByte('=')
		v := h.opts.Canonical(row[idx])
		if v.Valid {
			sb.WriteString(strconv.Quote(v.Text))
		} else {
			sb.WriteString(rowvalue.NullText)
		}
		sb.WriteByte(';')
		_, _ = sum.Write([]byte(sb.String()))
	}
	return hex.EncodeToString(sum.Sum(nil))
}

// Compare tallies the hashes of B, then checks every row of A against them.
// Rows of B whose hash was never seen in A are reported once per row.
func Compare(ctx context.Context, in Input) (Stats, error) {
	var stats Stats
	if len(in.Columns) == 0 {
		return stats, errors.AssertionFailedf("hash comparison requires columns")
	}
	hasher := NewHasher(in.Columns, in.Options)

	tallyB, err := in.Scratch.NewTally(ctx)
	if err != nil {
		return stats, err
	}
	if err := scanAll(ctx, in.ScanB, func(row rowvalue.Row) error {
		_, err := tallyB.Add(ctx, hasher.Hash(row))
		return err
	}); err != nil {
		return stats, err
	}

	if err := scanAll(ctx, in.ScanA, func(row rowvalue.Row) error {
		h := hasher.Hash(row)
		found, err := tallyB.Mark(ctx, h)
		if err != nil {
			return err
		}
		if found {
			stats.Matched++
			return nil
		}
		d := in.diff(result.DiffOnlyA, h)
		if stats.OnlyA < int64(in.SampleLimit) {
			d.Row = FormatRow(in.Columns, row)
		}
		stats.OnlyA++
		return in.Emit(ctx, d)
	}); err != nil {
		return stats, err
	}

	samplesB, err := in.sampleB(ctx, hasher, tallyB)
	if err != nil {
		return stats, err
	}
	if err := tallyB.Unmarked(ctx, func(h string, count int64) error {
		for i := int64(0); i < count; i++ {
			d := in.diff(result.DiffOnlyB, h)
			if stats.OnlyB < int64(in.SampleLimit) {
				d.Row = samplesB[h]
			}
			stats.OnlyB++
			if err := in.Emit(ctx, d); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return stats, err
	}
	return stats, nil
}

var errSamplingDone = errors.New("sampling done")

// sampleB returns the formatted first row of B for each of the first
// SampleLimit unmarked hashes.
func (in Input) sampleB(
	ctx context.Context, hasher Hasher, tallyB scratch.Tally,
) (map[string]string, error) {
	if in.SampleLimit <= 0 {
		return nil, nil
	}
	samples := make(map[string]string)
	if err := tallyB.Unmarked(ctx, func(h string, _ int64) error {
		if len(samples) >= in.SampleLimit {
			return errSamplingDone
		}
		samples[h] = ""
		return nil
	}); err != nil && !errors.Is(err, errSamplingDone) {
		return nil, err
	}
	if len(samples) == 0 {
		return samples, nil
	}
	remaining := len(samples)
	if err := scanAll(ctx, in.ScanB, func(row rowvalue.Row) error {
		h := hasher.Hash(row)
		if s, ok := samples[h]; ok && s == "" {
			samples[h] = FormatRow(in.Columns, row)
			remaining--
			if remaining == 0 {
				return errSamplingDone
			}
		}
		return nil
	}); err != nil && !errors.Is(err, errSamplingDone) {
		return nil, err
	}
	return samples, nil
}

// FormatRow renders row as comma separated name="value" pairs.
func FormatRow(columns []string, row rowvalue.Row) string {
	var sb strings.Builder
	for i, v := range row {
		if i > 0 {
			sb.WriteString(", ")
		}
		if i < len(columns) {
			sb.WriteString(columns[i])
		}
		sb.WriteByte('=')
		if v.Valid {
			sb.WriteString(strconv.Quote(v.Text))
		} else {
			sb.WriteString(rowvalue.NullText)
		}
	}
	return sb.String()
}

func (in Input) diff(typ result.DiffType, h string) result.Diff {
	return result.Diff{
		RelationA: in.RelationA,
		RelationB: in.RelationB,
		Type:      typ,
		Identity:  h,
	}
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
