package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/cockroachdb/datadiff/batch"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestComparison(t *testing.T) {
	out := Comparison(result.Comparison{
		RunID:           "run-1",
		RelationA:       "orders",
		RelationB:       "public.orders",
		RowCountA:       4,
		RowCountB:       3,
		MatchedCount:    2,
		OnlyACount:      2,
		OnlyBCount:      1,
		DiffValueCount:  1,
		DiffRowCount:    1,
		MatchPercentage: 57.14,
		HasKey:          true,
		KeyColumns:      []string{"id", "region"},
		ColumnsCompared: []string{"amount"},
		ColumnsOnlyB:    []string{"updated_at"},
		DuplicateKeysA:  1,
	})
	for _, expected := range []string{
		"orders <-> public.orders",
		"run-1",
		"keyed",
		"id,region",
		"updated_at",
		"57.14%",
		"A=1 B=0",
		"DIFFERENT",
	} {
		require.Contains(t, out, expected)
	}
	require.NotContains(t, out, "Columns only in A")

	out = Comparison(result.Comparison{RelationA: "a", RelationB: "b", Identical: true, MatchPercentage: 100})
	require.Contains(t, out, "(row hash)")
	require.Contains(t, out, "hash")
	require.Contains(t, out, "IDENTICAL")
	require.NotContains(t, out, "Duplicate keys")
}

func TestSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := Summary(batch.Summary{
		Total:     3,
		Identical: 1,
		Errors:    1,
		Skipped:   1,
		StartTime: start,
		EndTime:   start.Add(2500 * time.Millisecond),
		Results: []batch.Result{
			{
				Pair:       batch.Pair{RelationA: "a", RelationB: "b"},
				Outcome:    batch.OutcomeIdentical,
				Comparison: result.Comparison{MatchPercentage: 100},
			},
			{
				Pair:    batch.Pair{RelationA: "customers", RelationB: "public.customers"},
				Outcome: batch.OutcomeError,
				Err:     errors.New("connection refused"),
			},
			{
				Pair:    batch.Pair{RelationA: "c", RelationB: "d"},
				Outcome: batch.OutcomeSkipped,
			},
		},
	})
	for _, expected := range []string{
		"Batch comparison summary",
		"2.5s",
		"customers <-> public.customers",
		"connection refused",
		"100.00% matched, 0 only in A, 0 only in B, 0 differing values",
		"SKIPPED",
	} {
		require.Contains(t, out, expected)
	}

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, out))
	require.Equal(t, out+"\n", buf.String())
}
