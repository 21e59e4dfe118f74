package keyspec

import (
	"testing"

	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		text     string
		expected Spec
	}{
		{text: "", expected: None()},
		{text: " , ", expected: None()},
		{text: "id", expected: Columns("id")},
		{text: "client_id, order_id", expected: Columns("client_id", "order_id")},
	} {
		t.Run(tc.text, func(t *testing.T) {
			s := Parse(tc.text)
			require.Equal(t, tc.expected.IsSet(), s.IsSet())
			require.Equal(t, tc.expected.ColumnNames(), s.ColumnNames())
		})
	}
}

func TestResolve(t *testing.T) {
	schemaA := []relation.Column{{Name: "id"}, {Name: "name"}, {Name: "region"}}
	schemaB := []relation.Column{{Name: "REGION"}, {Name: "ID"}, {Name: "NAME"}}

	t.Run("case insensitive", func(t *testing.T) {
		r, err := Resolve(Columns("Region", "id"), "a", schemaA, "b", schemaB)
		require.NoError(t, err)
		require.Equal(t, []string{"region", "id"}, r.ColumnsA)
		require.Equal(t, []string{"REGION", "ID"}, r.ColumnsB)
		require.Equal(t, []int{2, 0}, r.PositionA)
		require.Equal(t, []int{0, 1}, r.PositionB)
	})

	for _, tc := range []struct {
		desc     string
		spec     Spec
		schemaB  []relation.Column
		expected string
	}{
		{
			desc:     "missing in a",
			spec:     Columns("nope"),
			schemaB:  schemaB,
			expected: `invalid key column "nope" for relation a: column does not exist`,
		},
		{
			desc:     "missing in b",
			spec:     Columns("id", "name"),
			schemaB:  []relation.Column{{Name: "id"}},
			expected: `invalid key column "name" for relation b: column does not exist`,
		},
		{
			desc:     "repeated",
			spec:     Columns("id", "ID"),
			schemaB:  schemaB,
			expected: `invalid key column "ID" for relation a: column specified more than once`,
		},
		{
			desc:     "empty",
			spec:     Columns(),
			schemaB:  schemaB,
			expected: `invalid key: no key columns specified`,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Resolve(tc.spec, "a", schemaA, "b", tc.schemaB)
			var keyErr *InvalidKeyError
			require.True(t, errors.As(err, &keyErr))
			require.EqualError(t, err, tc.expected)
		})
	}
}

func TestIdentity(t *testing.T) {
	opts, err := rowvalue.NewCompareOptions(nil, false, 0)
	require.NoError(t, err)

	require.Equal(t, `"1","x"`, Identity(rowvalue.Strings("1", "x"), opts))
	require.Equal(t, `NULL,"2"`, Identity(rowvalue.Row{rowvalue.Null(), rowvalue.Of("2")}, opts))
	// Sentinels collapse to the same identity as a true null.
	require.Equal(t, `NULL`, Identity(rowvalue.Strings("null"), opts))

	// Separators and quotes inside values do not cause collisions.
	distinct := []rowvalue.Row{
		rowvalue.Strings("x,y", "z"),
		rowvalue.Strings("x", "y,z"),
		rowvalue.Strings(`x","y`, "z"),
		rowvalue.Strings("NULL2", "z"),
		{rowvalue.Null(), rowvalue.Of("z")},
		rowvalue.Strings(`"NULL"`, "z"),
	}
	seen := make(map[string]int)
	for i, row := range distinct {
		id := Identity(row, opts)
		prev, ok := seen[id]
		require.False(t, ok, "rows %d and %d collide on %s", prev, i, id)
		seen[id] = i
	}

	ci, err := rowvalue.NewCompareOptions(nil, true, 0)
	require.NoError(t, err)
	require.Equal(t, Identity(rowvalue.Strings("abc"), ci), Identity(rowvalue.Strings("ABC"), ci))
	require.NotEqual(t, Identity(rowvalue.Strings("abc"), opts), Identity(rowvalue.Strings("ABC"), opts))
}
