package dbtable

import (
	"testing"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	for _, tc := range []struct {
		in          string
		expected    Name
		expectedErr string
	}{
		{in: "orders", expected: Name{Table: "orders"}},
		{in: "public.orders", expected: Name{Schema: "public", Table: "orders"}},
		{in: ` sales."Order.Lines" `, expected: Name{Schema: "sales", Table: "Order.Lines"}},
		{in: `"a""b"`, expected: Name{Table: `a"b`}},
		{in: "a.b.c", expectedErr: `invalid table name "a.b.c": expected table or schema.table`},
		{in: "a.", expectedErr: `invalid table name "a.": empty name part`},
		{in: `"open`, expectedErr: `invalid table name "\"open": unterminated quote`},
	} {
		t.Run(tc.in, func(t *testing.T) {
			n, err := ParseName(tc.in)
			if tc.expectedErr != "" {
				require.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, n)
		})
	}
}

func TestMakeTableName(t *testing.T) {
	require.Equal(t, `public."Orders"`, tree.AsString(Name{Schema: "public", Table: "Orders"}.NewTableName()))
	require.Equal(t, "orders", tree.AsString(Name{Table: "orders"}.NewTableName()))
}
