package testutils

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/datadiff/result"
)

// FormatComparison renders a comparison and its diffs for golden files.
// Timing fields are omitted so output is stable.
func FormatComparison(c result.Comparison, diffs []result.Diff) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "method: %s\n", c.Method())
	if c.HasKey {
		fmt.Fprintf(&sb, "key: %s\n", c.KeyString())
	}
	fmt.Fprintf(&sb, "columns: %s\n", strings.Join(c.ColumnsCompared, ","))
	if len(c.ColumnsOnlyA) > 0 || len(c.ColumnsOnlyB) > 0 {
		fmt.Fprintf(
			&sb,
			"columns only in a: %s, only in b: %s\n",
			strings.Join(c.ColumnsOnlyA, ","),
			strings.Join(c.ColumnsOnlyB, ","),
		)
	}
	fmt.Fprintf(&sb, "rows: a=%d b=%d\n", c.RowCountA, c.RowCountB)
	fmt.Fprintf(
		&sb,
		"matched=%d only_a=%d only_b=%d diff_values=%d diff_rows=%d\n",
		c.MatchedCount, c.OnlyACount, c.OnlyBCount, c.DiffValueCount, c.DiffRowCount,
	)
	if c.DuplicateKeysA > 0 || c.DuplicateKeysB > 0 {
		fmt.Fprintf(&sb, "duplicate keys: a=%d b=%d\n", c.DuplicateKeysA, c.DuplicateKeysB)
	}
	fmt.Fprintf(&sb, "match_percentage=%.2f identical=%t\n", c.MatchPercentage, c.Identical)
	for _, d := range diffs {
		identity := d.Identity
		if !c.HasKey && len(identity) > 12 {
			identity = identity[:12]
		}
		switch d.Type {
		case result.DiffValueDiff:
			fmt.Fprintf(&sb, "%s %s %s: %s != %s\n", d.Type, identity, d.Column, d.ValueA, d.ValueB)
		default:
			if d.Row != "" {
				fmt.Fprintf(&sb, "%s %s (%s)\n", d.Type, identity, d.Row)
			} else {
				fmt.Fprintf(&sb, "%s %s\n", d.Type, identity)
			}
		}
	}
	return sb.String()
}
