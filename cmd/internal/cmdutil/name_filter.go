package cmdutil

import (
	"regexp"

	"github.com/cockroachdb/datadiff/batch"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var relationFilter = ".*"

func RegisterNameFilterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&relationFilter,
		"relation-filter",
		relationFilter,
		"POSIX regexp filter on source relation names to compare",
	)
}

// FilterPairs returns the pairs whose source relation matches
// --relation-filter.
func FilterPairs(pairs []batch.Pair) ([]batch.Pair, error) {
	re, err := regexp.CompilePOSIX("^(" + relationFilter + ")$")
	if err != nil {
		return nil, errors.Wrapf(err, "invalid relation filter %q", relationFilter)
	}
	var ret []batch.Pair
	for _, p := range pairs {
		if re.MatchString(p.RelationA) {
			ret = append(ret, p)
		}
	}
	return ret, nil
}
