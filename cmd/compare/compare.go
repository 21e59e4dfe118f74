package compare

import (
	"context"
	"os"

	"github.com/cockroachdb/datadiff/cmd/internal/cmdutil"
	"github.com/cockroachdb/datadiff/compare"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/datadiff/report"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var (
		key             string
		columns         []string
		tolerance       float64
		relTolerance    float64
		sampleRows      int
		caseInsensitive bool
		runID           string
	)
	cmd := &cobra.Command{
		Use:   "compare <relationA> <relationB>",
		Short: "Compare the rows of two relations.",
		Long: `Compare reads relationA from --source and relationB from --target and
reports rows found on only one side and values which differ. Rows are matched
by --key if given, otherwise by a hash of their contents.

Exits 0 if the relations are identical, 1 if they differ and 2 on error.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			cmdutil.LogConfigSource(logger)
			cmdutil.RunMetricsServer(logger)
			duplicates, err := cmdutil.DuplicatePolicy()
			if err != nil {
				return err
			}

			ctx := context.Background()
			sources, err := cmdutil.LoadSources(ctx, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := sources.Close(); err != nil {
					logger.Err(err).Msgf("error closing sources")
				}
			}()
			engine, sink, err := cmdutil.LoadEngine(ctx, logger, sources)
			if err != nil {
				return err
			}

			res, err := engine.Compare(ctx, compare.Request{
				RunID:             runID,
				RelationA:         args[0],
				RelationB:         args[1],
				Key:               keyspec.Parse(key),
				Columns:           columns,
				NumericTolerance:  tolerance,
				RelativeTolerance: relTolerance,
				CaseInsensitive:   caseInsensitive,
				NullSentinels:     cmdutil.NullSentinels(),
				DuplicateKeys:     duplicates,
				SampleRows:        sampleRows,
			})
			err = errors.CombineErrors(err, sink.Close())
			if err != nil {
				return errors.Wrapf(err, "error comparing %s and %s", args[0], args[1])
			}
			if err := report.Fprint(os.Stdout, report.Comparison(res)); err != nil {
				return err
			}
			if !res.Identical {
				return cmdutil.Exit(1, nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(
		&key,
		"key",
		"",
		"comma separated key columns; rows are compared by content hash if unset",
	)
	cmd.PersistentFlags().StringSliceVar(
		&columns,
		"columns",
		nil,
		"columns to compare, in order (defaults to all columns in common)",
	)
	cmd.PersistentFlags().Float64Var(
		&tolerance,
		"tolerance",
		0,
		"maximum absolute difference at which numeric values are still equal",
	)
	cmd.PersistentFlags().Float64Var(
		&relTolerance,
		"rel-tolerance",
		0,
		"additional numeric difference allowed, as a fraction of the larger value",
	)
	cmd.PersistentFlags().IntVar(
		&sampleRows,
		"sample-rows",
		compare.DefaultSampleRows,
		"number of one-sided rows reported with their content when comparing by hash; negative disables",
	)
	cmd.PersistentFlags().BoolVar(
		&caseInsensitive,
		"case-insensitive",
		false,
		"compare text values and keys without regard to case",
	)
	cmd.PersistentFlags().StringVar(
		&runID,
		"run-id",
		"",
		"identifier recorded with results (generated if unset)",
	)
	cmdutil.RegisterSourceFlags(cmd)
	cmdutil.RegisterEngineFlags(cmd)
	cmdutil.RegisterLoggerFlags(cmd)
	cmdutil.RegisterMetricsFlags(cmd)
	return cmd
}
