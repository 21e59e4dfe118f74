package batch

import (
	"context"
	"os"

	"github.com/cockroachdb/datadiff/batch"
	"github.com/cockroachdb/datadiff/cmd/internal/cmdutil"
	"github.com/cockroachdb/datadiff/report"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var (
		input           string
		output          string
		format          string
		cfg             = batch.DefaultConfig()
		caseInsensitive bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Compare many pairs of relations.",
		Long: `Batch compares each pair of relations listed in --input, a CSV file with
SOURCE, TARGET and optional PRIMARY_KEY, COLUMNS, TOLERANCE, REL_TOLERANCE
and CASE_INSENSITIVE columns, or a YAML file with a comparisons list.

Exits 0 if every pair is identical, 1 if any pair differs or was skipped and
2 if any comparison failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			cmdutil.LogConfigSource(logger)
			cmdutil.RunMetricsServer(logger)
			if input == "" {
				return errors.New("--input must be set")
			}
			switch format {
			case "csv", "json":
			default:
				return errors.Newf("unknown summary format %q, expected csv or json", format)
			}
			pairs, err := batch.Load(input)
			if err != nil {
				return errors.Wrapf(err, "error loading %s", input)
			}
			if pairs, err = cmdutil.FilterPairs(pairs); err != nil {
				return err
			}
			if len(pairs) == 0 {
				return errors.Newf("no comparisons found in %s", input)
			}
			cfg.RunID = uuid.New().String()
			cfg.CaseInsensitive = caseInsensitive
			cfg.NullSentinels = cmdutil.NullSentinels()
			if cfg.DuplicateKeys, err = cmdutil.DuplicatePolicy(); err != nil {
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

			logger = logger.With().Str("run_id", cfg.RunID).Logger()
			summary, runErr := batch.Run(ctx, logger, engine, pairs, cfg)
			if err := sink.Close(); err != nil {
				return errors.Wrapf(err, "error flushing results")
			}
			if err := report.Fprint(os.Stdout, report.Summary(summary)); err != nil {
				return err
			}
			if output != "" {
				if err := writeSummary(output, format, summary); err != nil {
					return err
				}
				logger.Info().Str("path", output).Msgf("wrote summary")
			}
			var partial *batch.PartialRunError
			if runErr != nil && !errors.As(runErr, &partial) {
				return cmdutil.Exit(summary.ExitCode(), runErr)
			}
			return cmdutil.Exit(summary.ExitCode(), nil)
		},
	}

	cmd.PersistentFlags().StringVar(
		&input,
		"input",
		"",
		"mapping file listing the pairs to compare (.csv, .yaml or .yml)",
	)
	cmd.PersistentFlags().IntVar(
		&cfg.Concurrency,
		"concurrency",
		cfg.Concurrency,
		"number of pairs to compare at a time",
	)
	cmd.PersistentFlags().BoolVar(
		&cfg.StopOnError,
		"stop-on-error",
		false,
		"stop starting new comparisons once one fails",
	)
	cmd.PersistentFlags().Float64Var(
		&cfg.DefaultTolerance,
		"tolerance",
		cfg.DefaultTolerance,
		"numeric tolerance for pairs which do not set one",
	)
	cmd.PersistentFlags().Float64Var(
		&cfg.DefaultRelTolerance,
		"rel-tolerance",
		0,
		"relative numeric tolerance for pairs which do not set one",
	)
	cmd.PersistentFlags().IntVar(
		&cfg.SampleRows,
		"sample-rows",
		cfg.SampleRows,
		"number of one-sided rows reported with their content per hash comparison; negative disables",
	)
	cmd.PersistentFlags().BoolVar(
		&caseInsensitive,
		"case-insensitive",
		false,
		"compare every pair without regard to case",
	)
	cmd.PersistentFlags().StringVar(
		&output,
		"output",
		"",
		"path to write the summary to",
	)
	cmd.PersistentFlags().StringVar(
		&format,
		"format",
		"csv",
		"summary format: csv or json",
	)
	cmdutil.RegisterSourceFlags(cmd)
	cmdutil.RegisterEngineFlags(cmd)
	cmdutil.RegisterNameFilterFlags(cmd)
	cmdutil.RegisterLoggerFlags(cmd)
	cmdutil.RegisterMetricsFlags(cmd)
	return cmd
}

func writeSummary(path string, format string, s batch.Summary) (retErr error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer func() {
		retErr = errors.CombineErrors(retErr, f.Close())
	}()
	return batch.Export(f, s, format)
}
