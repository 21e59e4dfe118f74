package cmdutil

import (
	"context"

	"github.com/cockroachdb/datadiff/compare"
	"github.com/cockroachdb/datadiff/compare/scratch"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type engineConfig struct {
	resultsURL    string
	diffCSV       string
	spillDir      string
	spill         bool
	nullSentinels []string
	duplicateKeys string
}

var engineCfg = engineConfig{
	duplicateKeys: "reject",
}

// RegisterEngineFlags registers flags controlling where results go and how
// comparisons hold their working state.
func RegisterEngineFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&engineCfg.resultsURL,
		"results-url",
		"",
		"postgres URL to record comparisons and diffs in",
	)
	cmd.PersistentFlags().StringVar(
		&engineCfg.diffCSV,
		"diff-csv",
		"",
		"path of a CSV file to write diffs to; a .gz suffix compresses it",
	)
	cmd.PersistentFlags().BoolVar(
		&engineCfg.spill,
		"spill",
		false,
		"hold comparison state in SQLite on disk instead of memory",
	)
	cmd.PersistentFlags().StringVar(
		&engineCfg.spillDir,
		"spill-dir",
		"",
		"directory for on-disk comparison state; implies --spill",
	)
	cmd.PersistentFlags().StringSliceVar(
		&engineCfg.nullSentinels,
		"null-sentinels",
		nil,
		`literals treated as null (default "", ".", "NULL")`,
	)
	cmd.PersistentFlags().StringVar(
		&engineCfg.duplicateKeys,
		"duplicate-keys",
		engineCfg.duplicateKeys,
		"how to handle duplicate keys in keyed comparisons: reject or first-seen",
	)
}

// NullSentinels returns the configured null sentinels, or nil for the
// defaults.
func NullSentinels() []string {
	return engineCfg.nullSentinels
}

func DuplicatePolicy() (compare.DuplicatePolicy, error) {
	return compare.ParseDuplicatePolicy(engineCfg.duplicateKeys)
}

// LoadEngine builds an engine over sources, writing to a log sink plus any
// sinks configured by flags. Closing the returned sink flushes them.
func LoadEngine(
	ctx context.Context, logger zerolog.Logger, sources *Sources,
) (*compare.Engine, result.Sink, error) {
	sink := result.CombinedSink{Sinks: []result.Sink{result.LogSink{Logger: logger}}}
	if engineCfg.diffCSV != "" {
		csvSink, err := result.CreateCSVSink(engineCfg.diffCSV)
		if err != nil {
			return nil, nil, err
		}
		sink.Sinks = append(sink.Sinks, csvSink)
	}
	if engineCfg.resultsURL != "" {
		sqlSink, err := result.OpenSQLSink(ctx, logger, engineCfg.resultsURL, result.WithCreateTables(true))
		if err != nil {
			return nil, nil, errors.CombineErrors(err, sink.Close())
		}
		sink.Sinks = append(sink.Sinks, sqlSink)
	}
	opts := []compare.EngineOpt{compare.WithLogger(logger)}
	if engineCfg.spill || engineCfg.spillDir != "" {
		opts = append(opts, compare.WithScratch(scratch.SQLiteFactory(logger, engineCfg.spillDir)))
	}
	return compare.NewEngine(sources.Sources, sink, opts...), sink, nil
}
