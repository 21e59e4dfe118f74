package cmdutil

import (
	"context"
	"time"

	"github.com/cockroachdb/datadiff/blobstore"
	"github.com/cockroachdb/datadiff/dbconn"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/relation/csvrel"
	"github.com/cockroachdb/datadiff/relation/sqlrel"
	"github.com/cockroachdb/datadiff/retry"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type sourceConfig struct {
	source        string
	target        string
	rowsPerSecond int
	connectRetry  retry.Settings
}

var sourceCfg = sourceConfig{
	connectRetry: retry.Settings{
		InitialBackoff: time.Second,
		Multiplier:     2,
		MaxBackoff:     10 * time.Second,
		MaxRetries:     3,
	},
}

func RegisterSourceFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&sourceCfg.source,
		"source",
		"",
		"location of relation A: a postgres:// or mysql:// URL, or a file://, s3:// or gs:// directory of CSV exports",
	)
	cmd.PersistentFlags().StringVar(
		&sourceCfg.target,
		"target",
		"",
		"location of relation B, in the same forms as --source",
	)
	cmd.PersistentFlags().IntVar(
		&sourceCfg.rowsPerSecond,
		"rows-per-second",
		0,
		"if set, maximum number of rows to read per second from each database scan",
	)
	cmd.PersistentFlags().IntVar(
		&sourceCfg.connectRetry.MaxRetries,
		"connect-retries",
		sourceCfg.connectRetry.MaxRetries,
		"number of times to retry connecting to a database",
	)
}

// Sources holds the opened relation sources and releases them on Close.
type Sources struct {
	Sources relation.OrderedSources
	closers []func() error
}

func (s *Sources) Close() error {
	var err error
	for _, c := range s.closers {
		err = errors.CombineErrors(err, c())
	}
	return err
}

// LoadSources opens the sources named by --source and --target.
func LoadSources(ctx context.Context, logger zerolog.Logger) (*Sources, error) {
	if sourceCfg.source == "" || sourceCfg.target == "" {
		return nil, errors.New("--source and --target must be set")
	}
	ret := &Sources{}
	for i, loc := range []struct {
		id  dbconn.ID
		url string
	}{
		{id: "source", url: sourceCfg.source},
		{id: "target", url: sourceCfg.target},
	} {
		src, closer, err := openSource(ctx, logger, loc.id, loc.url)
		if err != nil {
			_ = ret.Close()
			return nil, errors.Wrapf(err, "error opening %s", loc.id)
		}
		ret.Sources[i] = src
		if closer != nil {
			ret.closers = append(ret.closers, closer)
		}
	}
	return ret, nil
}

func openSource(
	ctx context.Context, logger zerolog.Logger, id dbconn.ID, u string,
) (relation.Source, func() error, error) {
	logger = logger.With().Str("conn", string(id)).Logger()
	switch {
	case blobstore.IsURL(u):
		store, err := blobstore.Open(ctx, logger, u)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("store", store.String()).Msgf("reading csv exports")
		return csvrel.New(store, logger), nil, nil
	case dbconn.IsSQLURL(u):
		conn, err := dbconn.ConnectWithRetry(ctx, logger, id, u, sourceCfg.connectRetry)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("dialect", string(conn.Dialect())).Str("database", conn.Database()).Msgf("connected")
		src := sqlrel.New(
			conn,
			sqlrel.WithLogger(logger),
			sqlrel.WithRowsPerSecond(sourceCfg.rowsPerSecond),
		)
		return src, func() error { return conn.Close(context.Background()) }, nil
	}
	return nil, nil, errors.Newf("unrecognised location %q", u)
}
