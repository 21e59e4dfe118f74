package compare

import (
	"context"

	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/rs/zerolog"
)

const progressInterval = 100000

var sideLabels = [2]string{"a", "b"}

func (e *Engine) scanFunc(
	logger zerolog.Logger, side int, rel string, columns []string,
) func(ctx context.Context) (relation.Iterator, error) {
	return func(ctx context.Context) (relation.Iterator, error) {
		it, err := e.sources[side].Scan(ctx, rel, columns)
		if err != nil {
			return nil, &SourceAccessError{Relation: rel, Op: "rows", Err: err}
		}
		return &sourceIterator{Iterator: it, logger: logger, side: side, rel: rel}, nil
	}
}

// sourceIterator classifies iterator failures as source access errors and
// tracks scan progress.
type sourceIterator struct {
	relation.Iterator
	logger  zerolog.Logger
	side    int
	rel     string
	numRows int64
}

func (it *sourceIterator) Next(ctx context.Context) rowvalue.Row {
	it.numRows++
	rowsScannedMetric.WithLabelValues(sideLabels[it.side]).Inc()
	if it.numRows%progressInterval == 0 {
		it.logger.Info().
			Str("side", sideLabels[it.side]).
			Int64("rows", it.numRows).
			Msgf("scan progress")
	}
	return it.Iterator.Next(ctx)
}

func (it *sourceIterator) Error() error {
	if err := it.Iterator.Error(); err != nil {
		return &SourceAccessError{Relation: it.rel, Op: "rows", Err: err}
	}
	return nil
}
