package sqlrel

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/datadiff/dbconn"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// destFunc allocates scan destinations for one row and a function which
// converts them once scanned.
type destFunc func(n int) ([]any, func() rowvalue.Row)

func pgDest(n int) ([]any, func() rowvalue.Row) {
	vals := make([]pgtype.Text, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	return ptrs, func() rowvalue.Row {
		row := make(rowvalue.Row, n)
		for i, v := range vals {
			row[i] = rowvalue.Value{Text: v.String, Valid: v.Valid}
		}
		return row
	}
}

func mysqlDest(n int) ([]any, func() rowvalue.Row) {
	vals := make([]sql.NullString, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	return ptrs, func() rowvalue.Row {
		row := make(rowvalue.Row, n)
		for i, v := range vals {
			row[i] = rowvalue.Value{Text: v.String, Valid: v.Valid}
		}
		return row
	}
}

type rowsIterator struct {
	conn      dbconn.Conn
	rows      rows
	closeRows func()
	dest      destFunc
	numCols   int
	limiter   *rate.Limiter
	logger    zerolog.Logger

	row rowvalue.Row
	err error
}

var _ relation.Iterator = (*rowsIterator)(nil)

func (it *rowsIterator) HasNext(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.limiter != nil {
		if err := it.limiter.Wait(ctx); err != nil {
			it.err = err
			return false
		}
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	ptrs, toRow := it.dest(it.numCols)
	if err := it.rows.Scan(ptrs...); err != nil {
		it.err = err
		return false
	}
	it.row = toRow()
	return true
}

func (it *rowsIterator) Next(ctx context.Context) rowvalue.Row {
	return it.row
}

func (it *rowsIterator) Error() error {
	return it.err
}

func (it *rowsIterator) Close() {
	it.closeRows()
	if err := it.conn.Close(context.Background()); err != nil {
		it.logger.Err(err).Msgf("error closing scan connection")
	}
}
