// Package sqlrel reads relations from PostgreSQL, CockroachDB and MySQL
// tables.
package sqlrel

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/datadiff/dbconn"
	"github.com/cockroachdb/datadiff/dbtable"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Source is a relation.Source over a database connection. Relation names are
// table or schema.table, matched without regard to case.
type Source struct {
	conn    dbconn.Conn
	logger  zerolog.Logger
	limiter *rate.Limiter

	// mu serializes metadata queries on conn.
	mu struct {
		sync.Mutex
		tables map[string]table
	}
}

var _ relation.Source = (*Source)(nil)

type table struct {
	name    dbtable.Name
	columns []relation.Column
}

type Opt func(*Source)

func WithLogger(logger zerolog.Logger) Opt {
	return func(s *Source) {
		s.logger = logger
	}
}

// WithRowsPerSecond limits how fast each scan reads rows. Zero is unlimited.
func WithRowsPerSecond(n int) Opt {
	return func(s *Source) {
		if n > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

func New(conn dbconn.Conn, opts ...Opt) *Source {
	s := &Source{conn: conn, logger: zerolog.Nop()}
	s.mu.tables = make(map[string]table)
	for _, applyOpt := range opts {
		applyOpt(s)
	}
	return s
}

func (s *Source) Schema(ctx context.Context, rel string) ([]relation.Column, error) {
	t, err := s.resolve(ctx, rel)
	if err != nil {
		return nil, err
	}
	return append([]relation.Column(nil), t.columns...), nil
}

func (s *Source) RowCount(ctx context.Context, rel string) (int64, error) {
	t, err := s.resolve(ctx, rel)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	switch conn := s.conn.(type) {
	case *dbconn.PGConn:
		if err := conn.QueryRow(ctx, pgCountQuery(t.name)).Scan(&count); err != nil {
			return 0, errors.Wrapf(err, "error counting rows of %s", t.name)
		}
	case *dbconn.MySQLConn:
		q, err := mysqlCountQuery(t.name)
		if err != nil {
			return 0, err
		}
		if err := conn.QueryRowContext(ctx, q).Scan(&count); err != nil {
			return 0, errors.Wrapf(err, "error counting rows of %s", t.name)
		}
	default:
		return 0, errors.AssertionFailedf("unsupported connection type %T", conn)
	}
	return count, nil
}

// Scan reads the requested columns over a dedicated connection, which is
// closed with the iterator.
func (s *Source) Scan(ctx context.Context, rel string, columns []string) (relation.Iterator, error) {
	t, err := s.resolve(ctx, rel)
	if err != nil {
		return nil, err
	}
	positions, err := relation.Project(t.columns, columns)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(positions))
	for i, p := range positions {
		names[i] = t.columns[p].Name
	}

	conn, err := s.conn.Clone(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening scan connection")
	}
	it := &rowsIterator{conn: conn, numCols: len(names), limiter: s.limiter, logger: s.logger}
	switch conn := conn.(type) {
	case *dbconn.PGConn:
		q := pgScanQuery(t.name, names)
		s.logger.Debug().Str("query", q).Msgf("scanning table")
		r, err := conn.Query(ctx, q)
		if err != nil {
			_ = conn.Close(ctx)
			return nil, errors.Wrapf(err, "error scanning %s", t.name)
		}
		it.rows, it.closeRows, it.dest = r, r.Close, pgDest
	case *dbconn.MySQLConn:
		r, err := s.mysqlScan(ctx, conn, t.name, names)
		if err != nil {
			_ = conn.Close(ctx)
			return nil, err
		}
		it.rows, it.closeRows, it.dest = r, func() { _ = r.Close() }, mysqlDest
	default:
		_ = conn.Close(ctx)
		return nil, errors.AssertionFailedf("unsupported connection type %T", conn)
	}
	return it, nil
}

func (s *Source) mysqlScan(
	ctx context.Context, conn *dbconn.MySQLConn, name dbtable.Name, columns []string,
) (*sql.Rows, error) {
	q, err := mysqlScanQuery(name, columns)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("query", q).Msgf("scanning table")
	r, err := conn.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "error scanning %s", name)
	}
	return r, nil
}

func (s *Source) resolve(ctx context.Context, rel string) (table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.mu.tables[rel]; ok {
		return t, nil
	}
	name, err := dbtable.ParseName(rel)
	if err != nil {
		return table{}, errors.Wrapf(relation.ErrNotFound, "%v", err)
	}

	var candidates []table
	add := func(schema, tableName, column, dataType string) {
		n := len(candidates)
		if n == 0 || string(candidates[n-1].name.Schema) != schema || string(candidates[n-1].name.Table) != tableName {
			candidates = append(candidates, table{name: dbtable.Name{Schema: tree.Name(schema), Table: tree.Name(tableName)}})
			n++
		}
		candidates[n-1].columns = append(candidates[n-1].columns, relation.Column{Name: column, Type: dataType})
	}
	switch conn := s.conn.(type) {
	case *dbconn.PGConn:
		r, err := conn.Query(ctx, pgColumnsQuery, string(name.Table), string(name.Schema))
		if err != nil {
			return table{}, errors.Wrapf(err, "error reading columns of %s", name)
		}
		for r.Next() {
			var schema, tableName, column, dataType string
			if err := r.Scan(&schema, &tableName, &column, &dataType); err != nil {
				r.Close()
				return table{}, errors.Wrapf(err, "error reading columns of %s", name)
			}
			add(schema, tableName, column, pgColumnType(dataType))
		}
		if err := r.Err(); err != nil {
			return table{}, errors.Wrapf(err, "error reading columns of %s", name)
		}
	case *dbconn.MySQLConn:
		r, err := conn.QueryContext(ctx, mysqlColumnsQuery, string(name.Table), string(name.Schema), string(name.Schema))
		if err != nil {
			return table{}, errors.Wrapf(err, "error reading columns of %s", name)
		}
		defer func() { _ = r.Close() }()
		for r.Next() {
			var schema, tableName, column, dataType string
			if err := r.Scan(&schema, &tableName, &column, &dataType); err != nil {
				return table{}, errors.Wrapf(err, "error reading columns of %s", name)
			}
			add(schema, tableName, column, mysqlColumnType(dataType))
		}
		if err := r.Err(); err != nil {
			return table{}, errors.Wrapf(err, "error reading columns of %s", name)
		}
	default:
		return table{}, errors.AssertionFailedf("unsupported connection type %T", conn)
	}

	t, err := pickTable(name, candidates)
	if err != nil {
		return table{}, err
	}
	s.mu.tables[rel] = t
	return t, nil
}

// pickTable prefers an exact name match when several tables differ only by
// case.
func pickTable(name dbtable.Name, candidates []table) (table, error) {
	switch len(candidates) {
	case 0:
		return table{}, errors.Wrapf(relation.ErrNotFound, "table %s", name)
	case 1:
		return candidates[0], nil
	}
	for _, c := range candidates {
		if c.name.Table == name.Table && (!name.HasSchema() || c.name.Schema == name.Schema) {
			return c, nil
		}
	}
	var names []string
	for _, c := range candidates {
		names = append(names, c.name.SafeString())
	}
	return table{}, errors.Newf("table name %s is ambiguous, matches %s", name, strings.Join(names, ", "))
}
