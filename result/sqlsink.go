package result

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	defaultComparisonTable = "datadiff_comparisons"
	defaultDiffTable       = "datadiff_diffs"
	defaultFlushSize       = 500
)

// SQLSink appends records to result tables in a PostgreSQL compatible
// database. Diffs are buffered and flushed in batches.
type SQLSink struct {
	db     *sql.DB
	logger zerolog.Logger
	opts   sqlSinkOpts

	mu      sync.Mutex
	pending []Diff
}

type sqlSinkOpts struct {
	comparisonTable string
	diffTable       string
	flushSize       int
	createTables    bool
}

type SQLSinkOpt func(*sqlSinkOpts)

// WithTables overrides the result table names.
func WithTables(comparisonTable, diffTable string) SQLSinkOpt {
	return func(o *sqlSinkOpts) {
		o.comparisonTable = comparisonTable
		o.diffTable = diffTable
	}
}

func WithFlushSize(n int) SQLSinkOpt {
	return func(o *sqlSinkOpts) {
		o.flushSize = n
	}
}

// WithCreateTables creates the result tables if they do not exist.
func WithCreateTables(create bool) SQLSinkOpt {
	return func(o *sqlSinkOpts) {
		o.createTables = create
	}
}

// OpenSQLSink connects to the given postgres URL and returns a sink writing
// to it.
func OpenSQLSink(
	ctx context.Context, logger zerolog.Logger, connStr string, opts ...SQLSinkOpt,
) (*SQLSink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening results database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "error connecting to results database")
	}
	return NewSQLSink(ctx, logger, db, opts...)
}

func NewSQLSink(
	ctx context.Context, logger zerolog.Logger, db *sql.DB, opts ...SQLSinkOpt,
) (*SQLSink, error) {
	o := sqlSinkOpts{
		comparisonTable: defaultComparisonTable,
		diffTable:       defaultDiffTable,
		flushSize:       defaultFlushSize,
	}
	for _, applyOpt := range opts {
		applyOpt(&o)
	}
	s := &SQLSink{db: db, logger: logger, opts: o}
	if o.createTables {
		if err := s.createTables(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLSink) createTables(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(s.opts.comparisonTable) + ` (
	run_id TEXT NOT NULL,
	relation_a TEXT NOT NULL,
	relation_b TEXT NOT NULL,
	method TEXT NOT NULL,
	has_key BOOL NOT NULL,
	key_columns TEXT NOT NULL,
	columns_compared TEXT NOT NULL,
	row_count_a INT8 NOT NULL,
	row_count_b INT8 NOT NULL,
	matched_count INT8 NOT NULL,
	only_a_count INT8 NOT NULL,
	only_b_count INT8 NOT NULL,
	diff_value_count INT8 NOT NULL,
	match_percentage FLOAT8 NOT NULL,
	identical BOOL NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	execution_time_seconds FLOAT8 NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(s.opts.diffTable) + ` (
	run_id TEXT NOT NULL,
	relation_a TEXT NOT NULL,
	relation_b TEXT NOT NULL,
	diff_type TEXT NOT NULL,
	identity TEXT NOT NULL,
	column_name TEXT,
	value_a TEXT,
	value_b TEXT,
	row_data TEXT
)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "error creating result table")
		}
	}
	return nil
}

func (s *SQLSink) WriteDiff(ctx context.Context, d Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, d)
	if len(s.pending) >= s.opts.flushSize {
		return s.flushLocked(ctx)
	}
	return nil
}

func (s *SQLSink) insertDiffStmt() string {
	return `INSERT INTO ` + pq.QuoteIdentifier(s.opts.diffTable) +
		` (run_id, relation_a, relation_b, diff_type, identity, column_name, value_a, value_b, row_data)` +
		` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
}

func (s *SQLSink) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "error starting diff flush")
	}
	stmt, err := tx.PrepareContext(ctx, s.insertDiffStmt())
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "error preparing diff insert")
	}
	defer func() { _ = stmt.Close() }()
	for _, d := range s.pending {
		// Values are only present on value diffs, where an empty string is a
		// real value.
		hasValues := d.Type == DiffValueDiff
		if _, err := stmt.ExecContext(
			ctx,
			d.RunID,
			d.RelationA,
			d.RelationB,
			string(d.Type),
			d.Identity,
			sql.NullString{String: d.Column, Valid: hasValues},
			sql.NullString{String: d.ValueA, Valid: hasValues},
			sql.NullString{String: d.ValueB, Valid: hasValues},
			sql.NullString{String: d.Row, Valid: d.Row != ""},
		); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "error inserting diff")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "error committing diffs")
	}
	s.logger.Debug().Int("num_diffs", len(s.pending)).Msgf("flushed diffs")
	s.pending = s.pending[:0]
	return nil
}

func (s *SQLSink) WriteComparison(ctx context.Context, c Comparison) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO `+pq.QuoteIdentifier(s.opts.comparisonTable)+
			` (run_id, relation_a, relation_b, method, has_key, key_columns, columns_compared,`+
			` row_count_a, row_count_b, matched_count, only_a_count, only_b_count, diff_value_count,`+
			` match_percentage, identical, start_time, execution_time_seconds)`+
			` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.RunID,
		c.RelationA,
		c.RelationB,
		c.Method(),
		c.HasKey,
		c.KeyString(),
		strings.Join(c.ColumnsCompared, ","),
		c.RowCountA,
		c.RowCountB,
		c.MatchedCount,
		c.OnlyACount,
		c.OnlyBCount,
		c.DiffValueCount,
		c.MatchPercentage,
		c.Identical,
		c.StartTime,
		c.ExecutionTimeSeconds,
	); err != nil {
		return errors.Wrapf(err, "error inserting comparison for %s vs %s", c.RelationA, c.RelationB)
	}
	return nil
}

// Close flushes pending diffs and closes the database handle.
func (s *SQLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.flushLocked(context.Background())
	return errors.CombineErrors(err, s.db.Close())
}
