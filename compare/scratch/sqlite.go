package scratch

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// sqliteStore spills scratch structures to a temporary SQLite database. All
// structures share one transaction which is rolled back on Close.
type sqliteStore struct {
	logger    zerolog.Logger
	dir       string
	db        *sql.DB
	tx        *sql.Tx
	numTables int
}

// SQLiteFactory returns a Factory creating SQLite backed stores in
// temporary directories under dir. An empty dir uses os.TempDir.
func SQLiteFactory(logger zerolog.Logger, dir string) Factory {
	return func(ctx context.Context) (Store, error) {
		return newSQLiteStore(ctx, logger, dir)
	}
}

func newSQLiteStore(
	ctx context.Context, logger zerolog.Logger, baseDir string,
) (_ *sqliteStore, retErr error) {
	if baseDir != "" {
		if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "error creating spill directory %s", baseDir)
		}
	}
	dir, err := os.MkdirTemp(baseDir, "datadiff-scratch-")
	if err != nil {
		return nil, errors.Wrapf(err, "error creating scratch directory")
	}
	defer func() {
		if retErr != nil {
			_ = os.RemoveAll(dir)
		}
	}()
	path := filepath.Join(dir, "scratch.db")
	db, err := sql.Open(
		"sqlite",
		path+"?_pragma=journal_mode(OFF)&_pragma=synchronous(OFF)&_pragma=busy_timeout(5000)",
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening scratch database")
	}
	// All work happens on the single transaction connection.
	db.SetMaxOpenConns(1)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "error starting scratch transaction")
	}
	logger.Debug().Str("path", path).Msgf("opened scratch database")
	return &sqliteStore{logger: logger, dir: dir, db: db, tx: tx}, nil
}

func (s *sqliteStore) nextTable(prefix string) string {
	s.numTables++
	return fmt.Sprintf("%s_%d", prefix, s.numTables)
}

func (s *sqliteStore) NewRowIndex(ctx context.Context) (RowIndex, error) {
	table := s.nextTable("row_index")
	if _, err := s.tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	k TEXT NOT NULL UNIQUE,
	vals BLOB NOT NULL,
	taken INTEGER NOT NULL DEFAULT 0
)`,
		table,
	)); err != nil {
		return nil, errors.Wrapf(err, "error creating scratch row index")
	}
	return &sqliteRowIndex{tx: s.tx, table: table}, nil
}

func (s *sqliteStore) NewTally(ctx context.Context) (Tally, error) {
	table := s.nextTable("tally")
	if _, err := s.tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	k TEXT NOT NULL UNIQUE,
	cnt INTEGER NOT NULL,
	marked INTEGER NOT NULL DEFAULT 0
)`,
		table,
	)); err != nil {
		return nil, errors.Wrapf(err, "error creating scratch tally")
	}
	return &sqliteTally{tx: s.tx, table: table}, nil
}

func (s *sqliteStore) Close() error {
	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		err = nil
	}
	err = errors.CombineErrors(err, s.db.Close())
	err = errors.CombineErrors(err, os.RemoveAll(s.dir))
	s.logger.Debug().Str("dir", s.dir).Msgf("removed scratch database")
	return err
}

type sqliteRowIndex struct {
	tx    *sql.Tx
	table string
}

func (r *sqliteRowIndex) Put(ctx context.Context, key string, row rowvalue.Row) (bool, error) {
	res, err := r.tx.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s (k, vals) VALUES (?, ?) ON CONFLICT (k) DO NOTHING`, r.table),
		key,
		encodeRow(row),
	)
	if err != nil {
		return false, errors.Wrapf(err, "error writing scratch row")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "error writing scratch row")
	}
	return n > 0, nil
}

func (r *sqliteRowIndex) Take(ctx context.Context, key string) (rowvalue.Row, bool, error) {
	var enc []byte
	if err := r.tx.QueryRowContext(
		ctx,
		fmt.Sprintf(`UPDATE %s SET taken = 1 WHERE k = ? AND taken = 0 RETURNING vals`, r.table),
		key,
	).Scan(&enc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "error reading scratch row")
	}
	row, err := decodeRow(enc)
	return row, err == nil, err
}

func (r *sqliteRowIndex) Remaining(
	ctx context.Context, fn func(key string, row rowvalue.Row) error,
) error {
	rows, err := r.tx.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT k, vals FROM %s WHERE taken = 0 ORDER BY seq`, r.table),
	)
	if err != nil {
		return errors.Wrapf(err, "error reading scratch rows")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k string
		var enc []byte
		if err := rows.Scan(&k, &enc); err != nil {
			return errors.Wrapf(err, "error reading scratch rows")
		}
		row, err := decodeRow(enc)
		if err != nil {
			return err
		}
		if err := fn(k, row); err != nil {
			return err
		}
	}
	return rows.Err()
}

type sqliteTally struct {
	tx    *sql.Tx
	table string
}

func (t *sqliteTally) Add(ctx context.Context, key string) (int64, error) {
	var cnt int64
	if err := t.tx.QueryRowContext(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (k, cnt) VALUES (?, 1) ON CONFLICT (k) DO UPDATE SET cnt = cnt + 1 RETURNING cnt`,
			t.table,
		),
		key,
	).Scan(&cnt); err != nil {
		return 0, errors.Wrapf(err, "error updating scratch tally")
	}
	return cnt, nil
}

func (t *sqliteTally) Mark(ctx context.Context, key string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET marked = 1 WHERE k = ?`, t.table), key)
	if err != nil {
		return false, errors.Wrapf(err, "error marking scratch tally")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "error marking scratch tally")
	}
	return n > 0, nil
}

func (t *sqliteTally) Unmarked(
	ctx context.Context, fn func(key string, count int64) error,
) error {
	rows, err := t.tx.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT k, cnt FROM %s WHERE marked = 0 ORDER BY seq`, t.table),
	)
	if err != nil {
		return errors.Wrapf(err, "error reading scratch tally")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k string
		var cnt int64
		if err := rows.Scan(&k, &cnt); err != nil {
			return errors.Wrapf(err, "error reading scratch tally")
		}
		if err := fn(k, cnt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// encodeRow writes each value as a validity byte followed by the
// uvarint length and raw bytes of its text. Values are arbitrary byte
// strings, so the encoding must not assume UTF-8.
func encodeRow(row rowvalue.Row) []byte {
	n := binary.MaxVarintLen64
	for _, v := range row {
		n += 1 + binary.MaxVarintLen64 + len(v.Text)
	}
	buf := make([]byte, 0, n)
	buf = binary.AppendUvarint(buf, uint64(len(row)))
	for _, v := range row {
		if !v.Valid {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = binary.AppendUvarint(buf, uint64(len(v.Text)))
		buf = append(buf, v.Text...)
	}
	return buf
}

var errCorruptRow = errors.New("corrupt scratch row")

func decodeRow(enc []byte) (rowvalue.Row, error) {
	n, sz := binary.Uvarint(enc)
	if sz <= 0 || n > uint64(len(enc)) {
		return nil, errCorruptRow
	}
	enc = enc[sz:]
	row := make(rowvalue.Row, n)
	for i := range row {
		if len(enc) == 0 {
			return nil, errCorruptRow
		}
		valid := enc[0]
		enc = enc[1:]
		if valid == 0 {
			continue
		}
		l, sz := binary.Uvarint(enc)
		if sz <= 0 || l > uint64(len(enc)-sz) {
			return nil, errCorruptRow
		}
		row[i] = rowvalue.Of(string(enc[sz : sz+int(l)]))
		enc = enc[sz+int(l):]
	}
	if len(enc) != 0 {
		return nil, errCorruptRow
	}
	return row, nil
}
