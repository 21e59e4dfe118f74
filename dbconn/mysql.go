package dbconn

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

type MySQLConn struct {
	id      ID
	connStr string
	*sql.DB
	database string
	// clone is set on connections sharing another connection's pool.
	clone bool
}

var _ Conn = (*MySQLConn)(nil)

func ConnectMySQL(ctx context.Context, id ID, connStr string) (*MySQLConn, error) {
	cfg, err := ParseMySQL(connStr)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = ID(cfg.Addr)
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "error connecting to %s", id)
	}
	return NewMySQLConn(id, connStr, db, cfg.DBName), nil
}

// NewMySQLConn wraps an open database handle, which the connection owns.
func NewMySQLConn(id ID, connStr string, db *sql.DB, database string) *MySQLConn {
	return &MySQLConn{id: id, connStr: connStr, DB: db, database: database}
}

func (c *MySQLConn) ID() ID {
	return c.id
}

func (c *MySQLConn) Close(ctx context.Context) error {
	if c.clone {
		return nil
	}
	return c.DB.Close()
}

// Clone shares the underlying pool, which is safe for concurrent use.
func (c *MySQLConn) Clone(ctx context.Context) (Conn, error) {
	ret := *c
	ret.clone = true
	return &ret, nil
}

func (c *MySQLConn) Database() string {
	return c.database
}

func (c *MySQLConn) ConnStr() string {
	return c.connStr
}

func (c *MySQLConn) Dialect() Dialect {
	return DialectMySQL
}
