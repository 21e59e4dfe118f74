// Package dbconn manages connections to the databases relations are read
// from.
package dbconn

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/lexbase"
	"github.com/cockroachdb/datadiff/retry"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type ID string

// ErrMalformedConnStr marks connection strings which can never succeed.
var ErrMalformedConnStr = errors.New("malformed connection string")

type OrderedConns [2]Conn

type Dialect string

const (
	DialectPostgres  Dialect = "PostgreSQL"
	DialectCockroach Dialect = "CockroachDB"
	DialectMySQL     Dialect = "MySQL"
	DialectFake      Dialect = "fake"
)

type Conn interface {
	ID() ID
	// Close closes the connection.
	Close(ctx context.Context) error
	// Clone creates a new Conn with the same underlying connections arguments.
	Clone(ctx context.Context) (Conn, error)
	// Database is the database the connection is bound to.
	Database() string
	ConnStr() string
	Dialect() Dialect
}

// IsSQLURL reports whether connStr names a database this package can
// connect to.
func IsSQLURL(connStr string) bool {
	scheme, _, _ := strings.Cut(connStr, "://")
	return strings.Contains(scheme, "postgres") || strings.Contains(scheme, "mysql") ||
		(!strings.Contains(connStr, "://") && looksLikeMySQLDSN(connStr))
}

func Connect(ctx context.Context, preferredID ID, connStr string) (Conn, error) {
	id := preferredID
	if len(connStr) == 0 {
		return nil, errors.Mark(errors.Newf("empty connection string"), ErrMalformedConnStr)
	}

	before := strings.SplitN(connStr, "://", 2)

	switch {
	case len(before) == 2 && strings.Contains(before[0], "postgres"):
		u, err := url.Parse(connStr)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "unable to parse url"), ErrMalformedConnStr)
		}
		if id == "" {
			id = ID(u.Hostname() + ":" + u.Port())
		}
		return ConnectPG(ctx, id, connStr)
	case len(before) == 2 && strings.Contains(before[0], "mysql"),
		len(before) == 1 && looksLikeMySQLDSN(connStr):
		return ConnectMySQL(ctx, id, connStr)
	}
	return nil, errors.Mark(errors.Newf("unrecognised scheme %s", before[0]), ErrMalformedConnStr)
}

// ConnectWithRetry connects, retrying transient failures with backoff.
// Malformed connection strings are not retried.
func ConnectWithRetry(
	ctx context.Context, logger zerolog.Logger, id ID, connStr string, settings retry.Settings,
) (Conn, error) {
	r, err := retry.NewRetry(settings)
	if err != nil {
		return nil, err
	}
	var conn Conn
	if err := r.Do(ctx, func() error {
		var err error
		conn, err = Connect(ctx, id, connStr)
		if errors.Is(err, ErrMalformedConnStr) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error) {
		logger.Warn().Err(err).Str("conn", string(id)).Int("attempt", r.Iteration).Msgf("error connecting, retrying")
	}); err != nil {
		return nil, err
	}
	return conn, nil
}

// TestOnlyCleanDatabase returns a connection to a clean database.
// This is recommended for test use only
func TestOnlyCleanDatabase(ctx context.Context, id ID, url string, dbName string) (Conn, error) {
	c, err := Connect(ctx, id, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close(ctx) }()

	switch c := c.(type) {
	case *PGConn:
		if _, err := c.Exec(ctx, "DROP DATABASE IF EXISTS "+lexbase.EscapeSQLIdent(dbName)); err != nil {
			return nil, err
		}
		if _, err := c.Exec(ctx, "CREATE DATABASE "+lexbase.EscapeSQLIdent(dbName)); err != nil {
			return nil, err
		}
		cfgCopy := c.Config().Copy()
		cfgCopy.Database = dbName
		return ConnectPGConfig(ctx, c.id, cfgCopy, c.connStr)
	case *MySQLConn:
		if _, err := c.ExecContext(ctx, "DROP DATABASE IF EXISTS `"+dbName+"`"); err != nil {
			return nil, err
		}
		if _, err := c.ExecContext(ctx, "CREATE DATABASE `"+dbName+"`"); err != nil {
			return nil, err
		}
		cfg, err := ParseMySQL(c.connStr)
		if err != nil {
			return nil, err
		}
		cfg.DBName = dbName
		return ConnectMySQL(ctx, c.id, cfg.FormatDSN())
	}
	return nil, errors.AssertionFailedf("clean database not supported for %T", c)
}
