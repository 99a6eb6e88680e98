// Package database connects to user databases addressed by URL and runs queries against them.
package database

import (
	"context"
	"database/sql"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/klauspost/pgzip"
	"github.com/sirupsen/logrus"

	// sqlite3 driver registered under database/sql on import
	_ "github.com/mattn/go-sqlite3"

	"github.com/simiotics/sqlcli/dburl"
	"github.com/simiotics/sqlcli/records"
	"github.com/simiotics/sqlcli/utils"
)

// URLEnvVar - environment variable consulted by Open when it is given an empty URL
const URLEnvVar = "DATABASE_URL"

// Dialects understood by the introspection queries
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

var (
	// ErrMissingURL - Open was called with an empty URL and DATABASE_URL is not set
	ErrMissingURL = errors.New("You must provide a database URL or set DATABASE_URL")
	// ErrUnsupportedDriver - the URL parsed, but sqlcli has no Go driver for its database
	ErrUnsupportedDriver = errors.New("Unsupported database driver")
	// ErrDatabaseClosed - the Database was used after Close
	ErrDatabaseClosed = errors.New("Database closed")
	// ErrFileNotFound - a query file does not exist
	ErrFileNotFound = errors.New("Query file not found")
	// ErrIsDirectory - a query file path points at a directory
	ErrIsDirectory = errors.New("Query file path is a directory")
)

// Database - a pool of connections to the database at URL
type Database struct {
	URL     *dburl.URL
	Dialect string

	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open parses dbURL and opens a connection pool for it. If dbURL is empty, the DATABASE_URL
// environment variable is used instead.
func Open(dbURL string) (*Database, error) {
	if dbURL == "" {
		dbURL = os.Getenv(URLEnvVar)
	}
	if dbURL == "" {
		return nil, ErrMissingURL
	}

	u, err := dburl.Parse(dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	logger := utils.Logger().WithFields(logrus.Fields{"url": u.Redacted(), "driver": u.Driver})

	var db *sql.DB
	switch u.Driver {
	case DialectSQLite:
		db, err = sql.Open("sqlite3", u.DSN)
	case DialectPostgres:
		var config *pgx.ConnConfig
		config, err = pgx.ParseConfig(u.DSN)
		if err == nil {
			db = stdlib.OpenDB(*config)
		}
	case DialectMySQL:
		var config *mysql.Config
		config, err = mysql.ParseDSN(u.DSN)
		if err == nil {
			config.ParseTime = true
			db, err = sql.Open("mysql", config.FormatDSN())
		}
	default:
		logger.Debug("No Go driver for database")
		return nil, errors.Wrap(ErrUnsupportedDriver, u.Driver)
	}
	if err != nil {
		logger.Debugf("Error opening database: %s", err.Error())
		return nil, errors.Wrap(err, "open database")
	}
	logger.Debug("Opened database")

	return &Database{URL: u, Dialect: u.Driver, db: db}, nil
}

// Close closes every connection in the pool. Further use of the Database returns
// ErrDatabaseClosed.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// DB returns the underlying pool.
func (d *Database) DB() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDatabaseClosed
	}
	return d.db, nil
}

// Conn reserves a single connection from the pool. The caller must close it.
func (d *Database) Conn(ctx context.Context) (*sql.Conn, error) {
	db, err := d.DB()
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx)
}

// Execute runs query and returns its rows as a lazily fetched Collection. The Collection holds a
// connection until it is exhausted or closed.
func (d *Database) Execute(ctx context.Context, query string, args ...interface{}) (*records.Collection, error) {
	db, err := d.DB()
	if err != nil {
		return nil, err
	}
	utils.Logger().WithField("dialect", d.Dialect).Debugf("Executing query: %s", query)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "execute query")
	}
	return records.FromRows(rows)
}

// ExecuteAll is Execute, fetching every row before it returns.
func (d *Database) ExecuteAll(ctx context.Context, query string, args ...interface{}) (*records.Collection, error) {
	collection, err := d.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if _, err := collection.All(); err != nil {
		return nil, err
	}
	return collection, nil
}

// QueryFile is Execute with the query read from the file at path. Files ending in .gz are
// decompressed.
func (d *Database) QueryFile(ctx context.Context, path string, args ...interface{}) (*records.Collection, error) {
	query, err := ReadQueryFile(path)
	if err != nil {
		return nil, err
	}
	return d.Execute(ctx, query, args...)
}

// BulkQuery executes query once for each set of arguments, in a single transaction.
func (d *Database) BulkQuery(ctx context.Context, query string, argSets [][]interface{}) error {
	return d.Transaction(ctx, func(tx *sql.Tx) error {
		statement, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return errors.Wrap(err, "prepare bulk query")
		}
		defer statement.Close()

		for i, args := range argSets {
			if _, err := statement.ExecContext(ctx, args...); err != nil {
				return errors.Wrapf(err, "bulk query argument set %d", i)
			}
		}
		return nil
	})
}

// BulkQueryFile is BulkQuery with the query read from the file at path.
func (d *Database) BulkQueryFile(ctx context.Context, path string, argSets [][]interface{}) error {
	query, err := ReadQueryFile(path)
	if err != nil {
		return err
	}
	return d.BulkQuery(ctx, query, argSets)
}

// Transaction runs handler inside a transaction. The transaction is committed if handler returns
// nil and rolled back otherwise.
func (d *Database) Transaction(ctx context.Context, handler func(tx *sql.Tx) error) error {
	db, err := d.DB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	err = handler(tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ReadQueryFile reads a query from the file at path.
func ReadQueryFile(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", errors.Wrap(ErrFileNotFound, path)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.Wrap(ErrIsDirectory, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return "", errors.Wrapf(err, "decompress %s", path)
		}
		defer gz.Close()
		reader = gz
	}

	contents, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(contents), nil
}
