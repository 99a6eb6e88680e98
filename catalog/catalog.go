// Package catalog stores metadata about scanned databases: sources, their schemata, the tables in
// each schema and the columns of each table.
package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/simiotics/sqlcli/state"
	"github.com/simiotics/sqlcli/utils"
)

var (
	// ErrSourceNotFound - a single row lookup of a source returned no rows
	ErrSourceNotFound = errors.New("Could not find the specified source")
	// ErrSchemaNotFound - a single row lookup of a schema returned no rows
	ErrSchemaNotFound = errors.New("Could not find the specified schema")
	// ErrTableNotFound - a single row lookup of a table returned no rows
	ErrTableNotFound = errors.New("Could not find the specified table")
	// ErrColumnNotFound - a single row lookup of a column returned no rows
	ErrColumnNotFound = errors.New("Could not find the specified column")
	// ErrDefaultSchemaNotFound - the source has no default schema
	ErrDefaultSchemaNotFound = errors.New("The source has no default schema")
	// ErrAmbiguousTable - SearchTable matched more than one table
	ErrAmbiguousTable = errors.New("More than one table matched the search")
	// ErrAlreadyExists - an insert violated a uniqueness constraint
	ErrAlreadyExists = errors.New("An object with that name already exists")
)

// Source - a database registered in the catalog
type Source struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FQDN returns the fully qualified name of the source: its name.
func (s Source) FQDN() []string {
	return []string{s.Name}
}

// Schema - a schema of a source
type Schema struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FQDN returns (source, schema).
func (s Schema) FQDN() []string {
	return []string{s.Source.Name, s.Name}
}

// Table - a table in a schema
type Table struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Schema    Schema    `json:"schema"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FQDN returns (source, schema, table).
func (t Table) FQDN() []string {
	return []string{t.Schema.Source.Name, t.Schema.Name, t.Name}
}

// Column - a column of a table. SortOrder is the column's position in the table, from 0.
type Column struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DataType  string    `json:"data_type"`
	SortOrder int       `json:"sort_order"`
	Table     Table     `json:"table"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FQDN returns (source, schema, table, column).
func (c Column) FQDN() []string {
	return []string{c.Table.Schema.Source.Name, c.Table.Schema.Name, c.Table.Name, c.Name}
}

// Less orders columns by source, schema, table and sort order.
func (c Column) Less(other Column) bool {
	a, b := c.FQDN()[:3], other.FQDN()[:3]
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return c.SortOrder < other.SortOrder
}

// DefaultSchema - the schema used for a source when none is specified
type DefaultSchema struct {
	Source    Source    `json:"source"`
	Schema    Schema    `json:"schema"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormatFQDN joins a fully qualified name with dots.
func FormatFQDN(fqdn []string) string {
	return strings.Join(fqdn, ".")
}

// Catalog - a handle on a catalog database
type Catalog struct {
	URI string
	db  *sql.DB
}

// Open opens (and migrates) the catalog database at uri.
func Open(uri string) (*Catalog, error) {
	db, err := state.Open(uri)
	if err != nil {
		return nil, err
	}
	return &Catalog{URI: uri, db: db}, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

type sessionKey struct {
	catalog *Catalog
}

type session struct {
	tx    *sql.Tx
	depth int
}

// Session runs handler inside a catalog transaction. Catalog calls made with the context passed
// to handler use that transaction. Nested Session calls on that context reuse the transaction,
// and only the outermost call commits (when handler returns nil) or rolls back.
func (c *Catalog) Session(ctx context.Context, handler func(ctx context.Context) error) error {
	logger := utils.Logger().WithField("catalog", c.URI)

	if current, ok := ctx.Value(sessionKey{c}).(*session); ok {
		current.depth++
		logger.WithField("depth", current.depth).Debug("Reusing catalog session")
		defer func() { current.depth-- }()
		return handler(ctx)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin catalog session")
	}
	logger.Debug("Started new catalog session")
	current := &session{tx: tx, depth: 1}

	err = handler(context.WithValue(ctx, sessionKey{c}, current))
	if err != nil {
		tx.Rollback()
		logger.WithField("error", err).Debug("Rolled back catalog session")
		return err
	}
	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "commit catalog session")
	}
	logger.Debug("Committed catalog session")
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (c *Catalog) querier(ctx context.Context) querier {
	if current, ok := ctx.Value(sessionKey{c}).(*session); ok {
		return current.tx
	}
	return c.db
}

func (c *Catalog) logger(ctx context.Context) *logrus.Entry {
	_, inSession := ctx.Value(sessionKey{c}).(*session)
	return utils.Logger().WithFields(logrus.Fields{"catalog": c.URI, "session": inSession})
}

// translateInsertError maps uniqueness violations to ErrAlreadyExists.
func translateInsertError(err error, what string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return errors.Wrap(ErrAlreadyExists, what)
	}
	return errors.Wrapf(err, "insert %s", what)
}

func nowSeconds() (int64, time.Time) {
	now := time.Now().Unix()
	return now, time.Unix(now, 0)
}
