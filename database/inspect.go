package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/lib/pq"
)

// ColumnInfo - a column as reported by the database
type ColumnInfo struct {
	Name       string
	Type       string
	Nullable   bool
	Default    sql.NullString
	PrimaryKey bool
}

// SQLiteMainSchema is the schema SQLite places the tables of the opened file in
const SQLiteMainSchema = "main"

var postgresSchemata = `SELECT schema_name FROM information_schema.schemata
	WHERE schema_name NOT LIKE 'pg\_%' AND schema_name <> 'information_schema'
	ORDER BY schema_name;`

var postgresTables = `SELECT table_name FROM information_schema.tables
	WHERE table_schema = $1 AND table_type = 'BASE TABLE'
	ORDER BY table_name;`

var postgresColumns = `SELECT c.column_name, c.data_type, c.is_nullable = 'YES', c.column_default,
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND kcu.column_name = c.column_name
	)
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position;`

var mysqlSchemata = `SELECT schema_name FROM information_schema.schemata
	WHERE schema_name NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
	ORDER BY schema_name;`

var mysqlTables = `SELECT table_name FROM information_schema.tables
	WHERE table_schema = ? AND table_type = 'BASE TABLE'
	ORDER BY table_name;`

var mysqlColumns = `SELECT column_name, column_type, is_nullable = 'YES', column_default, column_key = 'PRI'
	FROM information_schema.columns
	WHERE table_schema = ? AND table_name = ?
	ORDER BY ordinal_position;`

// Schemata lists the schemata of the database. System schemata are omitted.
func (d *Database) Schemata(ctx context.Context) ([]string, error) {
	db, err := d.DB()
	if err != nil {
		return nil, err
	}

	switch d.Dialect {
	case DialectSQLite:
		rows, err := db.QueryContext(ctx, "PRAGMA database_list;")
		if err != nil {
			return nil, errors.Wrap(err, "list sqlite databases")
		}
		defer rows.Close()

		var schemata []string
		for rows.Next() {
			var seq int
			var name string
			var file sql.NullString
			if err := rows.Scan(&seq, &name, &file); err != nil {
				return nil, err
			}
			if name != "temp" {
				schemata = append(schemata, name)
			}
		}
		return schemata, rows.Err()
	case DialectPostgres:
		return queryStrings(ctx, db, postgresSchemata)
	case DialectMySQL:
		return queryStrings(ctx, db, mysqlSchemata)
	}
	return nil, errors.Wrap(ErrUnsupportedDriver, d.Dialect)
}

// Tables lists the tables in schema. For SQLite an empty schema means the main database.
func (d *Database) Tables(ctx context.Context, schema string) ([]string, error) {
	db, err := d.DB()
	if err != nil {
		return nil, err
	}

	switch d.Dialect {
	case DialectSQLite:
		if schema == "" {
			schema = SQLiteMainSchema
		}
		query := fmt.Sprintf(
			"SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite~_%%' ESCAPE '~' ORDER BY name;",
			pq.QuoteIdentifier(schema),
		)
		return queryStrings(ctx, db, query)
	case DialectPostgres:
		return queryStrings(ctx, db, postgresTables, schema)
	case DialectMySQL:
		return queryStrings(ctx, db, mysqlTables, schema)
	}
	return nil, errors.Wrap(ErrUnsupportedDriver, d.Dialect)
}

// Columns lists the columns of schema.table in declaration order.
func (d *Database) Columns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	db, err := d.DB()
	if err != nil {
		return nil, err
	}

	switch d.Dialect {
	case DialectSQLite:
		if schema == "" {
			schema = SQLiteMainSchema
		}
		query := fmt.Sprintf("PRAGMA %s.table_info(%s);", pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table))
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return nil, errors.Wrapf(err, "table info for %s.%s", schema, table)
		}
		defer rows.Close()

		var columns []ColumnInfo
		for rows.Next() {
			var cid, notNull, pk int
			var column ColumnInfo
			if err := rows.Scan(&cid, &column.Name, &column.Type, &notNull, &column.Default, &pk); err != nil {
				return nil, err
			}
			column.Nullable = notNull == 0
			column.PrimaryKey = pk > 0
			columns = append(columns, column)
		}
		return columns, rows.Err()
	case DialectPostgres:
		return queryColumns(ctx, db, postgresColumns, schema, table)
	case DialectMySQL:
		return queryColumns(ctx, db, mysqlColumns, schema, table)
	}
	return nil, errors.Wrap(ErrUnsupportedDriver, d.Dialect)
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		result = append(result, value)
	}
	return result, rows.Err()
}

func queryColumns(ctx context.Context, db *sql.DB, query, schema, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, errors.Wrapf(err, "columns for %s.%s", schema, table)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var column ColumnInfo
		if err := rows.Scan(&column.Name, &column.Type, &column.Nullable, &column.Default, &column.PrimaryKey); err != nil {
			return nil, err
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}
