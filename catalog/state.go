package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type sourceRow struct {
	source               Source
	createdAt, updatedAt int64
}

func (r *sourceRow) dest() []interface{} {
	return []interface{}{&r.source.ID, &r.source.Name, &r.source.URI, &r.createdAt, &r.updatedAt}
}

func (r *sourceRow) value() Source {
	r.source.CreatedAt, r.source.UpdatedAt = time.Unix(r.createdAt, 0), time.Unix(r.updatedAt, 0)
	return r.source
}

type schemaRow struct {
	schema               Schema
	createdAt, updatedAt int64
	source               sourceRow
}

func (r *schemaRow) dest() []interface{} {
	return append([]interface{}{&r.schema.ID, &r.schema.Name, &r.createdAt, &r.updatedAt}, r.source.dest()...)
}

func (r *schemaRow) value() Schema {
	r.schema.CreatedAt, r.schema.UpdatedAt = time.Unix(r.createdAt, 0), time.Unix(r.updatedAt, 0)
	r.schema.Source = r.source.value()
	return r.schema
}

type tableRow struct {
	table                Table
	createdAt, updatedAt int64
	schema               schemaRow
}

func (r *tableRow) dest() []interface{} {
	return append([]interface{}{&r.table.ID, &r.table.Name, &r.createdAt, &r.updatedAt}, r.schema.dest()...)
}

func (r *tableRow) value() Table {
	r.table.CreatedAt, r.table.UpdatedAt = time.Unix(r.createdAt, 0), time.Unix(r.updatedAt, 0)
	r.table.Schema = r.schema.value()
	return r.table
}

type columnRow struct {
	column               Column
	createdAt, updatedAt int64
	table                tableRow
}

func (r *columnRow) dest() []interface{} {
	return append([]interface{}{&r.column.ID, &r.column.Name, &r.column.DataType, &r.column.SortOrder, &r.createdAt, &r.updatedAt}, r.table.dest()...)
}

func (r *columnRow) value() Column {
	r.column.CreatedAt, r.column.UpdatedAt = time.Unix(r.createdAt, 0), time.Unix(r.updatedAt, 0)
	r.column.Table = r.table.value()
	return r.column
}

// filter accumulates the WHERE clause of a catalog query
type filter struct {
	conditions []string
	args       []interface{}
}

func (f *filter) add(condition string, args ...interface{}) *filter {
	f.conditions = append(f.conditions, condition)
	f.args = append(f.args, args...)
	return f
}

// addIf adds condition only when value is not empty.
func (f *filter) addIf(condition string, value string) *filter {
	if value == "" {
		return f
	}
	return f.add(condition, value)
}

func (f *filter) where() string {
	if len(f.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conditions, " AND ")
}

// AddSource creates a new source.
func (c *Catalog) AddSource(ctx context.Context, name, uri string) (Source, error) {
	var source Source
	err := c.Session(ctx, func(ctx context.Context) error {
		now, createdAt := nowSeconds()
		result, err := c.querier(ctx).ExecContext(ctx, insertSource, name, uri, now, now)
		if err != nil {
			return translateInsertError(err, "source "+name)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		source = Source{ID: id, Name: name, URI: uri, CreatedAt: createdAt, UpdatedAt: createdAt}
		return nil
	})
	if err != nil {
		return Source{}, err
	}
	c.logger(ctx).WithFields(logrus.Fields{"source": name, "id": source.ID}).Debug("Added source")
	return source, nil
}

// AddSchema creates a new schema in source.
func (c *Catalog) AddSchema(ctx context.Context, name string, source Source) (Schema, error) {
	var schema Schema
	err := c.Session(ctx, func(ctx context.Context) error {
		now, createdAt := nowSeconds()
		result, err := c.querier(ctx).ExecContext(ctx, insertSchema, name, source.ID, now, now)
		if err != nil {
			return translateInsertError(err, "schema "+FormatFQDN([]string{source.Name, name}))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		schema = Schema{ID: id, Name: name, Source: source, CreatedAt: createdAt, UpdatedAt: createdAt}
		return nil
	})
	if err != nil {
		return Schema{}, err
	}
	c.logger(ctx).WithFields(logrus.Fields{"schema": FormatFQDN(schema.FQDN()), "id": schema.ID}).Debug("Added schema")
	return schema, nil
}

// AddTable creates a new table in schema.
func (c *Catalog) AddTable(ctx context.Context, name string, schema Schema) (Table, error) {
	var table Table
	err := c.Session(ctx, func(ctx context.Context) error {
		now, createdAt := nowSeconds()
		result, err := c.querier(ctx).ExecContext(ctx, insertTable, name, schema.ID, now, now)
		if err != nil {
			return translateInsertError(err, "table "+FormatFQDN(append(schema.FQDN(), name)))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		table = Table{ID: id, Name: name, Schema: schema, CreatedAt: createdAt, UpdatedAt: createdAt}
		return nil
	})
	if err != nil {
		return Table{}, err
	}
	c.logger(ctx).WithFields(logrus.Fields{"table": FormatFQDN(table.FQDN()), "id": table.ID}).Debug("Added table")
	return table, nil
}

// AddColumn creates a new column in table.
func (c *Catalog) AddColumn(ctx context.Context, name, dataType string, sortOrder int, table Table) (Column, error) {
	var column Column
	err := c.Session(ctx, func(ctx context.Context) error {
		now, createdAt := nowSeconds()
		result, err := c.querier(ctx).ExecContext(ctx, insertColumn, name, dataType, sortOrder, table.ID, now, now)
		if err != nil {
			return translateInsertError(err, "column "+FormatFQDN(append(table.FQDN(), name)))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		column = Column{
			ID:        id,
			Name:      name,
			DataType:  dataType,
			SortOrder: sortOrder,
			Table:     table,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		return nil
	})
	if err != nil {
		return Column{}, err
	}
	return column, nil
}

func (c *Catalog) getSource(ctx context.Context, f *filter) (Source, error) {
	var row sourceRow
	err := c.querier(ctx).QueryRowContext(ctx, selectSources+f.where()+" ORDER BY so.id LIMIT 1;", f.args...).Scan(row.dest()...)
	if err == sql.ErrNoRows {
		return Source{}, ErrSourceNotFound
	}
	if err != nil {
		return Source{}, err
	}
	return row.value(), nil
}

// GetSource gets the source with the given name.
func (c *Catalog) GetSource(ctx context.Context, name string) (Source, error) {
	return c.getSource(ctx, new(filter).add("so.name = ?", name))
}

// GetSourceByID gets the source with the given ID.
func (c *Catalog) GetSourceByID(ctx context.Context, id int64) (Source, error) {
	return c.getSource(ctx, new(filter).add("so.id = ?", id))
}

// GetSourceByURI gets the source registered for uri. If several sources share the URI, the oldest
// is returned.
func (c *Catalog) GetSourceByURI(ctx context.Context, uri string) (Source, error) {
	return c.getSource(ctx, new(filter).add("so.uri = ?", uri))
}

func (c *Catalog) querySources(ctx context.Context, f *filter) ([]Source, error) {
	rows, err := c.querier(ctx).QueryContext(ctx, selectSources+f.where()+orderSources, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var row sourceRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		sources = append(sources, row.value())
	}
	return sources, rows.Err()
}

// GetSources lists every source, by name.
func (c *Catalog) GetSources(ctx context.Context) ([]Source, error) {
	return c.querySources(ctx, new(filter))
}

func (c *Catalog) getSchema(ctx context.Context, f *filter) (Schema, error) {
	var row schemaRow
	err := c.querier(ctx).QueryRowContext(ctx, selectSchemata+f.where()+";", f.args...).Scan(row.dest()...)
	if err == sql.ErrNoRows {
		return Schema{}, ErrSchemaNotFound
	}
	if err != nil {
		return Schema{}, err
	}
	return row.value(), nil
}

// GetSchema gets schema schemaName of source sourceName.
func (c *Catalog) GetSchema(ctx context.Context, sourceName, schemaName string) (Schema, error) {
	return c.getSchema(ctx, new(filter).add("so.name = ?", sourceName).add("sc.name = ?", schemaName))
}

// GetSchemaByID gets the schema with the given ID.
func (c *Catalog) GetSchemaByID(ctx context.Context, id int64) (Schema, error) {
	return c.getSchema(ctx, new(filter).add("sc.id = ?", id))
}

func (c *Catalog) querySchemata(ctx context.Context, f *filter) ([]Schema, error) {
	rows, err := c.querier(ctx).QueryContext(ctx, selectSchemata+f.where()+orderSchemata, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemata []Schema
	for rows.Next() {
		var row schemaRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		schemata = append(schemata, row.value())
	}
	return schemata, rows.Err()
}

// GetSchemas lists the schemata of a source, by name.
func (c *Catalog) GetSchemas(ctx context.Context, sourceName string) ([]Schema, error) {
	return c.querySchemata(ctx, new(filter).add("so.name = ?", sourceName))
}

func (c *Catalog) getTable(ctx context.Context, f *filter) (Table, error) {
	var row tableRow
	err := c.querier(ctx).QueryRowContext(ctx, selectTables+f.where()+";", f.args...).Scan(row.dest()...)
	if err == sql.ErrNoRows {
		return Table{}, ErrTableNotFound
	}
	if err != nil {
		return Table{}, err
	}
	return row.value(), nil
}

// GetTable gets a table by its fully qualified name.
func (c *Catalog) GetTable(ctx context.Context, sourceName, schemaName, tableName string) (Table, error) {
	f := new(filter).add("so.name = ?", sourceName).add("sc.name = ?", schemaName).add("t.name = ?", tableName)
	return c.getTable(ctx, f)
}

// GetTableByID gets the table with the given ID.
func (c *Catalog) GetTableByID(ctx context.Context, id int64) (Table, error) {
	return c.getTable(ctx, new(filter).add("t.id = ?", id))
}

func (c *Catalog) queryTables(ctx context.Context, f *filter) ([]Table, error) {
	rows, err := c.querier(ctx).QueryContext(ctx, selectTables+f.where()+orderTables, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var row tableRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		tables = append(tables, row.value())
	}
	return tables, rows.Err()
}

// GetTables lists the tables of a source, optionally restricted to one schema (empty schemaName
// means every schema). Tables are ordered by schema and name.
func (c *Catalog) GetTables(ctx context.Context, sourceName, schemaName string) ([]Table, error) {
	f := new(filter).add("so.name = ?", sourceName).addIf("sc.name = ?", schemaName)
	return c.queryTables(ctx, f)
}

func (c *Catalog) getColumn(ctx context.Context, f *filter) (Column, error) {
	var row columnRow
	err := c.querier(ctx).QueryRowContext(ctx, selectColumns+f.where()+";", f.args...).Scan(row.dest()...)
	if err == sql.ErrNoRows {
		return Column{}, ErrColumnNotFound
	}
	if err != nil {
		return Column{}, err
	}
	return row.value(), nil
}

// GetColumn gets a column by its fully qualified name.
func (c *Catalog) GetColumn(ctx context.Context, sourceName, schemaName, tableName, columnName string) (Column, error) {
	f := new(filter).
		add("so.name = ?", sourceName).
		add("sc.name = ?", schemaName).
		add("t.name = ?", tableName).
		add("c.name = ?", columnName)
	return c.getColumn(ctx, f)
}

// GetColumnByID gets the column with the given ID.
func (c *Catalog) GetColumnByID(ctx context.Context, id int64) (Column, error) {
	return c.getColumn(ctx, new(filter).add("c.id = ?", id))
}

func (c *Catalog) queryColumns(ctx context.Context, f *filter) ([]Column, error) {
	rows, err := c.querier(ctx).QueryContext(ctx, selectColumns+f.where()+orderColumns, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var row columnRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		columns = append(columns, row.value())
	}
	return columns, rows.Err()
}

// GetColumns lists the columns of a source, optionally restricted to a schema and a table (empty
// names mean no restriction). Columns are ordered by schema, table and sort order.
func (c *Catalog) GetColumns(ctx context.Context, sourceName, schemaName, tableName string) ([]Column, error) {
	f := new(filter).
		add("so.name = ?", sourceName).
		addIf("sc.name = ?", schemaName).
		addIf("t.name = ?", tableName)
	return c.queryColumns(ctx, f)
}

// GetColumnsForTable lists the columns of table. If columnNames is not empty, only columns with
// those names are returned. If newerThan is not zero, only columns updated after it are returned.
func (c *Catalog) GetColumnsForTable(ctx context.Context, table Table, columnNames []string, newerThan time.Time) ([]Column, error) {
	f := new(filter).add("t.id = ?", table.ID)
	if len(columnNames) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columnNames)), ", ")
		args := make([]interface{}, len(columnNames))
		for i, name := range columnNames {
			args[i] = name
		}
		f.add("c.name IN ("+placeholders+")", args...)
	}
	if !newerThan.IsZero() {
		f.add("c.updated_at > ?", newerThan.Unix())
	}
	return c.queryColumns(ctx, f)
}

// UpdateSource sets the default schema of source, replacing any previous default.
func (c *Catalog) UpdateSource(ctx context.Context, source Source, defaultSchema Schema) (DefaultSchema, error) {
	var result DefaultSchema
	err := c.Session(ctx, func(ctx context.Context) error {
		now, _ := nowSeconds()
		_, err := c.querier(ctx).ExecContext(ctx, upsertDefaultSchema, source.ID, defaultSchema.ID, now, now)
		if err != nil {
			return errors.Wrapf(err, "set default schema of %s", source.Name)
		}
		result, err = c.GetDefaultSchema(ctx, source)
		return err
	})
	if err != nil {
		return DefaultSchema{}, err
	}
	c.logger(ctx).WithFields(logrus.Fields{"source": source.Name, "schema": defaultSchema.Name}).Debug("Updated default schema")
	return result, nil
}

// GetDefaultSchema gets the default schema of source.
func (c *Catalog) GetDefaultSchema(ctx context.Context, source Source) (DefaultSchema, error) {
	var result DefaultSchema
	var createdAt, updatedAt int64
	var schema schemaRow
	dest := append([]interface{}{&createdAt, &updatedAt}, schema.dest()...)
	err := c.querier(ctx).QueryRowContext(ctx, selectDefaultSchema, source.ID).Scan(dest...)
	if err == sql.ErrNoRows {
		return DefaultSchema{}, ErrDefaultSchemaNotFound
	}
	if err != nil {
		return DefaultSchema{}, err
	}
	result.Schema = schema.value()
	result.Source = result.Schema.Source
	result.CreatedAt, result.UpdatedAt = time.Unix(createdAt, 0), time.Unix(updatedAt, 0)
	return result, nil
}

// RemoveSource deletes the named source along with its schemata, tables, columns and default
// schema.
func (c *Catalog) RemoveSource(ctx context.Context, name string) error {
	return c.Session(ctx, func(ctx context.Context) error {
		source, err := c.GetSource(ctx, name)
		if err != nil {
			return err
		}
		for _, statement := range []string{
			deleteSourceColumns,
			deleteSourceTables,
			deleteSourceDefaultSchema,
			deleteSourceSchemata,
			deleteSource,
		} {
			if _, err := c.querier(ctx).ExecContext(ctx, statement, source.ID); err != nil {
				return errors.Wrapf(err, "remove source %s", name)
			}
		}
		c.logger(ctx).WithField("source", name).Debug("Removed source")
		return nil
	})
}
