package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// Search patterns use SQL LIKE syntax: % matches any run of characters, _ any single character.
// The first pattern of each search always applies, so an empty one matches nothing. The optional
// patterns after it (schemaLike, sourceLike, ...) place no restriction when empty.

// SearchSources lists the sources whose names match sourceLike.
func (c *Catalog) SearchSources(ctx context.Context, sourceLike string) ([]Source, error) {
	return c.querySources(ctx, new(filter).add("so.name LIKE ?", sourceLike))
}

// SearchSchema lists the schemata matching schemaLike, in sources matching sourceLike.
func (c *Catalog) SearchSchema(ctx context.Context, schemaLike, sourceLike string) ([]Schema, error) {
	f := new(filter).add("sc.name LIKE ?", schemaLike).addIf("so.name LIKE ?", sourceLike)
	return c.querySchemata(ctx, f)
}

// SearchTables lists the tables matching tableLike, in schemata matching schemaLike and sources
// matching sourceLike.
func (c *Catalog) SearchTables(ctx context.Context, tableLike, schemaLike, sourceLike string) ([]Table, error) {
	f := new(filter).
		add("t.name LIKE ?", tableLike).
		addIf("sc.name LIKE ?", schemaLike).
		addIf("so.name LIKE ?", sourceLike)
	return c.queryTables(ctx, f)
}

// SearchTable is SearchTables for searches which must match exactly one table. It returns
// ErrTableNotFound when nothing matches and ErrAmbiguousTable when more than one table does.
func (c *Catalog) SearchTable(ctx context.Context, tableLike, schemaLike, sourceLike string) (Table, error) {
	tables, err := c.SearchTables(ctx, tableLike, schemaLike, sourceLike)
	if err != nil {
		return Table{}, err
	}
	switch len(tables) {
	case 0:
		return Table{}, errors.Wrap(ErrTableNotFound, tableLike)
	case 1:
		return tables[0], nil
	}
	return Table{}, errors.Wrapf(ErrAmbiguousTable, "%s matched %d tables", tableLike, len(tables))
}

// SearchColumn lists the columns matching columnLike, in tables matching tableLike, schemata
// matching schemaLike and sources matching sourceLike.
func (c *Catalog) SearchColumn(ctx context.Context, columnLike, tableLike, schemaLike, sourceLike string) ([]Column, error) {
	f := new(filter).
		add("c.name LIKE ?", columnLike).
		addIf("t.name LIKE ?", tableLike).
		addIf("sc.name LIKE ?", schemaLike).
		addIf("so.name LIKE ?", sourceLike)
	return c.queryColumns(ctx, f)
}
