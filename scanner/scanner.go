// Package scanner populates the catalog from live databases and answers metadata questions about a
// database URL from the catalog.
package scanner

import (
	"context"
	"time"

	"github.com/docker/docker/pkg/namesgenerator"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/simiotics/sqlcli/catalog"
	"github.com/simiotics/sqlcli/database"
	"github.com/simiotics/sqlcli/state"
	"github.com/simiotics/sqlcli/utils"
)

// IntrospectionWorkers - number of tables whose columns are read from a database concurrently
var IntrospectionWorkers = 4

// nameAttempts bounds the number of generated source names tried before giving up
const nameAttempts = 10

// OpenCatalog opens the catalog at uri, or the default catalog in appDir if uri is empty. The
// catalog is migrated to the latest schema version.
func OpenCatalog(appDir, uri string) (*catalog.Catalog, error) {
	if uri == "" {
		if _, err := state.Init(appDir); err != nil {
			return nil, errors.Wrap(err, "initialize application directory")
		}
		uri = state.DefaultURI(appDir)
	}
	utils.Logger().WithField("uri", uri).Debug("Opening catalog")
	return catalog.Open(uri)
}

// tableColumns - the columns of one table as read from the database
type tableColumns struct {
	name    string
	columns []database.ColumnInfo
}

// ScanDatabase records every schema, table and column of the database at dbURL in the catalog
// under a new source with a generated name. If a source with that URI is already in the catalog,
// ScanDatabase does nothing. Catalog writes happen in a single session, so a failed scan leaves
// no trace.
func ScanDatabase(ctx context.Context, cat *catalog.Catalog, dbURL string) error {
	logger := utils.Logger().WithField("scan", uuid.New().String())

	return cat.Session(ctx, func(ctx context.Context) error {
		_, err := cat.GetSourceByURI(ctx, dbURL)
		if err == nil {
			logger.Debug("Database already scanned")
			return nil
		}
		if !errors.Is(err, catalog.ErrSourceNotFound) {
			return err
		}

		db, err := database.Open(dbURL)
		if err != nil {
			return err
		}
		defer db.Close()
		logger = logger.WithField("url", db.URL.Redacted())
		logger.Debug("Scanning database")
		started := time.Now()

		source, err := addSource(ctx, cat, dbURL)
		if err != nil {
			return err
		}
		logger = logger.WithField("source", source.Name)

		schemata, err := db.Schemata(ctx)
		if err != nil {
			return errors.Wrap(err, "list schemata")
		}
		numTables, numColumns := 0, 0
		for _, schemaName := range schemata {
			schema, err := cat.AddSchema(ctx, schemaName, source)
			if err != nil {
				return err
			}
			tables, err := readSchema(ctx, db, schemaName)
			if err != nil {
				return err
			}
			for _, t := range tables {
				table, err := cat.AddTable(ctx, t.name, schema)
				if err != nil {
					return err
				}
				for sortOrder, column := range t.columns {
					if _, err := cat.AddColumn(ctx, column.Name, column.Type, sortOrder, table); err != nil {
						return err
					}
				}
				numColumns += len(t.columns)
			}
			numTables += len(tables)
		}

		logger.WithFields(logrus.Fields{
			"schemata": len(schemata),
			"tables":   numTables,
			"columns":  numColumns,
			"duration": time.Since(started),
		}).Info("Scanned database")
		return nil
	})
}

// addSource adds a source for dbURL under a generated name, retrying with other names on
// collisions.
func addSource(ctx context.Context, cat *catalog.Catalog, dbURL string) (catalog.Source, error) {
	var err error
	for attempt := 0; attempt < nameAttempts; attempt++ {
		var source catalog.Source
		source, err = cat.AddSource(ctx, namesgenerator.GetRandomName(attempt), dbURL)
		if err == nil {
			return source, nil
		}
		if !errors.Is(err, catalog.ErrAlreadyExists) {
			return catalog.Source{}, err
		}
	}
	return catalog.Source{}, errors.Wrap(err, "generate source name")
}

// readSchema lists the tables of schema along with their columns. Columns are read with at most
// IntrospectionWorkers concurrent queries. Tables are returned in the order the database lists
// them.
func readSchema(ctx context.Context, db *database.Database, schema string) ([]tableColumns, error) {
	names, err := db.Tables(ctx, schema)
	if err != nil {
		return nil, errors.Wrapf(err, "list tables of %s", schema)
	}

	tables := make([]tableColumns, len(names))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(IntrospectionWorkers)
	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			columns, err := db.Columns(groupCtx, schema, name)
			if err != nil {
				return errors.Wrapf(err, "list columns of %s.%s", schema, name)
			}
			tables[i] = tableColumns{name: name, columns: columns}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// sourceFor scans dbURL if necessary and returns its source.
func sourceFor(ctx context.Context, cat *catalog.Catalog, dbURL string) (catalog.Source, error) {
	if err := ScanDatabase(ctx, cat, dbURL); err != nil {
		return catalog.Source{}, err
	}
	return cat.GetSourceByURI(ctx, dbURL)
}

// GetSchemas lists the schemata of the database at dbURL.
func GetSchemas(ctx context.Context, cat *catalog.Catalog, dbURL string) ([]catalog.Schema, error) {
	source, err := sourceFor(ctx, cat, dbURL)
	if err != nil {
		return nil, err
	}
	return cat.GetSchemas(ctx, source.Name)
}

// GetTables lists the tables of the database at dbURL, in every schema if schemaName is empty.
func GetTables(ctx context.Context, cat *catalog.Catalog, dbURL, schemaName string) ([]catalog.Table, error) {
	source, err := sourceFor(ctx, cat, dbURL)
	if err != nil {
		return nil, err
	}
	return cat.GetTables(ctx, source.Name, schemaName)
}

// GetColumns lists the columns of the database at dbURL. Empty schemaName and tableName place no
// restriction.
func GetColumns(ctx context.Context, cat *catalog.Catalog, dbURL, schemaName, tableName string) ([]catalog.Column, error) {
	source, err := sourceFor(ctx, cat, dbURL)
	if err != nil {
		return nil, err
	}
	return cat.GetColumns(ctx, source.Name, schemaName, tableName)
}
