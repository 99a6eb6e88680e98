package state

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"

	// sqlite3 driver registered under database/sql on import
	_ "github.com/mattn/go-sqlite3"

	"github.com/simiotics/sqlcli/dburl"
	"github.com/simiotics/sqlcli/utils"
)

// DBFileName - Name of SQLite database holding the catalog in the application directory
var DBFileName = "catalog.db"

// ErrAppDirNotDirectory - Error returned by Init if a filesystem object other than a directory
// exists at the application directory path
var ErrAppDirNotDirectory = errors.New("The given application directory path exists and is not a directory")

// ErrUnsupportedCatalog - Error returned by Open if the catalog URI does not address an SQLite
// database
var ErrUnsupportedCatalog = errors.New("The catalog must be stored in an SQLite database")

//go:embed migrations/*.sql
var migrations embed.FS

// Init ensures that the application directory exists and that the catalog database inside it is
// at the latest schema version. It is safe to call on an already initialized directory. Returns
// the path to the catalog database.
func Init(appDir string) (string, error) {
	logger := utils.Logger().WithField("appDir", appDir).WithField("DBFileName", DBFileName)

	logger.Debug("Checking existence of directory")
	info, err := os.Stat(appDir)
	if err == nil && !info.IsDir() {
		logger.Debug("Application directory path is not a directory")
		return "", ErrAppDirNotDirectory
	}
	if err != nil && !os.IsNotExist(err) {
		logger.Debugf("Error performing stat on application directory: %s", err.Error())
		return "", err
	}

	err = os.MkdirAll(appDir, 0755)
	if err != nil {
		logger.Debugf("Error creating application directory: %s", err.Error())
		return "", err
	}

	db, err := Open(DefaultURI(appDir))
	if err != nil {
		logger.Debugf("Error opening catalog database: %s", err.Error())
		return "", err
	}
	defer db.Close()

	return path.Join(appDir, DBFileName), nil
}

// DefaultURI returns the URI of the catalog database in the given application directory.
func DefaultURI(appDir string) string {
	dbPath := path.Join(appDir, DBFileName)
	if path.IsAbs(dbPath) {
		return "sqlite://" + dbPath
	}
	return "sqlite:" + dbPath
}

// Open opens the catalog database at uri and brings its schema up to date.
func Open(uri string) (*sql.DB, error) {
	logger := utils.Logger().WithField("uri", uri)

	u, err := dburl.Parse(uri)
	if err != nil {
		return nil, errors.Wrap(err, "parse catalog uri")
	}
	if u.Driver != "sqlite3" {
		logger.Debugf("Catalog driver %s is not sqlite3", u.Driver)
		return nil, errors.Wrap(ErrUnsupportedCatalog, u.Driver)
	}

	dsn := u.DSN
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=1"
	} else {
		dsn += "?_foreign_keys=1"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}

	err = Migrate(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Opened catalog")
	return db, nil
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, db, fsys)
}

// Migrate applies every pending catalog migration to db.
func Migrate(db *sql.DB) error {
	provider, err := newProvider(db)
	if err != nil {
		return errors.Wrap(err, "load catalog migrations")
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		return errors.Wrap(err, "migrate catalog")
	}
	for _, result := range results {
		utils.Logger().WithField("version", result.Source.Version).WithField("duration", result.Duration).Info("Applied catalog migration")
	}
	return nil
}

// Version returns the schema version of the catalog database.
func Version(db *sql.DB) (int64, error) {
	provider, err := newProvider(db)
	if err != nil {
		return 0, errors.Wrap(err, "load catalog migrations")
	}
	return provider.GetDBVersion(context.Background())
}
