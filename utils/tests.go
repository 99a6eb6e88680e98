package utils

import (
	"database/sql"
	"embed"
	"encoding/csv"
	"io"
	"io/ioutil"
	"os"
	"path"

	"github.com/go-faster/errors"

	// sqlite3 driver registered under database/sql on import
	_ "github.com/mattn/go-sqlite3"
)

// TempDir extends the functionality of ioutil.TempDir by adding a pathOnly argument. If pathOnly
// is true, then TempDir returns a path to a non-existent directory.
func TempDir(dir, prefix string, pathOnly bool) (string, error) {
	tempDir, err := ioutil.TempDir(dir, prefix)
	if err != nil {
		return "", err
	}

	if pathOnly {
		err = os.RemoveAll(tempDir)
		if err != nil {
			return "", err
		}
	}

	return tempDir, nil
}

//go:embed fixtures
var fixtures embed.FS

// CountriesTable - name of the table created by LoadCountries
const CountriesTable = "countries_of_the_world"

// CountriesTextColumns - the columns of CountriesTable that hold text. Every other column is numeric.
var CountriesTextColumns = map[string]bool{"Country": true, "Region": true, "Climate": true}

// CountriesTextType - declared type of the text columns of CountriesTable
const CountriesTextType = "VARCHAR"

// CountriesNumericTypes - declared types of the numeric columns of CountriesTable
var CountriesNumericTypes = []string{"INT", "FLOAT"}

// Fixture returns the contents of one of the files under utils/fixtures.
func Fixture(name string) ([]byte, error) {
	return fixtures.ReadFile(path.Join("fixtures", name))
}

// LoadCountries creates CountriesTable in db and loads the countries fixture into it. Empty CSV
// fields are inserted as NULL. It returns the number of rows inserted.
func LoadCountries(db *sql.DB) (int, error) {
	createTable, err := Fixture("countries.sql")
	if err != nil {
		return 0, err
	}
	insert, err := Fixture("countries_insert.sql")
	if err != nil {
		return 0, err
	}
	data, err := fixtures.Open("fixtures/countries.csv")
	if err != nil {
		return 0, err
	}
	defer data.Close()

	if _, err := db.Exec(string(createTable)); err != nil {
		return 0, errors.Wrap(err, "create countries table")
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}

	reader := csv.NewReader(data)
	if _, err := reader.Read(); err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "read countries header")
	}

	inserted := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "read countries row %d", inserted+1)
		}
		args := make([]interface{}, len(row))
		for i, field := range row {
			if field != "" {
				args[i] = field
			}
		}
		if _, err := tx.Exec(string(insert), args...); err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "insert countries row %d", inserted+1)
		}
		inserted++
	}

	return inserted, tx.Commit()
}

// CountriesDatabase creates an SQLite database file named sqldb in dir, loaded with the countries
// fixture, and returns its path.
func CountriesDatabase(dir string) (string, error) {
	dbPath := path.Join(dir, "sqldb")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if _, err := LoadCountries(db); err != nil {
		return "", err
	}
	return dbPath, nil
}
