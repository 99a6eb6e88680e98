package internal

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/simiotics/sqlcli/catalog"
	"github.com/simiotics/sqlcli/database"
	"github.com/simiotics/sqlcli/scanner"
)

// OpenCatalog opens the catalog configured in cfg, defaulting to the catalog in appDir.
func OpenCatalog(appDir string, cfg *Config, log *logrus.Logger) (*catalog.Catalog, error) {
	logger := log.WithFields(logrus.Fields{"appDir": appDir, "catalogURI": cfg.Catalog.URI})
	cat, err := scanner.OpenCatalog(appDir, cfg.Catalog.URI)
	if err != nil {
		logger.WithField("error", err).Error("Error opening catalog")
		return nil, err
	}
	logger.Debug("Opened catalog")
	return cat, nil
}

// ResolveURL picks the database URL for a command: the argument if given, else the configured
// database_url, else DATABASE_URL. With askPassword set, the user is prompted for a password which replaces the one in the URL.
func ResolveURL(args []string, cfg *Config, askPassword bool, in *os.File, prompt io.Writer) (string, error) {
	dbURL := cfg.DatabaseURL
	if len(args) > 0 {
		dbURL = args[0]
	}
	if dbURL == "" {
		dbURL = os.Getenv(database.URLEnvVar)
	}
	if dbURL == "" {
		return "", database.ErrMissingURL
	}
	if !askPassword {
		return dbURL, nil
	}
	password, err := PromptPassword(in, prompt)
	if err != nil {
		return "", err
	}
	return InjectPassword(dbURL, password)
}
