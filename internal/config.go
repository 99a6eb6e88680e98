package internal

import (
	"os"
	"path"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// EnvPrefix - prefix of the environment variables read into Config
const EnvPrefix = "SQLCLI"

// LocalConfigFile - config file read from the working directory
const LocalConfigFile = "sqlcli.yaml"

// AppDirConfigFile - config file read from the application directory
const AppDirConfigFile = "config.yaml"

// Config holds the settings that are not given per command. Each field can be set in YAML config
// files or with SQLCLI_ prefixed environment variables (the environment wins).
type Config struct {
	LogLevel    string        `default:"WARN" env:"LOG_LEVEL" yaml:"log_level" usage:"One of TRACE, DEBUG, INFO, WARN, ERROR, FATAL, PANIC"`
	AppDir      string        `env:"APP_DIR" yaml:"app_dir" usage:"Application directory"`
	DatabaseURL string        `env:"DATABASE_URL" yaml:"database_url" usage:"Database queried when no URL is given"`
	Format      string        `default:"table" env:"FORMAT" yaml:"format" usage:"Default output format"`
	Catalog     CatalogConfig `env:"CATALOG" yaml:"catalog"`
}

// CatalogConfig - where the catalog lives
type CatalogConfig struct {
	URI string `env:"URI" yaml:"uri" usage:"Catalog database URL (defaults to catalog.db in the application directory)"`
}

// LoadConfig reads a .env file from the working directory if there is one, then loads Config
// from <appDir>/config.yaml, ./sqlcli.yaml and the environment, in increasing order of priority.
// Missing files are skipped.
func LoadConfig(appDir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	var files []string
	if appDir != "" {
		files = append(files, path.Join(appDir, AppDirConfigFile))
	}
	files = append(files, LocalConfigFile)

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:        EnvPrefix,
		SkipFlags:        true,
		AllowUnknownEnvs: true,
		MergeFiles:       true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}
