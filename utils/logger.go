package utils

import (
	"os"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// LogLevels - mapping between log level names and logrus Level values
var LogLevels = map[string]logrus.Level{
	"TRACE": logrus.TraceLevel,
	"DEBUG": logrus.DebugLevel,
	"INFO":  logrus.InfoLevel,
	"WARN":  logrus.WarnLevel,
	"ERROR": logrus.ErrorLevel,
	"FATAL": logrus.FatalLevel,
	"PANIC": logrus.PanicLevel,
}

// ErrInvalidLogLevel signifies that a log level string was not one of the keys of LogLevels
var ErrInvalidLogLevel = errors.New("Invalid log level: choose one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL, PANIC")

// ParseLevel resolves a (case-insensitive) level name to a logrus Level. The empty string resolves
// to fallback.
func ParseLevel(rawLevel string, fallback logrus.Level) (logrus.Level, error) {
	if rawLevel == "" {
		return fallback, nil
	}
	level, ok := LogLevels[strings.ToUpper(rawLevel)]
	if !ok {
		return fallback, errors.Wrap(ErrInvalidLogLevel, rawLevel)
	}
	return level, nil
}

var (
	libraryLogger     *logrus.Logger
	libraryLoggerOnce sync.Once
)

// Logger returns the logger shared by the sqlcli library packages (catalog, database, scanner,
// state). Its level is read once from the LOG_LEVEL environment variable and defaults to ERROR.
func Logger() *logrus.Logger {
	libraryLoggerOnce.Do(func() {
		libraryLogger = logrus.New()
		level, err := ParseLevel(os.Getenv("LOG_LEVEL"), logrus.ErrorLevel)
		if err != nil {
			libraryLogger.Fatalf("Invalid value for LOG_LEVEL environment variable: %s", err.Error())
		}
		libraryLogger.SetLevel(level)
	})
	return libraryLogger
}

// SetLevel overrides the level of the shared library logger. The CLI calls this after it has
// resolved its configuration.
func SetLevel(level logrus.Level) {
	Logger().SetLevel(level)
}
