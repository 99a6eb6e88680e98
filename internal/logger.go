package internal

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/simiotics/sqlcli/utils"
)

// GenerateLogger builds the CLI logger. rawLevel comes from configuration (SQLCLI_LOG_LEVEL or
// log_level in a config file) and should be one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL, PANIC.
// It defaults to WARN. The CLI logs to stderr so that query output on stdout stays clean.
func GenerateLogger(rawLevel string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := utils.ParseLevel(rawLevel, logrus.WarnLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %s. Choose one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL, PANIC", rawLevel)
	}
	log.SetLevel(level)
	utils.SetLevel(level)

	return log
}
