package app

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the shared logrus logger. JSON output is used by the
// server; the TUI and one-shot commands keep the text formatter on stderr so
// log lines never collide with rendered output.
func NewLogger(jsonOutput bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if jsonOutput {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SPEAKCOACH_LOG_LEVEL"))) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// NewQuietLogger returns a logger that discards everything. Used by tests and
// by components constructed without an explicit logger.
func NewQuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
