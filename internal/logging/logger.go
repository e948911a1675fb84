package logging

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"legacyimport/internal/config"
)

const application = "legacyimport"

// New builds the run logger. Output goes to LOG_FILE when it can be opened, stderr otherwise.
func New(cfg config.Config) logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err == nil {
			if file, err := os.OpenFile(filepath.Clean(cfg.LogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640); err == nil {
				logger.SetOutput(file)
			} else {
				logger.Infof("Failed to open log file %s. Will use stderr. %s", cfg.LogFile, err.Error())
			}
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": cfg.Environment,
	})
}

// Discard is a logger for tests and callers that do not care about diagnostics.
func Discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(discardWriter{})
	return logger
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
