// Package logging builds the logrus loggers used by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
)

// Output targets besides a file path.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// New creates a logger from configuration. Unknown levels fall back to info. Output is
// stdout, stderr or a file path opened for appending; the returned closer releases it.
func New(cfg domain.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	var closer io.Closer = nopCloser{}
	switch cfg.Output {
	case "", OutputStdout:
		logger.SetOutput(os.Stdout)
	case OutputStderr:
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f
	}

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
