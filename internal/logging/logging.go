// Package logging builds the logrus loggers used by the binaries and the
// append-only log sinks written by the scheduled jobs.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/safar/crm-service/internal/config"
)

// New returns the process logger configured from cfg. Unknown levels fall
// back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// Sink is a logger appending plain "timestamp message" lines to a file.
type Sink struct {
	*logrus.Logger
	closer io.Closer
}

// OpenSink opens (creating if needed) path for appending.
func OpenSink(path, timestampFormat string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log sink %s: %w", path, err)
	}

	return &Sink{Logger: NewLineLogger(f, timestampFormat), closer: f}, nil
}

func (s *Sink) Close() error {
	return s.closer.Close()
}

// NewLineLogger writes every entry as one plain line to w.
func NewLineLogger(w io.Writer, timestampFormat string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&LineFormatter{TimestampFormat: timestampFormat})
	return logger
}

// LineFormatter renders "<timestamp> <message> key=value..." without level
// decoration. An empty TimestampFormat omits the timestamp.
type LineFormatter struct {
	TimestampFormat string
}

func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	if f.TimestampFormat != "" {
		b.WriteString(entry.Time.Format(f.TimestampFormat))
		b.WriteByte(' ')
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}
