package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/crm-service/internal/config"
)

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New(config.LogConfig{Level: "loud", Format: "json"})

	assert.Equal(t, logrus.InfoLevel, logger.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestLineFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLineLogger(&buf, "2006-01-02")

	entry := logrus.NewEntry(logger).WithFields(logrus.Fields{"b": 2, "a": 1})
	entry.Time = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	out, err := logger.Formatter.Format(entry.WithField("msg", "x"))
	require.NoError(t, err)
	assert.Contains(t, string(out), " a=1 b=2 msg=x\n")

	logger.Info("CRM is alive")
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} CRM is alive\n$`, buf.String())
}

func TestOpenSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sink.txt")

	for i := 0; i < 2; i++ {
		sink, err := OpenSink(path, "")
		require.NoError(t, err)
		sink.Info("line")
		require.NoError(t, sink.Close())
	}

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\nline\n", string(content))
}
