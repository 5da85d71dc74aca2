package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
}

func TestNoDestinationIsNop(t *testing.T) {
	logger := New(Options{Level: "debug"})
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestJSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriters(Options{Level: "warn", Format: "json", Stderr: true}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", zap.String("category", "sql"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"category":"sql"`)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simshell.log")
	logger := New(Options{Level: "info", File: path})
	logger.Info("to file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, string(data), "INFO")
}
