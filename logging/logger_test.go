package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestLoggerWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "heartrisk.log")
	logger := New(Options{Level: "info", File: path, Console: &console})

	logger.Debug("hidden")
	logger.Info("prediction served", zap.Int("label", 1))
	require.NoError(t, logger.Close())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "prediction served")

	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "prediction served", entry["msg"])
	assert.Equal(t, float64(1), entry["label"])
}

func TestLoggerSetLevel(t *testing.T) {
	var console bytes.Buffer
	logger := New(Options{Level: "error", Console: &console})

	logger.Info("before")
	logger.SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	logger.Debug("after")
	require.NoError(t, logger.Close())

	assert.NotContains(t, console.String(), "before")
	assert.Contains(t, console.String(), "after")
}
