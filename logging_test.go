// logging_test.go: logging interface tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLogger_CapturesLevels(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(*TestLogger, string, ...any)
		level   string
	}{
		{"Debug", (*TestLogger).Debug, "DEBUG"},
		{"Info", (*TestLogger).Info, "INFO"},
		{"Warn", (*TestLogger).Warn, "WARN"},
		{"Error", (*TestLogger).Error, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewTestLogger()
			tt.logFunc(logger, "message", "key", "value")

			msgs := logger.Messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.level, msgs[0].Level)
			assert.Equal(t, "message", msgs[0].Message)
			assert.Equal(t, []any{"key", "value"}, msgs[0].Args)
			assert.True(t, logger.HasMessage(tt.level, "message"))
		})
	}
}

func TestTestLogger_WithSharesBuffer(t *testing.T) {
	logger := NewTestLogger()
	child := logger.With("plugin", "clock")
	child.Info("hello", "n", 1)

	msgs := logger.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []any{"plugin", "clock", "n", 1}, msgs[0].Args)

	logger.Clear()
	assert.Empty(t, logger.Messages())
	assert.Equal(t, 0, logger.CountMessages("INFO", "hello"))
}

func TestNewLogger(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, NewLogger(nil))

	tl := NewTestLogger()
	assert.Same(t, tl, NewLogger(tl))

	assert.Panics(t, func() { NewLogger("not a logger") })
}

func TestLoggerContext(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, LoggerFromContext(context.Background()))

	tl := NewTestLogger()
	ctx := ContextWithLogger(context.Background(), tl)
	assert.Same(t, tl, LoggerFromContext(ctx))
}

func TestZerologAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, "debug", true)

	logger.With("plugin", "clock").Info("Enabling clock", "version", "1.0.0")

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Enabling clock", entry["message"])
	assert.Equal(t, "clock", entry["plugin"])
	assert.Equal(t, "1.0.0", entry["version"])
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, "warn", true)

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestZerologAdapter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, "verbose", true)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())
	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFieldsFromArgs(t *testing.T) {
	fields := fieldsFromArgs([]any{"a", 1, 2, "b", "dangling"})
	assert.Equal(t, 1, fields["a"])
	assert.Equal(t, "b", fields["2"])
	assert.Equal(t, "dangling", fields["!BADKEY"])
}
