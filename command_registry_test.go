// command_registry_test.go: command registration and dispatch tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRegistry_Dispatch(t *testing.T) {
	logger := NewTestLogger()
	reg := NewCommandRegistry(logger)

	var got []string
	calls := 0
	require.NoError(t, reg.RegisterFunc("echo", func(args []string) {
		calls++
		got = args
	}, "test"))

	tests := []struct {
		name     string
		line     string
		handled  bool
		expected []string
	}{
		{"NoArgs", "echo", true, []string{}},
		{"Args", "echo a b", true, []string{"a", "b"}},
		{"WhitespaceRuns", "  echo \t a   b  ", true, []string{"a", "b"}},
		{"CaseSensitive", "ECHO a", false, nil},
		{"Empty", "", false, nil},
		{"Blank", "   ", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls
			got = nil
			assert.Equal(t, tt.handled, reg.Dispatch(tt.line))
			if tt.handled {
				assert.Equal(t, before+1, calls)
				assert.Equal(t, tt.expected, got)
			} else {
				assert.Equal(t, before, calls)
			}
		})
	}

	assert.Equal(t, 1, logger.CountMessages("INFO", "Unknown command."), "only the unknown name is reported")
}

func TestCommandRegistry_FirstWriterWins(t *testing.T) {
	logger := NewTestLogger()
	reg := NewCommandRegistry(logger)

	var ran []string
	require.NoError(t, reg.RegisterFunc("stop", func([]string) { ran = append(ran, "builtin") }, "builtin"))

	err := reg.RegisterFunc("stop", func([]string) { ran = append(ran, "plugin-a") }, "plugin-a")
	require.Error(t, err)
	assert.Equal(t, ErrCodeCommandConflict, ErrorCodeOf(err))
	assert.True(t, logger.HasMessage("WARN", "Command already registered, keeping the first registration"))

	reg.Dispatch("stop")
	assert.Equal(t, []string{"builtin"}, ran)

	owner, ok := reg.Owner("stop")
	assert.True(t, ok)
	assert.Equal(t, "builtin", owner)
}

func TestCommandRegistry_InvalidRegistrations(t *testing.T) {
	reg := NewCommandRegistry(nil)

	for _, name := range []string{"", "two words", "tab\tname"} {
		err := reg.RegisterFunc(name, func([]string) {}, "test")
		assert.Equal(t, ErrCodeInvalidCommand, ErrorCodeOf(err), "name %q", name)
	}
	assert.Equal(t, ErrCodeInvalidCommand, ErrorCodeOf(reg.Register("nil", nil, "test")))
	assert.Empty(t, reg.Names())
}

func TestCommandRegistry_HandlerPanicIsContained(t *testing.T) {
	logger := NewTestLogger()
	reg := NewCommandRegistry(logger)
	require.NoError(t, reg.RegisterFunc("boom", func([]string) { panic("bad handler") }, "plugin"))

	assert.NotPanics(t, func() { reg.Dispatch("boom") })
	assert.True(t, logger.HasMessage("ERROR", "Command handler panicked"))
}

func TestCommandRegistry_NamesAndMetrics(t *testing.T) {
	reg := NewCommandRegistry(nil)
	metrics := NewDefaultMetricsCollector()
	reg.SetMetrics(metrics)

	require.NoError(t, reg.RegisterFunc("zeta", func([]string) {}, "t"))
	require.NoError(t, reg.RegisterFunc("alpha", func([]string) {}, "t"))
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
	assert.True(t, reg.Has("alpha"))
	assert.False(t, reg.Has("beta"))

	reg.Dispatch("alpha")
	reg.Dispatch("nope")
	assert.Equal(t, int64(1), metrics.Counter(MetricCommandDispatch, map[string]string{"command": "alpha"}))
	assert.Equal(t, int64(1), metrics.Counter(MetricCommandDispatch, map[string]string{"command": "unknown"}))
}
