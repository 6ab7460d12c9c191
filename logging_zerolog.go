// logging_zerolog.go: zerolog backend for the Logger interface
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger on top of a zerolog.Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter wraps an existing zerolog logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// NewConsoleLogger builds a zerolog-backed Logger writing to w.
//
// level is any zerolog level name ("debug", "info", "warn", "error"); an
// empty or unknown level falls back to info. When jsonOutput is false the
// human-friendly console writer is used.
func NewConsoleLogger(w io.Writer, level string, jsonOutput bool) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !jsonOutput {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return NewZerologAdapter(logger)
}

func (z *ZerologAdapter) Debug(msg string, args ...any) {
	z.logger.Debug().Fields(fieldsFromArgs(args)).Msg(msg)
}

func (z *ZerologAdapter) Info(msg string, args ...any) {
	z.logger.Info().Fields(fieldsFromArgs(args)).Msg(msg)
}

func (z *ZerologAdapter) Warn(msg string, args ...any) {
	z.logger.Warn().Fields(fieldsFromArgs(args)).Msg(msg)
}

func (z *ZerologAdapter) Error(msg string, args ...any) {
	z.logger.Error().Fields(fieldsFromArgs(args)).Msg(msg)
}

// With returns an adapter whose entries carry the given fields.
func (z *ZerologAdapter) With(args ...any) Logger {
	return &ZerologAdapter{logger: z.logger.With().Fields(fieldsFromArgs(args)).Logger()}
}

// fieldsFromArgs turns key-value pairs into a zerolog field map. A trailing
// key without value is kept under "!BADKEY".
func fieldsFromArgs(args []any) map[string]interface{} {
	fields := make(map[string]interface{}, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}
