// clock.go: Clock plugin exposing the current time and date
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package clock provides the "clock" placeholder plugin.
//
// Placeholders take the form %clock_<format>% where format is one of the
// names in Layouts, optionally followed by "_utc":
//
//	%clock_time%      15:04:05
//	%clock_date_utc%  2006-01-02 in UTC
package clock

import (
	"context"
	"strconv"
	"strings"
	"time"

	textreplacer "github.com/agilira/go-textreplacer"
)

// Identifier is the placeholder prefix of the plugin.
const Identifier = "clock"

// Layouts maps argument names to time layouts.
var Layouts = map[string]string{
	"time":      "15:04:05",
	"shorttime": "15:04",
	"date":      "2006-01-02",
	"datetime":  "2006-01-02 15:04:05",
	"weekday":   "Monday",
	"month":     "January",
	"year":      "2006",
	"rfc3339":   time.RFC3339,
}

// Plugin answers clock placeholders.
type Plugin struct {
	textreplacer.BasePlugin
	clock textreplacer.Clock
}

// New is the module factory.
func New(logger textreplacer.Logger) (textreplacer.Plugin, error) {
	return NewWithClock(logger, textreplacer.SystemClock()), nil
}

// NewWithClock creates the plugin over a specific clock.
func NewWithClock(logger textreplacer.Logger, clock textreplacer.Clock) *Plugin {
	return &Plugin{BasePlugin: textreplacer.NewBasePlugin(logger), clock: clock}
}

func (p *Plugin) Name() string                  { return "Clock" }
func (p *Plugin) Author() string                { return "AGILira" }
func (p *Plugin) Version() string               { return "1.0.0" }
func (p *Plugin) Identifier() string            { return Identifier }
func (p *Plugin) RefreshIntervalSeconds() int64 { return 1 }

// OnRequest formats the current time. "unix" yields epoch seconds.
func (p *Plugin) OnRequest(_ context.Context, argument string) (string, bool) {
	now := p.clock.Now()

	name := argument
	if base, ok := strings.CutSuffix(argument, "_utc"); ok {
		name = base
		now = now.UTC()
	} else {
		now = now.Local()
	}

	if name == "unix" {
		return strconv.FormatInt(now.Unix(), 10), true
	}
	layout, ok := Layouts[name]
	if !ok {
		p.Logger().Debug("Unknown clock format", "argument", argument)
		return "", false
	}
	return now.Format(layout), true
}
