// builtin_commands.go: Console commands registered at bootstrap
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Owner recorded for commands registered by the host.
const BuiltinOwner = "builtin"

// Builtins wires the built-in console commands to the host.
type Builtins struct {
	// Stop initiates shutdown
	Stop func()

	// ForceRefresh makes the next refresh pass bypass every cooldown
	ForceRefresh func()

	Registry *PluginRegistry
	Resolver *Resolver
	Metrics  MetricsCollector
	Out      io.Writer
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// RegisterBuiltinCommands registers stop, plugins, forcerefresh, stats and
// help. Call it before plugins are enabled so built-ins win name conflicts.
func RegisterBuiltinCommands(commands *CommandRegistry, b Builtins) {
	out := b.Out
	if out == nil {
		out = io.Discard
	}

	register := func(name string, fn func(args []string)) {
		_ = commands.RegisterFunc(name, fn, BuiltinOwner)
	}

	register("stop", func([]string) {
		if b.Stop != nil {
			b.Stop()
		}
	})

	register("forcerefresh", func([]string) {
		if b.ForceRefresh != nil {
			b.ForceRefresh()
		}
		fmt.Fprintln(out, "Next refresh will bypass the cache.")
	})

	register("plugins", func([]string) {
		fmt.Fprintln(out, renderPluginTable(b.Registry))
	})

	register("stats", func([]string) {
		fmt.Fprintln(out, renderStats(b.Metrics, b.Resolver))
	})

	register("help", func([]string) {
		fmt.Fprintln(out, headerStyle.Render("Commands"))
		for _, name := range commands.Names() {
			owner, _ := commands.Owner(name)
			fmt.Fprintf(out, "  %-14s %s\n", name, mutedStyle.Render(owner))
		}
	})
}

func renderPluginTable(registry *PluginRegistry) string {
	if registry == nil {
		return mutedStyle.Render("No plugin registry.")
	}

	descs := registry.Descriptors()
	failed := registry.Failed()
	if len(descs) == 0 && len(failed) == 0 {
		return mutedStyle.Render("No plugins loaded.")
	}

	rows := []string{headerStyle.Render(fmt.Sprintf("%-16s │ %-20s │ %-10s │ %-16s │ %s",
		"IDENTIFIER", "NAME", "VERSION", "AUTHOR", "STATE"))}
	for _, d := range descs {
		rows = append(rows, fmt.Sprintf("%-16s │ %-20s │ %-10s │ %-16s │ %s",
			d.Identifier, d.Name, d.Version, d.Author, d.State))
	}
	for _, d := range failed {
		rows = append(rows, failedStyle.Render(fmt.Sprintf("%-16s │ %-20s │ %-10s │ %-16s │ %s",
			d.Identifier, d.Name, d.Version, d.Author, d.State)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderStats(metrics MetricsCollector, resolver *Resolver) string {
	lines := []string{headerStyle.Render("Metrics")}

	if metrics != nil {
		snapshot := metrics.GetMetrics()
		keys := make([]string, 0, len(snapshot))
		for k := range snapshot {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  %s = %v", k, snapshot[k]))
		}
	}

	if resolver != nil {
		stats := resolver.BreakerStats()
		ids := make([]string, 0, len(stats))
		for id := range stats {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if len(ids) > 0 {
			lines = append(lines, headerStyle.Render("Circuit breakers"))
		}
		for _, id := range ids {
			s := stats[id]
			lines = append(lines, fmt.Sprintf("  %s: %s (consecutive failures %d)", id, s.State, s.ConsecutiveFailures))
		}
	}

	return strings.Join(lines, "\n")
}
