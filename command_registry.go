// command_registry.go: Console command registry and dispatch
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"sort"
	"strings"
	"sync"
)

// CommandRegistry maps command names to handlers.
//
// Registration is first-writer-wins: a second registration under a name
// already in use is rejected and logged, and the existing handler is kept.
// Names are case-sensitive.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]commandEntry
	order    []string
	logger   Logger
	metrics  MetricsCollector
}

type commandEntry struct {
	handler Command
	owner   string
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry(logger Logger) *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]commandEntry),
		logger:   NewLogger(logger),
		metrics:  noopMetrics{},
	}
}

// SetMetrics attaches a metrics collector for dispatch counters.
func (r *CommandRegistry) SetMetrics(m MetricsCollector) {
	if m == nil {
		m = noopMetrics{}
	}
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
}

// Register adds handler under name. owner is only used in diagnostics.
func (r *CommandRegistry) Register(name string, handler Command, owner string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") || handler == nil {
		err := NewInvalidCommandError(name)
		r.logger.Warn("Rejected invalid command", "command", name, "owner", owner)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, taken := r.commands[name]; taken {
		r.logger.Warn("Command already registered, keeping the first registration",
			"command", name,
			"owner", owner,
			"registered_by", existing.owner)
		return NewCommandConflictError(name).WithContext("registered_by", existing.owner)
	}

	r.commands[name] = commandEntry{handler: handler, owner: owner}
	r.order = append(r.order, name)
	r.logger.Debug("Command registered", "command", name, "owner", owner)
	return nil
}

// RegisterFunc is Register for plain functions.
func (r *CommandRegistry) RegisterFunc(name string, fn func(args []string), owner string) error {
	if fn == nil {
		return r.Register(name, nil, owner)
	}
	return r.Register(name, CommandFunc(fn), owner)
}

// Dispatch runs the command named by the first whitespace-separated field of
// line with the remaining fields as arguments. It reports whether a handler
// ran. Empty lines are ignored; unknown commands are logged.
func (r *CommandRegistry) Dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	name := fields[0]
	r.mu.RLock()
	entry, ok := r.commands[name]
	metrics := r.metrics
	r.mu.RUnlock()

	if !ok {
		r.logger.Info("Unknown command.", "command", name)
		metrics.IncrementCounter(MetricCommandDispatch, map[string]string{"command": "unknown"}, 1)
		return false
	}

	metrics.IncrementCounter(MetricCommandDispatch, map[string]string{"command": name}, 1)

	if recovered := callRecovered(func() { entry.handler.Execute(fields[1:]) }); recovered != nil {
		r.logger.Error("Command handler panicked",
			"command", name,
			"owner", entry.owner,
			"error", NewPluginPanicError(entry.owner, recovered))
	}
	return true
}

// Has reports whether name is registered.
func (r *CommandRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[name]
	return ok
}

// Owner returns who registered name.
func (r *CommandRegistry) Owner(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.commands[name]
	return e.owner, ok
}

// Names returns the registered command names sorted alphabetically.
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
