// plugin_registry.go: Plugin registry and lifecycle management
//
// The registry owns every enabled plugin instance. It assigns each plugin an
// exclusive data directory, drives the enable and disable hooks, and offers
// contributed commands to the command registry.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RegistryConfig configures the plugin registry.
type RegistryConfig struct {
	// DataDirectory is the parent of every plugin's data directory
	DataDirectory string

	Logger  Logger
	Metrics MetricsCollector

	// Drainer, when set, is waited on for up to DrainTimeout before each
	// plugin is disabled
	Drainer      Drainer
	DrainTimeout time.Duration
}

// PluginRegistry holds the enabled plugins keyed by identifier.
//
// Identifier collisions are rejected before the later candidate is enabled,
// so the first plugin to claim an identifier keeps it and is never silently
// replaced.
type PluginRegistry struct {
	config   RegistryConfig
	logger   Logger
	metrics  MetricsCollector
	commands *CommandRegistry

	mu      sync.RWMutex
	plugins map[string]*registeredPlugin
	order   []string
	failed  []Descriptor
	closed  bool
}

type registeredPlugin struct {
	plugin     Plugin
	descriptor Descriptor
}

// SetDrainer sets the drainer consulted by DisableAll.
func (r *PluginRegistry) SetDrainer(d Drainer, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Drainer = d
	r.config.DrainTimeout = timeout
}

// NewPluginRegistry creates an empty registry. commands may be nil when
// plugins must not contribute console commands.
func NewPluginRegistry(config RegistryConfig, commands *CommandRegistry) *PluginRegistry {
	metrics := config.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &PluginRegistry{
		config:   config,
		logger:   NewLogger(config.Logger),
		metrics:  metrics,
		commands: commands,
		plugins:  make(map[string]*registeredPlugin),
	}
}

// EnableAll enables the candidates in order and returns how many reached
// StateEnabled. Failures are logged and only affect the failing candidate.
func (r *PluginRegistry) EnableAll(candidates []Candidate) int {
	enabled := 0
	for _, c := range candidates {
		if err := r.Enable(c); err != nil {
			continue
		}
		enabled++
	}

	r.metrics.SetGauge(MetricPluginsEnabled, nil, float64(r.Len()))
	return enabled
}

// Enable runs one candidate through its lifecycle up to StateEnabled.
func (r *PluginRegistry) Enable(c Candidate) error {
	p := c.Plugin
	if p == nil {
		return NewCandidateInvalidError(c.Source, "candidate has no plugin")
	}

	identifier := p.Identifier()
	desc := Descriptor{
		Identifier:      identifier,
		Name:            p.Name(),
		Author:          p.Author(),
		Version:         p.Version(),
		RefreshInterval: refreshInterval(p),
		Source:          c.Source,
		State:           StateEnabling,
	}

	if !validIdentifier(identifier) {
		return r.reject(c, desc, NewInvalidIdentifierError(identifier, c.Source))
	}

	// The identifier is reserved under the write lock so a concurrent Enable
	// with the same identifier is rejected instead of overwriting it.
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return r.reject(c, desc, NewEnableFailedError(identifier, nil).WithContext("reason", "registry closed"))
	}
	if existing, duplicate := r.plugins[identifier]; duplicate {
		r.mu.Unlock()
		return r.reject(c, desc, NewDuplicateIdentifierError(identifier, c.Source, existing.descriptor.Source))
	}
	entry := &registeredPlugin{plugin: p, descriptor: desc}
	r.plugins[identifier] = entry
	r.mu.Unlock()

	dataDir := filepath.Join(r.config.DataDirectory, identifier)
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		r.release(identifier)
		return r.reject(c, desc, NewDataDirectoryError(identifier, dataDir, err))
	}
	desc.DataDirectory = dataDir

	r.logger.Info("Enabling "+desc.Name+", version "+desc.Version+" by "+desc.Author,
		"identifier", identifier,
		"source", c.Source)

	var enableErr error
	if recovered := callRecovered(func() { enableErr = p.Enable(dataDir) }); recovered != nil {
		enableErr = NewPluginPanicError(identifier, recovered)
	}
	if enableErr != nil {
		r.release(identifier)
		return r.reject(c, desc, NewEnableFailedError(identifier, enableErr))
	}

	desc.State = StateEnabled
	r.mu.Lock()
	if r.closed {
		delete(r.plugins, identifier)
		r.mu.Unlock()
		if recovered := callRecovered(func() { _ = p.Disable() }); recovered != nil {
			r.logger.Error("Plugin failed to disable", "identifier", identifier, "error", NewPluginPanicError(identifier, recovered))
		}
		return NewEnableFailedError(identifier, nil).WithContext("reason", "registry closed")
	}
	entry.descriptor = desc
	r.order = append(r.order, identifier)
	r.mu.Unlock()

	r.registerCommands(p, identifier)
	return nil
}

// release drops the reservation of an identifier whose candidate failed.
func (r *PluginRegistry) release(identifier string) {
	r.mu.Lock()
	delete(r.plugins, identifier)
	r.mu.Unlock()
}

// reject marks a candidate FailedToEnable. Its disable hook is never called;
// interpreter-backed candidates are released through io.Closer.
func (r *PluginRegistry) reject(c Candidate, desc Descriptor, err error) error {
	desc.State = StateFailedToEnable
	r.logger.Error("Plugin failed to enable",
		"identifier", desc.Identifier,
		"source", c.Source,
		"error", err)

	if closer, ok := c.Plugin.(io.Closer); ok {
		_ = closer.Close()
	}

	r.mu.Lock()
	r.failed = append(r.failed, desc)
	r.mu.Unlock()
	return err
}

func (r *PluginRegistry) registerCommands(p Plugin, identifier string) {
	contributor, ok := p.(CommandContributor)
	if !ok || r.commands == nil {
		return
	}

	var commands map[string]Command
	if recovered := callRecovered(func() { commands = contributor.Commands() }); recovered != nil {
		r.logger.Error("Plugin panicked while listing commands",
			"identifier", identifier,
			"error", NewPluginPanicError(identifier, recovered))
		return
	}

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		// Conflicts are logged by the command registry; the plugin stays enabled
		_ = r.commands.Register(name, commands[name], identifier)
	}
}

// Get returns the enabled plugin with the given identifier.
func (r *PluginRegistry) Get(identifier string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rp, ok := r.plugins[identifier]
	if !ok || rp.descriptor.State != StateEnabled {
		return nil, false
	}
	return rp.plugin, true
}

// AllEnabled returns the enabled plugins in registry order.
func (r *PluginRegistry) AllEnabled() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		if rp := r.plugins[id]; rp.descriptor.State == StateEnabled {
			out = append(out, rp.plugin)
		}
	}
	return out
}

// Descriptors returns the descriptors of enabled plugins in registry order.
func (r *PluginRegistry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id].descriptor)
	}
	return out
}

// Failed returns the descriptors of candidates that failed to enable.
func (r *PluginRegistry) Failed() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.failed))
	copy(out, r.failed)
	return out
}

// Len returns the number of enabled plugins.
func (r *PluginRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// DisableAll disables every enabled plugin exactly once, in registry order.
// Faults are logged and never stop the remaining plugins. Calling it again
// is a no-op.
func (r *PluginRegistry) DisableAll() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	order := make([]string, len(r.order))
	copy(order, r.order)
	drainer, drainTimeout := r.config.Drainer, r.config.DrainTimeout
	r.mu.Unlock()

	for _, id := range order {
		r.mu.RLock()
		rp := r.plugins[id]
		r.mu.RUnlock()

		if drainer != nil && !drainer.WaitForDrain(id, drainTimeout) {
			r.logger.Warn("Plugin still has requests in flight, disabling anyway", "identifier", id)
		}

		desc := rp.descriptor
		r.logger.Info("Disabling "+desc.Name+", version "+desc.Version+" by "+desc.Author,
			"identifier", id)

		var disableErr error
		if recovered := callRecovered(func() { disableErr = rp.plugin.Disable() }); recovered != nil {
			disableErr = NewPluginPanicError(id, recovered)
		}
		if disableErr != nil {
			r.logger.Error("Plugin failed to disable",
				"identifier", id,
				"error", NewDisableFailedError(id, disableErr))
		}

		r.mu.Lock()
		rp.descriptor.State = StateDisabled
		r.mu.Unlock()
	}

	r.metrics.SetGauge(MetricPluginsEnabled, nil, 0)
}

// validIdentifier rejects identifiers that could escape the data directory
// or could never be addressed by a placeholder token.
func validIdentifier(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, Delimiter) || strings.ContainsRune(id, Separator) {
		return false
	}
	return strings.TrimSpace(id) == id
}
