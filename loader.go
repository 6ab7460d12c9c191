// loader.go: Plugin discovery from compiled-in modules and Lua artifacts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LuaArtifactExtension is the file extension of Lua plugin artifacts.
const LuaArtifactExtension = ".lua"

// LoaderConfig configures plugin discovery.
type LoaderConfig struct {
	// Modules names the compiled-in modules to load. Empty loads every
	// registered module.
	Modules []string

	// DisableArtifacts skips scanning the plugin directory for Lua artifacts
	DisableArtifacts bool

	// LuaCallTimeout bounds lifecycle and command calls into Lua plugins
	LuaCallTimeout time.Duration

	Logger Logger
}

// Loader produces plugin candidates.
//
// Compiled-in plugins are linked statically and registered by module name
// with RegisterFactory; the Modules manifest selects which of them load.
// Lua artifacts are picked up from the plugin directory. Every candidate is
// instantiated exactly once per Discover call. Faults are logged and the
// offending module or artifact is skipped; discovery never aborts.
type Loader struct {
	config LoaderConfig
	logger Logger

	mu        sync.RWMutex
	factories map[string]Factory
}

// NewLoader creates a loader with no registered modules.
func NewLoader(config LoaderConfig) *Loader {
	return &Loader{
		config:    config,
		logger:    NewLogger(config.Logger),
		factories: make(map[string]Factory),
	}
}

// RegisterFactory links a compiled-in module under name.
func (l *Loader) RegisterFactory(name string, factory Factory) error {
	if name == "" || factory == nil {
		return NewCandidateInvalidError("builtin:"+name, "module name and factory are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.factories[name]; exists {
		return NewDuplicateFactoryError(name)
	}
	l.factories[name] = factory
	return nil
}

// Modules returns the registered module names sorted alphabetically.
func (l *Loader) Modules() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discover returns the candidates in load order: compiled-in modules sorted
// by name, then Lua artifacts of directory sorted by file name. directory is
// created if it does not exist.
func (l *Loader) Discover(directory string) []Candidate {
	candidates := l.discoverModules()
	if !l.config.DisableArtifacts && directory != "" {
		candidates = append(candidates, l.discoverArtifacts(directory)...)
	}

	l.logger.Info("Plugin discovery complete", "candidates", len(candidates))
	return candidates
}

func (l *Loader) discoverModules() []Candidate {
	selected := l.selectedModules()
	candidates := make([]Candidate, 0, len(selected))

	for _, name := range selected {
		l.mu.RLock()
		factory, ok := l.factories[name]
		l.mu.RUnlock()
		if !ok {
			l.logger.Warn("Skipping unknown plugin module", "error", NewUnknownModuleError(name))
			continue
		}

		source := "builtin:" + name
		plugin, err := l.instantiate(name, factory)
		if err != nil {
			l.logger.Warn("Skipping plugin module", "source", source, "error", err)
			continue
		}
		candidates = append(candidates, Candidate{Plugin: plugin, Source: source})
	}
	return candidates
}

func (l *Loader) selectedModules() []string {
	if len(l.config.Modules) == 0 {
		return l.Modules()
	}

	seen := make(map[string]struct{}, len(l.config.Modules))
	names := make([]string, 0, len(l.config.Modules))
	for _, name := range l.config.Modules {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// instantiate calls factory with panic recovery.
func (l *Loader) instantiate(name string, factory Factory) (plugin Plugin, err error) {
	var factoryErr error
	recovered := callRecovered(func() {
		plugin, factoryErr = factory(l.logger.With("plugin", name))
	})
	switch {
	case recovered != nil:
		return nil, NewFactoryFailedError(name, NewPluginPanicError(name, recovered))
	case factoryErr != nil:
		return nil, NewFactoryFailedError(name, factoryErr)
	case plugin == nil:
		return nil, NewCandidateInvalidError("builtin:"+name, "factory returned no plugin")
	}
	return plugin, nil
}

func (l *Loader) discoverArtifacts(directory string) []Candidate {
	if err := os.MkdirAll(directory, 0750); err != nil {
		l.logger.Error("Failed to create plugin directory", "directory", directory, "error", err)
		return nil
	}

	// ReadDir returns entries sorted by file name
	entries, err := os.ReadDir(directory)
	if err != nil {
		l.logger.Error("Failed to read plugin directory", "directory", directory, "error", err)
		return nil
	}

	var candidates []Candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), LuaArtifactExtension) {
			continue
		}

		path := filepath.Join(directory, entry.Name())
		module := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		plugin, err := LoadLuaPlugin(path, l.logger.With("plugin", module), l.config.LuaCallTimeout)
		if err != nil {
			l.logger.Warn("Skipping plugin artifact", "artifact", path, "error", err)
			continue
		}
		l.logger.Debug("Loaded plugin artifact", "artifact", path, "identifier", plugin.Identifier())
		candidates = append(candidates, Candidate{Plugin: plugin, Source: path})
	}
	return candidates
}
