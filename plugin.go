// plugin.go: Core plugin contract
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"sync"
)

// Plugin is the capability set every extension module implements.
//
// Plugins are trusted, co-located extensions. The engine guarantees that
// OnRequest is never called concurrently for the same instance, that Enable
// is called exactly once before any request, and that Disable is called at
// most once and only after a successful Enable.
type Plugin interface {
	// Name returns the display name of the plugin
	Name() string

	// Author returns the display author of the plugin
	Author() string

	// Version returns the display version of the plugin
	Version() string

	// Identifier returns the unique key placeholder tokens use to address the plugin
	Identifier() string

	// RefreshIntervalSeconds returns the minimum spacing between two refreshes
	// of this plugin's placeholders. Negative values are treated as zero.
	RefreshIntervalSeconds() int64

	// Enable prepares the plugin. dataDirectory is owned exclusively by this
	// plugin and exists when Enable is called. A non-nil error excludes the
	// plugin from the registry for the rest of the process lifetime.
	Enable(dataDirectory string) error

	// Disable releases the plugin's resources at shutdown.
	Disable() error

	// OnRequest produces the value for a placeholder argument. The boolean is
	// false when no value could be produced. ctx carries the per-call deadline.
	OnRequest(ctx context.Context, argument string) (string, bool)
}

// CommandContributor is implemented by plugins that add console commands.
type CommandContributor interface {
	// Commands returns the commands to register, keyed by command name
	Commands() map[string]Command
}

// Command is a console command handler.
type Command interface {
	Execute(args []string)
}

// CommandFunc adapts a plain function to the Command interface.
type CommandFunc func(args []string)

// Execute implements Command.
func (f CommandFunc) Execute(args []string) {
	f(args)
}

// Factory instantiates a compiled-in plugin. The logger is already scoped to
// the plugin module.
type Factory func(logger Logger) (Plugin, error)

// BasePlugin carries the bookkeeping most plugins need. Embed it and
// override what the plugin actually does.
//
// Example:
//
//	type WeatherPlugin struct {
//	    textreplacer.BasePlugin
//	}
//
//	func New(logger textreplacer.Logger) (textreplacer.Plugin, error) {
//	    return &WeatherPlugin{BasePlugin: textreplacer.NewBasePlugin(logger)}, nil
//	}
type BasePlugin struct {
	logger  Logger
	mu      sync.RWMutex
	dataDir string
}

// NewBasePlugin creates a BasePlugin bound to the given logger.
func NewBasePlugin(logger Logger) BasePlugin {
	return BasePlugin{logger: NewLogger(logger)}
}

// Logger returns the plugin's logger.
func (b *BasePlugin) Logger() Logger {
	if b.logger == nil {
		return DefaultLogger()
	}
	return b.logger
}

// SetDataDirectory records the directory passed to Enable.
func (b *BasePlugin) SetDataDirectory(dir string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dataDir = dir
}

// DataDirectory returns the directory recorded by SetDataDirectory.
func (b *BasePlugin) DataDirectory() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dataDir
}

// Enable records the data directory.
func (b *BasePlugin) Enable(dataDirectory string) error {
	b.SetDataDirectory(dataDirectory)
	return nil
}

// Disable is a no-op.
func (b *BasePlugin) Disable() error {
	return nil
}
