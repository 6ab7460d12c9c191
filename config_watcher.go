// config_watcher.go: Hot reload of source templates powered by Argus
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// DefaultWatchInterval is how often the configuration file is polled.
const DefaultWatchInterval = 2 * time.Second

// ConfigWatcher reloads the configuration file when it changes and hands the
// new source templates to a callback.
//
// Only templates are applied live. Any other change is logged as requiring a
// restart. A file that fails to load keeps the previous configuration.
type ConfigWatcher struct {
	path     string
	watcher  *argus.Watcher
	logger   Logger
	onChange func([]SourceConfig)

	current atomic.Pointer[Config]
	running atomic.Bool
	stopped atomic.Bool
	mu      sync.Mutex
}

// NewConfigWatcher creates a watcher for path starting from the already
// loaded configuration.
func NewConfigWatcher(path string, initial Config, onChange func([]SourceConfig), logger Logger, pollInterval time.Duration) *ConfigWatcher {
	logger = NewLogger(logger)
	if pollInterval <= 0 {
		pollInterval = DefaultWatchInterval
	}

	watcher := argus.New(argus.Config{
		PollInterval:         pollInterval,
		CacheTTL:             pollInterval / 2,
		MaxWatchedFiles:      1,
		Audit:                argus.AuditConfig{Enabled: false},
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, file string) {
			logger.Error("Argus file watching error", "error", err, "file", file)
		},
	})

	cw := &ConfigWatcher{path: path, watcher: watcher, logger: logger, onChange: onChange}
	cw.current.Store(&initial)
	return cw
}

// Start begins watching.
func (cw *ConfigWatcher) Start() error {
	if cw.stopped.Load() {
		return NewConfigWatcherError("watcher has been stopped", nil)
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running.CompareAndSwap(false, true) {
		return NewConfigWatcherError("watcher is already running", nil)
	}
	if err := cw.watcher.Watch(cw.path, cw.handleChange); err != nil {
		cw.running.Store(false)
		return NewConfigWatcherError("watch failed", err)
	}
	if err := cw.watcher.Start(); err != nil {
		cw.running.Store(false)
		return NewConfigWatcherError("start failed", err)
	}

	cw.logger.Info("Configuration watcher started", "config_path", cw.path)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	if !cw.stopped.CompareAndSwap(false, true) {
		return nil
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := cw.watcher.Stop(); err != nil {
		return NewConfigWatcherError("stop failed", err)
	}
	cw.logger.Info("Configuration watcher stopped")
	return nil
}

// Current returns the last configuration that loaded successfully.
func (cw *ConfigWatcher) Current() Config {
	return *cw.current.Load()
}

func (cw *ConfigWatcher) handleChange(event argus.ChangeEvent) {
	if event.IsDelete {
		cw.logger.Warn("Configuration file was deleted, keeping current templates", "path", event.Path)
		return
	}
	cw.reload()
}

// reload loads the file and applies template changes.
func (cw *ConfigWatcher) reload() {
	next, err := LoadConfig(cw.path)
	if err != nil {
		cw.logger.Error("Failed to load new configuration, keeping current templates",
			"path", cw.path, "error", err, "error_code", ErrorCodeOf(err))
		return
	}

	prev := cw.current.Load()
	cw.current.Store(&next)

	if requiresRestart(*prev, next) {
		cw.logger.Warn("Configuration change requires a restart to take effect", "path", cw.path)
	}
	if reflect.DeepEqual(prev.Sources, next.Sources) {
		return
	}

	cw.logger.Info("Source templates reloaded", "sources", len(next.Sources))
	if cw.onChange != nil {
		cw.onChange(next.Templates())
	}
}

// requiresRestart reports whether anything besides the templates changed.
func requiresRestart(prev, next Config) bool {
	prev.Sources, next.Sources = nil, nil
	return !reflect.DeepEqual(prev, next)
}
