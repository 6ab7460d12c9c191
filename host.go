// host.go: Host process wiring plugins, resolver, scheduler and target
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// HostConfig holds everything a Host needs. Loader must already have its
// compiled-in factories registered.
type HostConfig struct {
	Config Config

	// ConfigPath enables template hot reload when Config.Watch is set
	ConfigPath string

	Target RenderTarget
	Loader *Loader

	// Input feeds the console. Nil disables it.
	Input  io.Reader
	Output io.Writer

	Logger  Logger
	Metrics MetricsCollector
	Clock   Clock
}

// Host runs the text replacer: it enables plugins, refreshes every source on
// the scheduler's cadence and shuts everything down in order.
type Host struct {
	config  Config
	target  RenderTarget
	loader  *Loader
	logger  Logger
	metrics MetricsCollector

	commands *CommandRegistry
	registry *PluginRegistry
	resolver *Resolver
	cache    *PlaceholderCache
	console  *Console
	sched    *Scheduler
	watcher  *ConfigWatcher

	templates atomic.Pointer[[]SourceConfig]

	stopCh   chan struct{}
	stopOnce sync.Once
	shutOnce sync.Once
}

// NewHost builds a host. Nothing runs until Run.
func NewHost(hc HostConfig) (*Host, error) {
	if hc.Target == nil {
		return nil, NewConfigValidationError("host requires a render target", nil)
	}
	logger := NewLogger(hc.Logger)
	metrics := hc.Metrics
	if metrics == nil {
		metrics = NewDefaultMetricsCollector()
	}
	loader := hc.Loader
	if loader == nil {
		loader = NewLoader(LoaderConfig{
			Modules:          hc.Config.Plugins.Enabled,
			DisableArtifacts: hc.Config.Plugins.DisableArtifacts,
			LuaCallTimeout:   hc.Config.Plugins.RequestTimeout.Duration(),
			Logger:           logger,
		})
	}
	output := hc.Output
	if output == nil {
		output = os.Stdout
	}

	h := &Host{
		config:  hc.Config,
		target:  hc.Target,
		loader:  loader,
		logger:  logger,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
	templates := hc.Config.Templates()
	h.templates.Store(&templates)

	if hc.Config.Cache.Persist {
		store, err := OpenSQLiteCacheStore(hc.Config.Cache.Path)
		if err != nil {
			logger.Warn("Placeholder cache persistence disabled", "path", hc.Config.Cache.Path, "error", err)
			h.cache = NewPlaceholderCache(nil, logger)
		} else {
			h.cache = NewPlaceholderCache(store, logger)
		}
	} else {
		h.cache = NewPlaceholderCache(nil, logger)
	}

	h.commands = NewCommandRegistry(logger)
	h.commands.SetMetrics(metrics)

	h.registry = NewPluginRegistry(RegistryConfig{
		DataDirectory: hc.Config.Plugins.DataDirectory,
		Logger:        logger,
		Metrics:       metrics,
	}, h.commands)

	h.resolver = NewResolver(h.registry, ResolverConfig{
		RequestTimeout: hc.Config.Plugins.RequestTimeout.Duration(),
		CircuitBreaker: hc.Config.Plugins.CircuitBreaker,
		Cache:          h.cache,
		Clock:          hc.Clock,
		Logger:         logger,
		Metrics:        metrics,
	})

	h.registry.SetDrainer(h.resolver.Tracker(), hc.Config.Plugins.RequestTimeout.Duration())

	var poll func()
	if hc.Input != nil {
		h.console = NewConsole(hc.Input, h.commands, logger)
		poll = func() { h.console.Poll() }
	}

	h.sched = NewScheduler(SchedulerConfig{
		RefreshInterval: hc.Config.Scheduler.RefreshInterval.Duration(),
		ConsoleInterval: hc.Config.Scheduler.ConsoleInterval.Duration(),
		Logger:          logger,
	}, h.refresh, poll)

	RegisterBuiltinCommands(h.commands, Builtins{
		Stop:         h.RequestStop,
		ForceRefresh: h.sched.ForceRefresh,
		Registry:     h.registry,
		Resolver:     h.resolver,
		Metrics:      metrics,
		Out:          output,
	})

	if hc.Config.Watch && hc.ConfigPath != "" {
		h.watcher = NewConfigWatcher(hc.ConfigPath, hc.Config, h.SetTemplates, logger, 0)
	}
	return h, nil
}

// Run enables plugins and refreshes sources until ctx is cancelled, stop is
// requested or the target's control channel is lost. A lost channel is
// returned as the error; every other exit returns nil.
func (h *Host) Run(ctx context.Context) error {
	if n, err := h.cache.Warm(); err != nil {
		h.logger.Warn("Failed to load persisted placeholder values", "error", err)
	} else if n > 0 {
		h.logger.Info("Loaded persisted placeholder values", "entries", n)
	}

	candidates := h.loader.Discover(h.config.Plugins.Directory)
	enabled := h.registry.EnableAll(candidates)
	h.logger.Info("Plugins enabled", "enabled", enabled, "candidates", len(candidates))

	if h.watcher != nil {
		if err := h.watcher.Start(); err != nil {
			h.logger.Warn("Configuration hot reload unavailable", "error", err)
		}
	}
	if h.console != nil {
		h.console.Start()
	}
	h.sched.Start()

	var runErr error
	select {
	case <-ctx.Done():
		h.logger.Info("Shutdown requested", "reason", ctx.Err())
	case <-h.stopCh:
		h.logger.Info("Shutdown requested", "reason", "stop command")
	case <-h.target.Done():
		runErr = h.target.Err()
		if runErr != nil {
			h.logger.Error("Control channel lost", "error", runErr, "error_code", ErrorCodeOf(runErr))
		}
	}

	h.Shutdown()
	return runErr
}

// RequestStop asks Run to shut down. It does not block and may be called
// from a console command or any other goroutine.
func (h *Host) RequestStop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Shutdown stops the periodic activities, disables every enabled plugin,
// closes the control channel, then the watcher and the cache. Only the
// first call has any effect.
func (h *Host) Shutdown() {
	h.shutOnce.Do(func() {
		h.sched.Stop()
		if h.console != nil {
			h.console.Stop()
		}

		h.registry.DisableAll()

		if err := h.target.Close(); err != nil {
			h.logger.Warn("Failed to close control channel", "error", err)
		}
		if h.watcher != nil {
			if err := h.watcher.Stop(); err != nil {
				h.logger.Warn("Failed to stop configuration watcher", "error", err)
			}
		}
		if err := h.cache.Close(); err != nil {
			h.logger.Warn("Failed to close placeholder cache", "error", err)
		}
		h.logger.Info("Shutdown complete")
	})
}

// SetTemplates replaces the source templates used from the next pass on.
func (h *Host) SetTemplates(templates []SourceConfig) {
	t := append([]SourceConfig(nil), templates...)
	h.templates.Store(&t)
}

// Templates returns the current source templates.
func (h *Host) Templates() []SourceConfig {
	return append([]SourceConfig(nil), (*h.templates.Load())...)
}

// refresh runs one resolution pass and pushes every source.
func (h *Host) refresh(ctx context.Context, bypass bool) {
	sources := *h.templates.Load()
	if len(sources) == 0 {
		return
	}

	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	rendered := h.resolver.ResolveAll(ctx, texts, bypass)

	for i, s := range sources {
		if ctx.Err() != nil {
			return
		}
		outcome := "sent"
		if err := h.target.SetSourceText(ctx, s.Name, rendered[i]); err != nil {
			outcome = "failed"
			h.logger.Warn("Failed to update source", "source", s.Name, "error", err)
		}
		h.metrics.IncrementCounter(MetricSourceWrites, map[string]string{"source": s.Name, "outcome": outcome}, 1)
	}
}

// Commands returns the console command registry.
func (h *Host) Commands() *CommandRegistry { return h.commands }

// Registry returns the plugin registry.
func (h *Host) Registry() *PluginRegistry { return h.registry }

// Resolver returns the placeholder resolver.
func (h *Host) Resolver() *Resolver { return h.resolver }
