// Package textreplacer is the plugin runtime and placeholder resolution engine
// behind a long-running host that keeps streaming overlay text sources up to date.
//
// Text sources contain placeholder tokens of the form %plugin_argument%. On every
// refresh pass the engine tokenizes each template, asks the owning plugin for a
// value (at most once per refresh interval per plugin), caches the last good
// value per exact token and pushes the rewritten text to the rendering target.
//
// Key Features:
//   - Compiled-in plugin factories selected by a declared module list
//   - Lua plugin artifacts, each loaded into its own isolated interpreter
//   - Per-plugin cooldown clock with a per-token value cache
//   - Bounded, concurrent plugin calls with panic isolation and circuit breaking
//   - First-writer-wins console command registry
//   - obs-websocket v5 control channel
//   - Hot reload of source templates through Argus
//
// Basic Usage:
//
//	commands := textreplacer.NewCommandRegistry(logger)
//	registry := textreplacer.NewPluginRegistry(textreplacer.RegistryConfig{
//		DataDirectory: "plugins",
//		Logger:        logger,
//	}, commands)
//
//	loader := textreplacer.NewLoader(textreplacer.LoaderConfig{Logger: logger})
//	_ = loader.RegisterFactory("clock", clock.New)
//	registry.EnableAll(loader.Discover("plugins"))
//
//	resolver := textreplacer.NewResolver(registry, textreplacer.ResolverConfig{Logger: logger})
//	text := resolver.Resolve(ctx, "Now: %clock_time%", false)
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package textreplacer
