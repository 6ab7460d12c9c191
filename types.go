// types.go: Plugin descriptors and lifecycle states
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"time"
)

// LifecycleState represents where a plugin instance is in its lifecycle.
//
// Transitions:
//   - StateDiscovered -> StateEnabling: the loader instantiated the plugin
//   - StateEnabling -> StateEnabled: Enable returned nil
//   - StateEnabling -> StateFailedToEnable: Enable failed (terminal, never disabled)
//   - StateEnabled -> StateDisabled: process shutdown (terminal)
type LifecycleState int

const (
	StateDiscovered LifecycleState = iota
	StateEnabling
	StateEnabled
	StateFailedToEnable
	StateDisabled
)

// String returns a human-readable representation of the lifecycle state.
func (s LifecycleState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateEnabling:
		return "enabling"
	case StateEnabled:
		return "enabled"
	case StateFailedToEnable:
		return "failed-to-enable"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Descriptor is a snapshot of a registered plugin's identity and state.
//
// Name, Author and Version are display-only. Identifier is the sole
// addressing key used by placeholder tokens and the registry.
type Descriptor struct {
	Identifier      string         `json:"identifier"`
	Name            string         `json:"name"`
	Author          string         `json:"author"`
	Version         string         `json:"version"`
	RefreshInterval time.Duration  `json:"refresh_interval"`
	DataDirectory   string         `json:"data_directory"`
	Source          string         `json:"source"`
	State           LifecycleState `json:"state"`
}

// Candidate is a plugin instance produced by the loader that has not been
// enabled yet.
type Candidate struct {
	Plugin Plugin
	// Source names where the candidate came from: "builtin:<module>" for
	// compiled-in factories or the artifact path for Lua plugins.
	Source string
}

// refreshInterval converts a plugin's advertised interval into a duration,
// clamping negative values to zero.
func refreshInterval(p Plugin) time.Duration {
	seconds := p.RefreshIntervalSeconds()
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds) * time.Second
}
