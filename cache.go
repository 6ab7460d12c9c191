// cache.go: Per-token cache of last resolved placeholder values
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"sync"
	"time"
)

// CacheEntry is the last successfully resolved value for one exact token text.
type CacheEntry struct {
	Token     string    `json:"token"`
	Value     string    `json:"value"`
	PluginID  string    `json:"plugin_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheStore persists cache entries across restarts.
type CacheStore interface {
	Load() ([]CacheEntry, error)
	Save(entry CacheEntry) error
	Close() error
}

// PlaceholderCache maps exact token text to its last resolved value.
//
// Entries are never expired. Staleness is governed by the CooldownClock.
// When a store is attached every write goes through to it; store failures
// are logged and never affect the in-memory entry.
type PlaceholderCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	store   CacheStore
	logger  Logger
}

// NewPlaceholderCache creates an in-memory cache. store may be nil.
func NewPlaceholderCache(store CacheStore, logger Logger) *PlaceholderCache {
	return &PlaceholderCache{
		entries: make(map[string]CacheEntry),
		store:   store,
		logger:  NewLogger(logger),
	}
}

// Warm loads persisted entries into memory. Entries already present are kept.
func (c *PlaceholderCache) Warm() (int, error) {
	if c.store == nil {
		return 0, nil
	}
	entries, err := c.store.Load()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for _, e := range entries {
		if _, exists := c.entries[e.Token]; exists {
			continue
		}
		c.entries[e.Token] = e
		loaded++
	}
	return loaded, nil
}

// Get returns the entry for the exact token text.
func (c *PlaceholderCache) Get(token string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[token]
	return e, ok
}

// Put creates or overwrites the entry for token.
func (c *PlaceholderCache) Put(token, value, pluginID string, at time.Time) {
	entry := CacheEntry{Token: token, Value: value, PluginID: pluginID, UpdatedAt: at}

	c.mu.Lock()
	c.entries[token] = entry
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(entry); err != nil {
			c.logger.Warn("Failed to persist cached placeholder value",
				"token", token,
				"error", err)
		}
	}
}

// Len returns the number of cached tokens.
func (c *PlaceholderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close closes the attached store, if any.
func (c *PlaceholderCache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
