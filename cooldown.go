// cooldown.go: Per-plugin refresh cooldown tracking
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// Clock supplies the current time to the resolution engine.
type Clock interface {
	Now() time.Time
}

type cachedClock struct{}

// Now returns the cached wall-clock time.
func (cachedClock) Now() time.Time {
	return time.Unix(0, timecache.CachedTimeNano())
}

// SystemClock returns a Clock backed by go-timecache.
func SystemClock() Clock {
	return cachedClock{}
}

// CooldownClock records, per plugin identifier, the earliest instant at which
// the plugin may be queried again.
//
// A plugin with no entry is always eligible. Entries only move forward when
// the resolver records a pass in which the plugin produced at least one value.
type CooldownClock struct {
	mu           sync.RWMutex
	nextEligible map[string]time.Time
}

// NewCooldownClock creates an empty cooldown clock.
func NewCooldownClock() *CooldownClock {
	return &CooldownClock{nextEligible: make(map[string]time.Time)}
}

// Eligible reports whether the plugin may be queried at now.
func (c *CooldownClock) Eligible(identifier string, now time.Time) bool {
	c.mu.RLock()
	next, ok := c.nextEligible[identifier]
	c.mu.RUnlock()
	return !ok || !now.Before(next)
}

// Advance sets the next eligible instant for the plugin to now+interval.
func (c *CooldownClock) Advance(identifier string, now time.Time, interval time.Duration) {
	c.mu.Lock()
	c.nextEligible[identifier] = now.Add(interval)
	c.mu.Unlock()
}

// NextEligible returns the recorded instant and whether one exists.
func (c *CooldownClock) NextEligible(identifier string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	next, ok := c.nextEligible[identifier]
	return next, ok
}
