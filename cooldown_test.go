// cooldown_test.go: cooldown clock tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// manualClock is a Clock that only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func TestCooldownClock(t *testing.T) {
	clock := newManualClock()
	cd := NewCooldownClock()
	start := clock.Now()

	assert.True(t, cd.Eligible("p", start), "plugin without entry is eligible")

	cd.Advance("p", start, 10*time.Second)
	next, ok := cd.NextEligible("p")
	assert.True(t, ok)
	assert.Equal(t, start.Add(10*time.Second), next)

	assert.False(t, cd.Eligible("p", start.Add(3*time.Second)))
	assert.True(t, cd.Eligible("p", start.Add(10*time.Second)), "eligible exactly at next")
	assert.True(t, cd.Eligible("p", start.Add(11*time.Second)))
	assert.True(t, cd.Eligible("other", start))
}

func TestCooldownClock_ZeroInterval(t *testing.T) {
	cd := NewCooldownClock()
	now := time.Now()
	cd.Advance("p", now, 0)
	assert.True(t, cd.Eligible("p", now))
}

func TestSystemClock(t *testing.T) {
	now := SystemClock().Now()
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
