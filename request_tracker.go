// request_tracker.go: in-flight plugin request tracking and draining
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MetricRequestsInFlight is the gauge of plugin calls that have not returned.
const MetricRequestsInFlight = "plugin_requests_in_flight"

// Drainer waits for a plugin's outstanding calls to return.
type Drainer interface {
	WaitForDrain(identifier string, timeout time.Duration) bool
}

// RequestTracker counts plugin calls that are still running, including calls
// the resolver has stopped waiting for after a timeout.
type RequestTracker struct {
	mu      sync.RWMutex
	active  map[string]*atomic.Int64
	metrics MetricsCollector
}

// NewRequestTracker creates a tracker. metrics may be nil.
func NewRequestTracker(metrics MetricsCollector) *RequestTracker {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RequestTracker{active: make(map[string]*atomic.Int64), metrics: metrics}
}

func (rt *RequestTracker) counter(identifier string) *atomic.Int64 {
	rt.mu.RLock()
	c, ok := rt.active[identifier]
	rt.mu.RUnlock()
	if ok {
		return c
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if c, ok = rt.active[identifier]; !ok {
		c = &atomic.Int64{}
		rt.active[identifier] = c
	}
	return c
}

// StartRequest records a call entering the plugin.
func (rt *RequestTracker) StartRequest(identifier string) {
	n := rt.counter(identifier).Add(1)
	rt.metrics.SetGauge(MetricRequestsInFlight, map[string]string{"plugin": identifier}, float64(n))
}

// EndRequest records a call returning from the plugin.
func (rt *RequestTracker) EndRequest(identifier string) {
	n := rt.counter(identifier).Add(-1)
	rt.metrics.SetGauge(MetricRequestsInFlight, map[string]string{"plugin": identifier}, float64(n))
}

// ActiveRequests returns the number of calls still inside the plugin.
func (rt *RequestTracker) ActiveRequests(identifier string) int64 {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if c, ok := rt.active[identifier]; ok {
		return c.Load()
	}
	return 0
}

// WaitForDrain waits until the plugin has no call in flight. It returns
// false if timeout elapses first.
func (rt *RequestTracker) WaitForDrain(identifier string, timeout time.Duration) bool {
	if rt.ActiveRequests(identifier) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if rt.ActiveRequests(identifier) == 0 {
				return true
			}
		}
	}
}
