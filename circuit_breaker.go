// circuit_breaker.go: Per-plugin circuit breaker for request faults
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"sync"
	"sync/atomic"
	"time"
)

// BreakerState represents the current state of a plugin's circuit breaker.
//
// State behaviors:
//   - BreakerClosed: the plugin is queried normally
//   - BreakerOpen: the plugin is skipped and its placeholders fall back to cached values
//   - BreakerHalfOpen: a limited number of probe requests test whether the plugin recovered
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the per-plugin circuit breaker.
type CircuitBreakerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// FailureThreshold is the number of consecutive failed refresh passes that opens the circuit
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout is how long an open circuit waits before probing again
	RecoveryTimeout Duration `json:"recovery_timeout" yaml:"recovery_timeout"`

	// SuccessThreshold is the number of successful probes that closes a half-open circuit
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
}

// DefaultCircuitBreakerConfig returns the breaker settings used when none are
// configured. The breaker is off until enabled explicitly; the thresholds
// apply once it is.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          false,
		FailureThreshold: 5,
		RecoveryTimeout:  Duration(30 * time.Second),
		SuccessThreshold: 1,
	}
}

// CircuitBreaker tracks consecutive request failures for one plugin.
//
// Counters are atomic; state transitions are serialized by mu. Time comes
// from the injected Clock so the resolver and the breaker agree on "now".
type CircuitBreaker struct {
	config CircuitBreakerConfig
	clock  Clock

	state               atomic.Int32
	consecutiveFailures atomic.Int64
	probeSuccesses      atomic.Int64
	probesInFlight      atomic.Int64
	totalFailures       atomic.Int64
	totalSuccesses      atomic.Int64
	openedAt            atomic.Int64

	mu sync.Mutex
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig, clock Clock) *CircuitBreaker {
	if clock == nil {
		clock = SystemClock()
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	cb := &CircuitBreaker{config: config, clock: clock}
	cb.state.Store(int32(BreakerClosed))
	return cb
}

// AllowRequest reports whether the plugin may be queried now.
func (cb *CircuitBreaker) AllowRequest() bool {
	if !cb.config.Enabled {
		return true
	}

	switch BreakerState(cb.state.Load()) {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if !cb.recoveryElapsed() {
			return false
		}
		cb.mu.Lock()
		if BreakerState(cb.state.Load()) == BreakerOpen && cb.recoveryElapsed() {
			cb.state.Store(int32(BreakerHalfOpen))
			cb.probeSuccesses.Store(0)
			cb.probesInFlight.Store(0)
		}
		cb.mu.Unlock()
		return cb.admitProbe()

	case BreakerHalfOpen:
		return cb.admitProbe()

	default:
		return false
	}
}

func (cb *CircuitBreaker) admitProbe() bool {
	if BreakerState(cb.state.Load()) != BreakerHalfOpen {
		return BreakerState(cb.state.Load()) == BreakerClosed
	}
	return cb.probesInFlight.Add(1) <= int64(cb.config.SuccessThreshold)
}

// RecordSuccess records a refresh pass in which the plugin produced a value.
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.config.Enabled {
		return
	}

	cb.totalSuccesses.Add(1)
	cb.consecutiveFailures.Store(0)

	if BreakerState(cb.state.Load()) != BreakerHalfOpen {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.probeSuccesses.Add(1) >= int64(cb.config.SuccessThreshold) {
		cb.state.Store(int32(BreakerClosed))
		cb.probeSuccesses.Store(0)
		cb.probesInFlight.Store(0)
	}
}

// RecordFailure records a refresh pass in which every call to the plugin failed.
func (cb *CircuitBreaker) RecordFailure() {
	if !cb.config.Enabled {
		return
	}

	cb.totalFailures.Add(1)
	failures := cb.consecutiveFailures.Add(1)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch BreakerState(cb.state.Load()) {
	case BreakerHalfOpen:
		// Any failed probe reopens the circuit
		cb.trip()
	case BreakerClosed:
		if cb.config.FailureThreshold > 0 && failures >= int64(cb.config.FailureThreshold) {
			cb.trip()
		}
	}
}

// trip opens the circuit; called with mu held.
func (cb *CircuitBreaker) trip() {
	cb.state.Store(int32(BreakerOpen))
	cb.openedAt.Store(cb.clock.Now().UnixNano())
	cb.probeSuccesses.Store(0)
	cb.probesInFlight.Store(0)
}

func (cb *CircuitBreaker) recoveryElapsed() bool {
	opened := cb.openedAt.Load()
	if opened == 0 {
		return true
	}
	return cb.clock.Now().Sub(time.Unix(0, opened)) >= cb.config.RecoveryTimeout.Duration()
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() BreakerState {
	return BreakerState(cb.state.Load())
}

// GetStats returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	var opened time.Time
	if ns := cb.openedAt.Load(); ns != 0 {
		opened = time.Unix(0, ns)
	}
	return CircuitBreakerStats{
		State:               cb.GetState(),
		ConsecutiveFailures: cb.consecutiveFailures.Load(),
		TotalFailures:       cb.totalFailures.Load(),
		TotalSuccesses:      cb.totalSuccesses.Load(),
		OpenedAt:            opened,
	}
}

// Reset closes the circuit and clears the consecutive failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.Store(int32(BreakerClosed))
	cb.consecutiveFailures.Store(0)
	cb.probeSuccesses.Store(0)
	cb.probesInFlight.Store(0)
	cb.openedAt.Store(0)
}

// CircuitBreakerStats is a point-in-time view of a circuit breaker.
type CircuitBreakerStats struct {
	State               BreakerState `json:"state"`
	ConsecutiveFailures int64        `json:"consecutive_failures"`
	TotalFailures       int64        `json:"total_failures"`
	TotalSuccesses      int64        `json:"total_successes"`
	OpenedAt            time.Time    `json:"opened_at"`
}
