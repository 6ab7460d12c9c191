// observability.go: Metrics collection for plugin requests and cache behaviour
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"sort"
	"strings"
	"sync"
)

// Metric names recorded by the engine.
const (
	MetricPluginRequests  = "plugin_requests_total"
	MetricRequestLatency  = "plugin_request_duration_seconds"
	MetricCacheReuse      = "placeholder_cache_reuse_total"
	MetricStaleFallback   = "placeholder_stale_fallback_total"
	MetricUnresolved      = "placeholder_unresolved_total"
	MetricPluginsEnabled  = "plugins_enabled"
	MetricRefreshPasses   = "refresh_passes_total"
	MetricSourceWrites    = "source_writes_total"
	MetricCommandDispatch = "commands_dispatched_total"
)

// Request outcomes used as the "outcome" label of MetricPluginRequests.
const (
	OutcomeValue   = "value"
	OutcomeNoValue = "no_value"
	OutcomeTimeout = "timeout"
	OutcomeBusy    = "busy"
	OutcomePanic   = "panic"
	OutcomeOpen    = "circuit_open"
)

// MetricsCollector receives the engine's counters, gauges and histograms.
//
// Example usage:
//
//	collector.IncrementCounter(MetricPluginRequests,
//	    map[string]string{"plugin": "clock", "outcome": OutcomeValue}, 1)
//	collector.RecordHistogram(MetricRequestLatency,
//	    map[string]string{"plugin": "clock"}, 0.002)
type MetricsCollector interface {
	IncrementCounter(name string, labels map[string]string, value int64)
	SetGauge(name string, labels map[string]string, value float64)
	RecordHistogram(name string, labels map[string]string, value float64)

	// GetMetrics returns a snapshot keyed by metric name and labels
	GetMetrics() map[string]interface{}
}

// DefaultMetricsCollector provides a basic in-memory metrics collector.
type DefaultMetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewDefaultMetricsCollector creates a new default metrics collector.
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter implements MetricsCollector
func (dmc *DefaultMetricsCollector) IncrementCounter(name string, labels map[string]string, value int64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()
	dmc.counters[metricKey(name, labels)] += value
}

// SetGauge implements MetricsCollector
func (dmc *DefaultMetricsCollector) SetGauge(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()
	dmc.gauges[metricKey(name, labels)] = value
}

// RecordHistogram implements MetricsCollector
func (dmc *DefaultMetricsCollector) RecordHistogram(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()

	key := metricKey(name, labels)
	dmc.histograms[key] = append(dmc.histograms[key], value)

	// Keep only last 1000 values to prevent memory growth
	if len(dmc.histograms[key]) > 1000 {
		dmc.histograms[key] = dmc.histograms[key][len(dmc.histograms[key])-1000:]
	}
}

// Counter returns the current value of one counter series.
func (dmc *DefaultMetricsCollector) Counter(name string, labels map[string]string) int64 {
	dmc.mu.RLock()
	defer dmc.mu.RUnlock()
	return dmc.counters[metricKey(name, labels)]
}

// Gauge returns the current value of one gauge series.
func (dmc *DefaultMetricsCollector) Gauge(name string, labels map[string]string) float64 {
	dmc.mu.RLock()
	defer dmc.mu.RUnlock()
	return dmc.gauges[metricKey(name, labels)]
}

// GetMetrics implements MetricsCollector
func (dmc *DefaultMetricsCollector) GetMetrics() map[string]interface{} {
	dmc.mu.RLock()
	defer dmc.mu.RUnlock()

	metrics := make(map[string]interface{})
	for k, v := range dmc.counters {
		metrics[k] = v
	}
	for k, v := range dmc.gauges {
		metrics[k] = v
	}
	for k, v := range dmc.histograms {
		if len(v) == 0 {
			continue
		}
		sum := 0.0
		maxVal := v[0]
		for _, val := range v {
			sum += val
			if val > maxVal {
				maxVal = val
			}
		}
		metrics[k+"_count"] = len(v)
		metrics[k+"_sum"] = sum
		metrics[k+"_max"] = maxVal
		metrics[k+"_avg"] = sum / float64(len(v))
	}
	return metrics
}

// metricKey renders name{k="v",...} with labels sorted by key.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(labels[k])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(string, map[string]string, int64)  {}
func (noopMetrics) SetGauge(string, map[string]string, float64)        {}
func (noopMetrics) RecordHistogram(string, map[string]string, float64) {}
func (noopMetrics) GetMetrics() map[string]interface{}                 { return map[string]interface{}{} }
