// observability_test.go: in-memory metrics collector tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMetricsCollector(t *testing.T) {
	m := NewDefaultMetricsCollector()
	labels := map[string]string{"plugin": "clock", "outcome": OutcomeValue}

	m.IncrementCounter(MetricPluginRequests, labels, 1)
	m.IncrementCounter(MetricPluginRequests, labels, 2)
	m.SetGauge(MetricPluginsEnabled, nil, 3)
	m.RecordHistogram(MetricRequestLatency, map[string]string{"plugin": "clock"}, 0.5)
	m.RecordHistogram(MetricRequestLatency, map[string]string{"plugin": "clock"}, 1.5)

	assert.Equal(t, int64(3), m.Counter(MetricPluginRequests, labels))
	assert.Equal(t, float64(3), m.Gauge(MetricPluginsEnabled, nil))

	snapshot := m.GetMetrics()
	assert.Equal(t, int64(3), snapshot[`plugin_requests_total{outcome="value",plugin="clock"}`])
	assert.Equal(t, float64(3), snapshot["plugins_enabled"])
	assert.Equal(t, 2, snapshot[`plugin_request_duration_seconds{plugin="clock"}_count`])
	assert.Equal(t, 1.0, snapshot[`plugin_request_duration_seconds{plugin="clock"}_avg`])
	assert.Equal(t, 1.5, snapshot[`plugin_request_duration_seconds{plugin="clock"}_max`])
}

func TestDefaultMetricsCollector_HistogramBounded(t *testing.T) {
	m := NewDefaultMetricsCollector()
	for i := 0; i < 1500; i++ {
		m.RecordHistogram("h", nil, float64(i))
	}
	assert.Equal(t, 1000, m.GetMetrics()["h_count"])
}
