// Package metrics records per-tool request counts and latencies.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ToolMetrics tracks request volume and latency per tool.
type ToolMetrics struct {
	requestCount   prometheus.CounterVec
	requestLatency prometheus.HistogramVec
}

var (
	defaultToolMetrics     *ToolMetrics
	defaultToolMetricsOnce sync.Once
)

// NewToolMetrics builds a ToolMetrics recorder using the default registry.
func NewToolMetrics() *ToolMetrics {
	defaultToolMetricsOnce.Do(func() {
		defaultToolMetrics = newToolMetrics(prometheus.DefaultRegisterer)
	})
	return defaultToolMetrics
}

// NewToolMetricsWithRegisterer allows tests to provide a dedicated registry.
func NewToolMetricsWithRegisterer(reg prometheus.Registerer) *ToolMetrics {
	return newToolMetrics(reg)
}

func newToolMetrics(reg prometheus.Registerer) *ToolMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &ToolMetrics{
		requestCount: *factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slack_mcp_tool_request_count",
			Help: "Request count",
		}, []string{"tool"}),
		requestLatency: *factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slack_mcp_tool_request_duration",
			Help:    "Request latency",
			Buckets: []float64{0.1, 1.0, 10.0, 30.0},
		}, []string{"tool"}),
	}
}

// RecordRequest counts one tool invocation and observes its duration.
func (m *ToolMetrics) RecordRequest(tool string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(tool).Inc()
	m.requestLatency.WithLabelValues(tool).Observe(duration.Seconds())
}

// Handler serves the default-registry metrics in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
