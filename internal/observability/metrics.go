// Package observability holds the runtime's Prometheus metrics,
// grounded on haasonsaas-nexus/internal/observability/metrics.go's
// promauto-registered CounterVec/HistogramVec/GaugeVec shape, trimmed
// to this runtime's own domain (HTTP, LLM, tool dispatch, ReAct
// iterations) instead of nexus's channel/webhook/queue metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide set of counters and histograms. One
// instance is created in cmd/agentrt/main.go and passed into
// internal/api as an explicit dependency (spec.md §9: no singleton).
type Metrics struct {
	// HTTPRequestDuration measures request latency.
	// Labels: method, path, status
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal counts requests.
	// Labels: method, path, status
	HTTPRequestsTotal *prometheus.CounterVec

	// LLMRequestDuration measures oracle round-trip latency (C3).
	// Labels: protocol, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensTotal tracks prompt/completion token consumption (C3).
	// Labels: protocol, model, kind (prompt|completion)
	LLMTokensTotal *prometheus.CounterVec

	// ToolExecutionsTotal counts tool dispatches (C2).
	// Labels: tool_name, status (success|error)
	ToolExecutionsTotal *prometheus.CounterVec

	// ToolExecutionDuration measures tool dispatch latency (C2).
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ReactIterationsTotal counts recursion-engine iterations (C5).
	// Labels: action_type
	ReactIterationsTotal *prometheus.CounterVec

	// ActiveTasks is a gauge of tasks currently running or awaiting
	// input.
	ActiveTasks prometheus.Gauge
}

// NewMetrics registers every metric against the default Prometheus
// registry. Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_llm_request_duration_seconds",
				Help:    "Duration of LLM oracle calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"protocol", "model"},
		),
		LLMTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_llm_tokens_total",
				Help: "Total tokens consumed by protocol, model, and kind",
			},
			[]string{"protocol", "model", "kind"},
		),
		ToolExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ReactIterationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_react_iterations_total",
				Help: "Total ReAct recursion iterations by action type",
			},
			[]string{"action_type"},
		),
		ActiveTasks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentrt_active_tasks",
				Help: "Number of tasks currently running or awaiting input",
			},
		),
	}
}

// RecordToolExecution records a single tool dispatch (C2).
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionsTotal.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordLLMRequest records a single oracle round trip (C3).
func (m *Metrics) RecordLLMRequest(protocol, model string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestDuration.WithLabelValues(protocol, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensTotal.WithLabelValues(protocol, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensTotal.WithLabelValues(protocol, model, "completion").Add(float64(completionTokens))
	}
}

// RecordReactIteration records one recursion-engine step (C5).
func (m *Metrics) RecordReactIteration(actionType string) {
	m.ReactIterationsTotal.WithLabelValues(actionType).Inc()
}
