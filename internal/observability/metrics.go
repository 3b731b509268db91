// Package observability holds the Prometheus metrics of the agent service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects agent loop metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// TurnCounter counts chat turns by outcome (done|pending|limit|error|rejected).
	TurnCounter *prometheus.CounterVec

	// LoopIterations observes model submissions per turn.
	LoopIterations prometheus.Histogram

	// ModelCallDuration measures completion stream latency in seconds.
	// Labels: model, status (success|error)
	ModelCallDuration *prometheus.HistogramVec

	// TokensUsed tracks token consumption.
	// Labels: model, type (input|output)
	TokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, source (builtin|dynamic), status (completed|failed|pending|cancelled)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// DynamicSourceFailures counts swallowed dynamic source failures.
	// Labels: operation (connect|list|invoke)
	DynamicSourceFailures *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_turns_total",
				Help: "Total number of chat turns by outcome",
			},
			[]string{"outcome"},
		),
		LoopIterations: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agent_loop_iterations",
				Help:    "Model submissions per chat turn",
				Buckets: []float64{1, 2, 3, 4, 5, 8},
			},
		),
		ModelCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_model_call_duration_seconds",
				Help:    "Duration of streamed model calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model", "status"},
		),
		TokensUsed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tokens_total",
				Help: "Total number of tokens used by model and direction",
			},
			[]string{"model", "type"},
		),
		ToolExecutionCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_executions_total",
				Help: "Total number of tool executions by tool, source and status",
			},
			[]string{"tool_name", "source", "status"},
		),
		ToolExecutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		DynamicSourceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_dynamic_source_failures_total",
				Help: "Dynamic tool source failures by operation",
			},
			[]string{"operation"},
		),
	}
}

// TurnFinished records the outcome and iteration count of a turn.
func (m *Metrics) TurnFinished(outcome string, iterations int) {
	if m == nil {
		return
	}
	m.TurnCounter.WithLabelValues(outcome).Inc()
	if iterations > 0 {
		m.LoopIterations.Observe(float64(iterations))
	}
}

// ModelCall records one streamed completion.
func (m *Metrics) ModelCall(model string, d time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ModelCallDuration.WithLabelValues(model, status).Observe(d.Seconds())
	m.TokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.TokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// ToolExecuted records a tool execution.
func (m *Metrics) ToolExecuted(name string, dynamic bool, status string, d time.Duration) {
	if m == nil {
		return
	}
	source := "builtin"
	if dynamic {
		source = "dynamic"
	}
	m.ToolExecutionCounter.WithLabelValues(name, source, status).Inc()
	if d > 0 {
		m.ToolExecutionDuration.WithLabelValues(name).Observe(d.Seconds())
	}
}

// DynamicSourceFailure records a swallowed dynamic source failure.
func (m *Metrics) DynamicSourceFailure(operation string) {
	if m == nil {
		return
	}
	m.DynamicSourceFailures.WithLabelValues(operation).Inc()
}
