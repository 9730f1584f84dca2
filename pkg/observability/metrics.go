// Package observability wires Prometheus metrics and OpenTelemetry
// tracing into the orchestrator and ingestion worker, grounded on the
// teacher's pkg/observability/metrics.go and tracer.go, trimmed to the
// components this spec actually has (chat turns, router targets, tool
// calls, ingestion jobs, usage tokens) instead of the teacher's much
// larger agent-runtime metric surface.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig enables or disables metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// Metrics holds every Prometheus collector this service registers.
type Metrics struct {
	registry *prometheus.Registry

	chatTurns        *prometheus.CounterVec
	chatTurnDuration *prometheus.HistogramVec
	chatErrors       *prometheus.CounterVec

	routerTargets *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	llmTokensPrompt     *prometheus.CounterVec
	llmTokensCompletion *prometheus.CounterVec

	ingestionJobs        *prometheus.CounterVec
	ingestionJobDuration *prometheus.HistogramVec
	ingestionChunks      *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance, or returns nil if cfg disables
// collection (matching the teacher's NewMetrics nil-on-disabled idiom).
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total chat turns processed, by sub-agent route.",
		}, []string{"route"}),
		chatTurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "chat_turn_duration_seconds",
			Help: "Chat turn wall-clock duration, by sub-agent route.",
		}, []string{"route"}),
		chatErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_errors_total",
			Help: "Chat turns that ended in an error, by error kind.",
		}, []string{"kind"}),
		routerTargets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_targets_total",
			Help: "Router classification outcomes, by target and source (llm vs keyword fallback).",
		}, []string{"target", "source"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "Tool invocations, by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "tool_call_duration_seconds",
			Help: "Tool invocation duration, by tool name.",
		}, []string{"tool"}),
		llmTokensPrompt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_prompt_tokens_total",
			Help: "Prompt tokens consumed, by model.",
		}, []string{"model"}),
		llmTokensCompletion: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_completion_tokens_total",
			Help: "Completion tokens produced, by model.",
		}, []string{"model"}),
		ingestionJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_jobs_total",
			Help: "Ingestion jobs processed, by terminal status.",
		}, []string{"status"}),
		ingestionJobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "ingestion_job_duration_seconds",
			Help: "Ingestion job wall-clock duration.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 540},
		}, []string{"status"}),
		ingestionChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_chunks_total",
			Help: "Chunks embedded and upserted during ingestion.",
		}, []string{"kb_id"}),
	}

	registry.MustRegister(
		m.chatTurns, m.chatTurnDuration, m.chatErrors,
		m.routerTargets,
		m.toolCalls, m.toolCallDuration,
		m.llmTokensPrompt, m.llmTokensCompletion,
		m.ingestionJobs, m.ingestionJobDuration, m.ingestionChunks,
	)
	return m
}

// Handler returns the HTTP handler serving this registry's metrics in
// the Prometheus exposition format, or a handler that always answers
// 404 Not Found if m is nil.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveChatTurn records one completed chat turn's route and duration.
func (m *Metrics) ObserveChatTurn(route string, seconds float64) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(route).Inc()
	m.chatTurnDuration.WithLabelValues(route).Observe(seconds)
}

// ObserveChatError records a chat turn that ended in an error of kind.
func (m *Metrics) ObserveChatError(kind string) {
	if m == nil {
		return
	}
	m.chatErrors.WithLabelValues(kind).Inc()
}

// ObserveRouterTarget records one routing decision and how it was made.
func (m *Metrics) ObserveRouterTarget(target, source string) {
	if m == nil {
		return
	}
	m.routerTargets.WithLabelValues(target, source).Inc()
}

// ObserveToolCall records one tool invocation's outcome and duration.
func (m *Metrics) ObserveToolCall(tool, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(seconds)
}

// ObserveUsage records token counts from one LLM call.
func (m *Metrics) ObserveUsage(model string, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	if promptTokens > 0 {
		m.llmTokensPrompt.WithLabelValues(model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensCompletion.WithLabelValues(model).Add(float64(completionTokens))
	}
}

// ObserveIngestionJob records one ingestion job's terminal status,
// duration, and chunk count.
func (m *Metrics) ObserveIngestionJob(status, kbID string, seconds float64, chunks int) {
	if m == nil {
		return
	}
	m.ingestionJobs.WithLabelValues(status).Inc()
	m.ingestionJobDuration.WithLabelValues(status).Observe(seconds)
	if chunks > 0 {
		m.ingestionChunks.WithLabelValues(kbID).Add(float64(chunks))
	}
}
