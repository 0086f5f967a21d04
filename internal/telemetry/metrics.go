package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the agent. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	agentTurns       *prometheus.CounterVec
	loopIterations   prometheus.Histogram
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	llmTokens        *prometheus.CounterVec
	llmCostUSD       *prometheus.CounterVec
	retrievalLatency *prometheus.HistogramVec
	checkpointWrites *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		agentTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_turns_total",
			Help: "Agent decision node invocations by outcome.",
		}, []string{"outcome"}),
		loopIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_loop_iterations",
			Help:    "Agent turns needed to reach END per request.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Tool calls by tool and status.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_tool_duration_seconds",
			Help:    "Tool call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens consumed by model and direction.",
		}, []string{"model", "direction"}),
		llmCostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_cost_usd_total",
			Help: "Estimated model cost in USD.",
		}, []string{"model"}),
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "retrieval_branch_duration_seconds",
			Help:    "Latency of each hybrid retrieval branch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection", "branch"}),
		checkpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_writes_total",
			Help: "Checkpoint saves by status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.agentTurns, m.loopIterations, m.toolCalls, m.toolDuration,
		m.llmTokens, m.llmCostUSD, m.retrievalLatency, m.checkpointWrites,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AgentTurn(outcome string) {
	if m == nil {
		return
	}
	m.agentTurns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LoopFinished(iterations int) {
	if m == nil {
		return
	}
	m.loopIterations.Observe(float64(iterations))
}

func (m *Metrics) ToolCall(tool string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) LLMUsage(model string, promptTokens, completionTokens int, costUSD float64) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues(model, "input").Add(float64(promptTokens))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(completionTokens))
	m.llmCostUSD.WithLabelValues(model).Add(costUSD)
}

func (m *Metrics) RetrievalBranch(collection, branch string, d time.Duration) {
	if m == nil {
		return
	}
	m.retrievalLatency.WithLabelValues(collection, branch).Observe(d.Seconds())
}

func (m *Metrics) CheckpointWrite(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.checkpointWrites.WithLabelValues(status).Inc()
}

// HTTPRequest records one served request under its route pattern.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
