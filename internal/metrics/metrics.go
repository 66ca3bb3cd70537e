package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every fileqa collector and backs the /metrics endpoint
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		LLMRequests, LLMDuration,
		Questions, SQLAttempts,
		Scrapes, AgentRuns,
	)
}

// LLMRequests counts completion calls by provider and outcome
var LLMRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fileqa_llm_requests_total",
		Help: "LLM completion requests",
	},
	[]string{"provider", "status"}, // ok | error
)

// LLMDuration tracks completion latency in seconds
var LLMDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "fileqa_llm_duration_seconds",
		Help:    "LLM completion latency (seconds)",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// Questions counts answered questions by input kind
var Questions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fileqa_questions_total",
		Help: "Questions asked",
	},
	[]string{"kind"}, // text | table | summary | agent
)

// SQLAttempts counts executions of generated SQL
var SQLAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fileqa_sql_attempts_total",
		Help: "Generated SQL executions",
	},
	[]string{"outcome"}, // ok | failed
)

// Scrapes counts finance quote lookups
var Scrapes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fileqa_scrapes_total",
		Help: "Finance quote scrapes",
	},
	[]string{"status"},
)

// AgentRuns counts agent invocations
var AgentRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fileqa_agent_runs_total",
		Help: "Agent runs",
	},
	[]string{"status"},
)

// Handler exposes the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Status maps an error to the status label used across the collectors
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
