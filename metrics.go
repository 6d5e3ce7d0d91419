package nestedpool

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Metrics ---

// Metrics holds the Prometheus metrics of a Compiler.
type Metrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	planCalls     *prometheus.HistogramVec
	finalizeTotal *prometheus.CounterVec
}

// NewMetrics creates the compiler metrics and registers them on reg.
// Collectors already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nestedpool_queries_total",
			Help: "Total number of plan queries, labeled by operation and result.",
		}, []string{"operation", "result"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nestedpool_query_duration_seconds",
			Help:    "Time taken to build and simulate a plan.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		planCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nestedpool_plan_calls",
			Help:    "Number of pool operations in a built plan.",
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		}, []string{"operation"}),
		finalizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nestedpool_finalize_total",
			Help: "Total number of finalized payloads, labeled by operation and result.",
		}, []string{"operation", "result"}),
	}
	m.queriesTotal = register(reg, m.queriesTotal)
	m.queryDuration = register(reg, m.queryDuration)
	m.planCalls = register(reg, m.planCalls)
	m.finalizeTotal = register(reg, m.finalizeTotal)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsStructural(err):
		return "structural_error"
	case IsInput(err):
		return "input_error"
	case IsSimulation(err):
		return "simulation_error"
	case IsEncoding(err):
		return "encoding_error"
	default:
		return "error"
	}
}
