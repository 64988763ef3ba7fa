package completer

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Total model load attempts",
		},
		[]string{"engine", "result"},
	)

	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "completer",
			Name:      "completions_total",
			Help:      "Total completion requests by result",
		},
		[]string{"result"},
	)

	completionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "localllm",
			Subsystem: "completer",
			Name:      "completion_duration_seconds",
			Help:      "Engine time spent per completion",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "completer",
			Name:      "cache_hits_total",
			Help:      "Completions served from the response cache",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, completionsTotal, completionDuration, cacheHitsTotal)
}

// resultLabel buckets an error into a low-cardinality label value.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTooBusy(err):
		return "busy"
	case IsInvalidRequest(err):
		return "invalid"
	case IsNotLoaded(err):
		return "not_loaded"
	default:
		return "error"
	}
}
