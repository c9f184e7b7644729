package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search phases, used as metric labels.
const (
	phaseExact    = "exact_hash"
	phaseSemantic = "semantic"
	phaseMiss     = "miss"
)

var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixd_search_total",
		Help: "Total searches, by resolving phase.",
	}, []string{"phase"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixd_search_duration_seconds",
		Help:    "Search latency, by resolving phase.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"phase"})
)

func observeSearch(phase string, elapsed time.Duration) {
	searchTotal.WithLabelValues(phase).Inc()
	searchDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}
