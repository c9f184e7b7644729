package embeddings

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments embedding generation.
type Metrics struct {
	duration  *prometheus.HistogramVec
	batchSize *prometheus.HistogramVec
	errors    *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// sharedMetrics returns the process-wide embedding metrics. Collectors
// register with the default registry once.
func sharedMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "fixd_embedding_generation_duration_seconds",
				Help:    "Duration of embedding generation, by model and operation.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"model", "operation"}),
			batchSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "fixd_embedding_batch_size",
				Help:    "Number of texts per embedding batch request.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			}, []string{"model", "operation"}),
			errors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "fixd_embedding_errors_total",
				Help: "Total embedding generation errors, by model and operation.",
			}, []string{"model", "operation"}),
		}
	})
	return metricsInst
}

// RecordGeneration records one embedding generation attempt.
func (m *Metrics) RecordGeneration(model, operation string, duration time.Duration, batchSize int, err error) {
	m.duration.WithLabelValues(model, operation).Observe(duration.Seconds())
	if batchSize > 0 {
		m.batchSize.WithLabelValues(model, operation).Observe(float64(batchSize))
	}
	if err != nil {
		m.errors.WithLabelValues(model, operation).Inc()
	}
}
