package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-sop/internal/models"
)

const (
	// OutcomeSuccess labels completed categorization runs.
	OutcomeSuccess = "success"
	// OutcomeError labels runs that failed on embedding or precondition errors.
	OutcomeError = "error"
	// OutcomeTimeout labels runs aborted by the run budget.
	OutcomeTimeout = "timeout"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_sop",
			Name:      "categorization_runs_total",
			Help:      "Total number of categorization runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_sop",
			Name:      "categorization_run_seconds",
			Help:      "Categorization run latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	embeddingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_sop",
			Name:      "embedding_batch_seconds",
			Help:      "Latency of the batched embedding call in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_sop",
			Name:      "incidents_categorized_total",
			Help:      "Incidents processed, partitioned by disposition (emitted, withheld, noise).",
		},
		[]string{"disposition"},
	)

	clustersPerRun = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_sop",
			Name:      "clusters_per_run",
			Help:      "Number of clusters formed per run, emitted or withheld.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	noiseRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_sop",
			Name:      "last_run_noise_ratio",
			Help:      "Fraction of incidents labelled noise in the most recent run.",
		},
	)
)

// Register attaches mirador-sop collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		embeddingDurationSeconds,
		incidentsTotal,
		clustersPerRun,
		noiseRatio,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError && label != OutcomeTimeout {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveEmbedding records the latency of one batched embedding call.
func ObserveEmbedding(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	embeddingDurationSeconds.Observe(duration.Seconds())
}

// ObservePartition records how a run split its incidents.
func ObservePartition(acc models.Accounting) {
	incidentsTotal.WithLabelValues("emitted").Add(float64(acc.Emitted))
	incidentsTotal.WithLabelValues("withheld").Add(float64(acc.Withheld))
	incidentsTotal.WithLabelValues("noise").Add(float64(acc.Noise))
	clustersPerRun.Observe(float64(acc.Clusters))
	if acc.Total > 0 {
		noiseRatio.Set(float64(acc.Noise) / float64(acc.Total))
	}
}
