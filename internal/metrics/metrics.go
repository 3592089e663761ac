package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed triage runs and upstream calls.
	OutcomeSuccess = "success"
	// OutcomeError labels failed triage runs and upstream calls.
	OutcomeError = "error"
)

var (
	triagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "triages_total",
			Help:      "Total number of triage runs handled, partitioned by seed and outcome.",
		},
		[]string{"seed", "outcome"},
	)

	triageDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "triage_seconds",
			Help:      "Triage run latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	datadogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "datadog_requests_total",
			Help:      "Total number of Datadog API requests, partitioned by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)

// Register attaches faultline collectors to the supplied Prometheus
// registerer. Collectors that are already registered are tolerated so
// repeated boots share one set.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		triagesTotal,
		triageDurationSeconds,
		datadogRequestsTotal,
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

// ObserveTriage records one triage run with its seed type and outcome label.
func ObserveTriage(seed string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	triagesTotal.WithLabelValues(seed, label).Inc()
	if duration < 0 {
		duration = 0
	}
	triageDurationSeconds.Observe(duration.Seconds())
}

// ObserveDatadogRequest records the outcome of one upstream API call.
func ObserveDatadogRequest(endpoint, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	datadogRequestsTotal.WithLabelValues(endpoint, label).Inc()
}
