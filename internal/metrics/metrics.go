package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barberbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_probes_total",
			Help:      "Availability probes by mode (filter, selection, final) and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_total",
			Help:      "Booking submissions by terminal phase.",
		},
		[]string{"outcome"},
	)

	ledgerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_request_duration_seconds",
			Help:      "Latency of ledger gateway calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, probes, submissions, ledgerLatency)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncProbe(mode, outcome string) {
	probes.WithLabelValues(mode, outcome).Inc()
}

func IncSubmission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// ObserveLedger records the duration of a gateway call started at start.
func ObserveLedger(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ledgerLatency.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
