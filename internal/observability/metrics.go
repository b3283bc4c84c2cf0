package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mergington",
		Subsystem: "enrollment",
		Name:      "operations_total",
		Help:      "Number of enrollment domain operations, labeled by operation and outcome.",
	}, []string{"operation", "outcome"})

	enrollmentChangedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mergington",
		Subsystem: "enrollment",
		Name:      "last_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent enrollment created or removed.",
	})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mergington",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests, labeled by route template and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(operationCounter, enrollmentChangedGauge, requestDuration)
}

// RecordOperation counts one domain operation. outcome is "ok" or a failure class.
func RecordOperation(operation, outcome string) {
	operationCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordEnrollmentChanged updates the enrollment watermark gauge.
func RecordEnrollmentChanged(ts time.Time) {
	if ts.IsZero() {
		return
	}
	enrollmentChangedGauge.Set(float64(ts.Unix()))
}

// EnrollmentChangedGauge exposes the watermark gauge for assertions in tests.
func EnrollmentChangedGauge() prometheus.Gauge {
	return enrollmentChangedGauge
}

// ObserveRequest records one HTTP request.
func ObserveRequest(route, status string, elapsed time.Duration) {
	requestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}

// OperationCount exposes the counter behind RecordOperation for assertions in tests.
func OperationCount(operation, outcome string) prometheus.Counter {
	return operationCounter.WithLabelValues(operation, outcome)
}
