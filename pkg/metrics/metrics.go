package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Repository holds the instruments the data-access layer records into.
// A nil *Repository is a no-op, so tests can skip metrics wiring.
type Repository struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewRepository registers the repository instruments with reg.
func NewRepository(reg prometheus.Registerer) *Repository {
	m := &Repository{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "discovery_engine",
			Subsystem: "repository",
			Name:      "operation_duration_seconds",
			Help:      "Duration of repository operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discovery_engine",
			Subsystem: "repository",
			Name:      "operation_errors_total",
			Help:      "Repository operations that returned a storage error.",
		}, []string{"entity", "operation"}),
	}
	reg.MustRegister(m.duration, m.errors)
	return m
}

// Observe records one finished operation. Validation and not-found outcomes
// are not storage errors and must be recorded with err == nil.
func (m *Repository) Observe(entity, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(entity, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errors.WithLabelValues(entity, operation).Inc()
	}
}
