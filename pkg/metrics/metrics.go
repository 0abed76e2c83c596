// Package metrics exposes Prometheus instruments for the rollup pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Promotion outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeNoCredential = "no_credential"
	OutcomeFailed       = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pagesIngested     prometheus.Counter
	promotions        *prometheus.CounterVec
	summarizeDuration *prometheus.HistogramVec
	notifications     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pagesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "pagetrail_pages_ingested_total",
			Help: "Total number of page visits recorded at level 0",
		}),
		promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagetrail_promotions_total",
			Help: "Total number of promotion attempts by target level and outcome",
		}, []string{"level", "outcome"}),
		summarizeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagetrail_summarize_duration_seconds",
			Help:    "Latency of summarizer calls by target level",
			Buckets: prometheus.DefBuckets,
		}, []string{"level"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagetrail_notifications_total",
			Help: "Notifications published, by delivery result",
		}, []string{"result"}),
	}
}

// PageIngested counts one recorded leaf.
func (m *Metrics) PageIngested() {
	if m == nil {
		return
	}
	m.pagesIngested.Inc()
}

// Promotion records one promotion attempt into level.
func (m *Metrics) Promotion(level int, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	l := strconv.Itoa(level)
	m.promotions.WithLabelValues(l, outcome).Inc()
	if outcome != OutcomeNoCredential {
		m.summarizeDuration.WithLabelValues(l).Observe(took.Seconds())
	}
}

// Notification counts a published notification. delivered is the number of
// subscribers that received it.
func (m *Metrics) Notification(delivered, dropped int) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues("delivered").Add(float64(delivered))
	m.notifications.WithLabelValues("dropped").Add(float64(dropped))
}
