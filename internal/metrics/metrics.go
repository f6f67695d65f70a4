// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wifi_registry"

// OutcomeStored labels records that reached the store
const OutcomeStored = "stored"

// Metrics holds the pipeline collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RecordsTotal     *prometheus.CounterVec
	DuplicatesTotal  prometheus.Counter
	BatchesTotal     prometheus.Counter
	BatchDuration    prometheus.Histogram
	EnrichmentsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed by outcome (stored or error kind)",
		},
		[]string{"outcome"},
	)

	m.DuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_total",
			Help:      "Records dropped because their signature was already seen",
		},
	)

	m.BatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch ingestion calls completed",
		},
	)

	m.BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time to ingest one batch",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	m.EnrichmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Completed enrichment conversations by result",
		},
		[]string{"result"}, // "updated", "not_found", "error", "cancelled"
	)

	m.registry.MustRegister(
		m.RecordsTotal,
		m.DuplicatesTotal,
		m.BatchesTotal,
		m.BatchDuration,
		m.EnrichmentsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOutcome counts one processed record
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordDuplicate counts one record dropped by dedup
func (m *Metrics) RecordDuplicate() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
}

// ObserveBatch records a completed batch
func (m *Metrics) ObserveBatch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
	m.BatchDuration.Observe(elapsed.Seconds())
}

// RecordEnrichment counts a finished enrichment conversation
func (m *Metrics) RecordEnrichment(result string) {
	if m == nil {
		return
	}
	m.EnrichmentsTotal.WithLabelValues(result).Inc()
}
