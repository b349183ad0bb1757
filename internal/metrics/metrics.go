// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoicematch"

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Invoice pipeline executions by terminal state.",
	}, []string{"state"})

	LineItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "line_items_total",
		Help:      "Classified line items by verdict (matched, none, below_acceptance).",
	}, []string{"verdict"})

	MatchConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_confidence",
		Help:      "Confidence of non-NONE match outcomes.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	RedactionRegionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redaction_regions_total",
		Help:      "Rectangles painted onto redacted documents.",
	})

	ExtractionPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_polls_total",
		Help:      "Extraction status polls by observed status.",
	}, []string{"status"})

	AuditFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Audit events that could not be written, by action.",
	}, []string{"action"})

	SnapshotDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_documents",
		Help:      "Catalog entries in the active index snapshot.",
	})

	SnapshotLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_loads_total",
		Help:      "Index snapshot loads by origin (redis, file, rebuild).",
	}, []string{"origin"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until the server fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
