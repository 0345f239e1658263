// Package metrics holds sift's Prometheus collectors. They register with the
// default registry and are served by the API on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sift"

var (
	// ConversationsClassified counts classified conversations by the method of
	// their primary classification.
	// Labels: method (tagged, topic, text_analysis, none)
	ConversationsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "conversations_total",
			Help:      "Conversations classified, by primary classification method",
		},
		[]string{"method"},
	)

	// ConversationsSkipped counts batch elements that could not be decoded.
	ConversationsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "conversations_skipped_total",
			Help:      "Batch elements skipped because they were not conversation objects",
		},
	)

	// FilterMatches counts conversations returned by filter queries.
	// Labels: kind
	FilterMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "matches_total",
			Help:      "Conversations matched by filter queries",
		},
		[]string{"kind"},
	)

	// ExamplesSelected counts examples emitted by the selector.
	ExamplesSelected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "examples",
			Name:      "selected_total",
			Help:      "Representative examples selected",
		},
	)

	// Reranks counts LLM re-rank attempts.
	// Labels: outcome (llm, fallback, skipped)
	Reranks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "examples",
			Name:      "reranks_total",
			Help:      "Example re-rank attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Translations counts translation calls.
	// Labels: outcome (translated, unchanged, failed)
	Translations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "examples",
			Name:      "translations_total",
			Help:      "Example translations by outcome",
		},
		[]string{"outcome"},
	)

	// Reports counts report builds.
	// Labels: result (success, error)
	Reports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "builds_total",
			Help:      "Report builds by result",
		},
		[]string{"result"},
	)

	// ReportDuration tracks end-to-end report build time.
	ReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "build_duration_seconds",
			Help:      "Duration of report builds in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
