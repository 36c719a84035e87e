package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors, registered on import via promauto. Embedding
// services scrape them from the default registry.

var (
	TransactionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routegraph_transactions_opened_total",
			Help: "Transactions opened, by mutability",
		},
		[]string{"kind"},
	)

	TransactionsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routegraph_transactions_committed_total",
			Help: "Mutable transactions successfully committed",
		},
	)

	TransactionsLeaked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routegraph_transactions_outstanding",
			Help: "Transactions still open at the last leak report",
		},
	)

	QueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routegraph_queries_total",
			Help: "Journey queries processed",
		},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routegraph_query_duration_seconds",
			Help:    "Wall time per journey query",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	JourneysFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routegraph_journeys_found",
			Help:    "Journeys returned per query",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	EvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routegraph_evaluations_total",
			Help: "Path positions evaluated across all queries",
		},
	)

	HeuristicChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routegraph_heuristic_checks_total",
			Help: "Individual admissibility checks run across all queries",
		},
	)

	ReasonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routegraph_reasons_total",
			Help: "Evaluation outcomes by reason code",
		},
		[]string{"code"},
	)

	VisitCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routegraph_visit_cache_hits_total",
			Help: "Previous-visit cache hits, by node category",
		},
		[]string{"category"},
	)

	VisitCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routegraph_visit_cache_misses_total",
			Help: "Previous-visit cache misses, by node category",
		},
		[]string{"category"},
	)
)
