// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package metrics provides Prometheus instrumentation for:
//   - Recommendation request latency and outcomes
//   - Candidate collection per tier
//   - Cache efficiency and backend failures
//   - Database query performance (DuckDB)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendationDuration tracks end-to-end recommendation latency.
	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"}, // "registered", "anonymous"
	)

	// RecommendationRequests counts recommendation requests by outcome.
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"source", "status"}, // status: "hit", "ok", "no_session", "error"
	)

	// CandidatesCollected counts candidates surfaced by each sourcing tier.
	CandidatesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_candidates_total",
			Help: "Total number of candidates collected per sourcing tier",
		},
		[]string{"tier"}, // "peer", "anonymized", "fallback"
	)

	// PeerComparisons counts pairwise similarity computations.
	PeerComparisons = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_peer_comparisons_total",
			Help: "Total number of pairwise taste profile comparisons",
		},
	)

	// CacheHits counts cache hits per logical cache.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // "results", "peer_shortlist", "anon_sample"
	)

	// CacheMisses counts cache misses per logical cache.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// CacheBackendFailures counts backend errors swallowed by the fail-open
	// wrapper. These degrade requests to recomputation, never fail them.
	CacheBackendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_backend_failures_total",
			Help: "Total number of cache backend errors treated as misses",
		},
		[]string{"operation", "error_type"}, // operation: "get", "set"
	)

	// DBQueryDuration tracks DuckDB query latency.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// DBQueryErrors counts DuckDB query errors.
	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// SessionsAnonymized counts expired sessions converted to anonymized
	// profiles by the batch anonymizer.
	SessionsAnonymized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_anonymized_total",
			Help: "Total number of anonymous sessions anonymized",
		},
		[]string{"outcome"}, // "converted", "skipped", "error"
	)
)

// ObserveDBQuery records a database query duration and outcome.
func ObserveDBQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
