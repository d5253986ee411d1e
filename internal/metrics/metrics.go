// Package metrics provides Prometheus metrics for the catalog server and importer.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Import Run Metrics
	ImportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_import_runs_total",
			Help: "Total number of catalog import runs",
		},
		[]string{"mode", "result"}, // mode: "full", "quick", "dry_run"; result: "ok", "failed", "cancelled"
	)

	ImportRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_import_run_duration_seconds",
			Help:    "Wall time of a catalog import run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
	)

	ImportRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_import_running",
			Help: "1 while a catalog import is in progress",
		},
	)

	ImportSetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_import_sets_total",
			Help: "Sets processed by the importer",
		},
		[]string{"action"}, // "imported", "updated", "skipped"
	)

	ImportCardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_import_cards_total",
			Help: "Cards processed by the importer",
		},
		[]string{"action"}, // "imported", "updated", "skipped"
	)

	ImportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_import_errors_total",
			Help: "Non-fatal import errors by scope",
		},
		[]string{"scope"}, // "card", "batch", "set", "cancelled"
	)

	ImportBatchRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_import_batch_rollbacks_total",
			Help: "Card batches rolled back by the importer",
		},
	)

	TaxonomyEntriesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_taxonomy_entries_created_total",
			Help: "Taxonomy names introduced by imports",
		},
		[]string{"kind"}, // "rarity", "card_type", "energy_type"
	)

	// TCGdex API Metrics
	TCGdexRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tcgdex_requests_total",
			Help: "Total number of TCGdex API requests made",
		},
		[]string{"endpoint", "result"}, // endpoint: "sets", "set", "card"; result: "ok", "rate_limited", "error"
	)

	TCGdexRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_tcgdex_retries_total",
			Help: "TCGdex requests retried after a failed attempt",
		},
	)

	TCGdexRateLimitWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_tcgdex_rate_limit_wait_seconds_total",
			Help: "Seconds spent waiting on TCGdex Retry-After",
		},
	)

	// Collection Metrics
	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_collection_cards_total",
			Help: "Total number of cards in collection",
		},
	)

	// Card Database Metrics
	CardDatabaseSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_card_database_size",
			Help: "Number of unique cards in the database",
		},
	)

	CatalogCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_catalog_cache_lookups_total",
			Help: "Card-by-id cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)
)
