package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Entry metrics
	EntriesCreated  *prometheus.CounterVec
	EntriesUpdated  *prometheus.CounterVec
	EntriesDeleted  *prometheus.CounterVec
	EntryDuration   *prometheus.HistogramVec
	EntryAmount     *prometheus.HistogramVec
	EntryErrors     *prometheus.CounterVec
	BalanceClamps   *prometheus.CounterVec
	SkippedReversal *prometheus.CounterVec

	// Party metrics
	PartiesCreated *prometheus.CounterVec
	PartiesDeleted *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBRetries *prometheus.CounterVec

	// Redis metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	RedisErrors *prometheus.CounterVec

	// Outbox metrics
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditRecords *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationDrift *prometheus.CounterVec
}

// New creates all Prometheus metrics and registers them with reg.
// A nil reg registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Entry metrics
		EntriesCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_entries_created_total",
				Help: "Total number of ledger entries created",
			},
			[]string{"kind"},
		),
		EntriesUpdated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_entries_updated_total",
				Help: "Total number of ledger entries updated",
			},
			[]string{"kind"},
		),
		EntriesDeleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_entries_deleted_total",
				Help: "Total number of ledger entries soft-deleted",
			},
			[]string{"kind"},
		),
		EntryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopledger_entry_duration_seconds",
				Help:    "Duration of entry mutations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		EntryAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopledger_entry_amount",
				Help:    "Entry amounts",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"kind"},
		),
		EntryErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_entry_errors_total",
				Help: "Total number of entry mutation errors by type",
			},
			[]string{"error_type"},
		),
		BalanceClamps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_balance_clamps_total",
				Help: "Total number of balance mutations floored at zero",
			},
			[]string{"party_kind"},
		),
		SkippedReversal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_skipped_reversals_total",
				Help: "Total number of entry deletions whose party was already deleted",
			},
			[]string{"party_kind"},
		),

		// Party metrics
		PartiesCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_parties_created_total",
				Help: "Total number of parties created",
			},
			[]string{"kind"},
		),
		PartiesDeleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_parties_deleted_total",
				Help: "Total number of parties soft-deleted",
			},
			[]string{"kind"},
		),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_db_retries_total",
				Help: "Total transaction retries by reason",
			},
			[]string{"reason"},
		),

		// Redis metrics
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "shopledger_party_cache_hits_total",
			Help: "Total party cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "shopledger_party_cache_misses_total",
			Help: "Total party cache misses",
		}),
		RedisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Outbox metrics
		EventsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "shopledger_outbox_events_published_total",
			Help: "Total outbox events published",
		}),
		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "shopledger_outbox_publish_errors_total",
			Help: "Total outbox publish failures",
		}),

		// Rate limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Audit metrics
		AuditRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_audit_records_total",
				Help: "Total audit records by outcome",
			},
			[]string{"action", "status"},
		),

		// Reconciliation metrics
		ReconciliationDrift: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopledger_reconciliation_drift_total",
				Help: "Total reconciliations that found a stored balance differing from its entries",
			},
			[]string{"party_kind"},
		),
	}
}
