package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatwise_sync_jobs_total",
			Help: "Total number of directory sync jobs by kind and outcome",
		},
		[]string{"tenant_id", "kind", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatwise_sync_duration_seconds",
			Help:    "Directory sync job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"kind"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatwise_analyses_total",
			Help: "Total number of analyses by terminal status",
		},
		[]string{"tenant_id", "status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatwise_analysis_duration_seconds",
			Help:    "Analysis run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		},
		[]string{"tenant_id"},
	)

	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatwise_recommendations_total",
			Help: "Total number of recommendations produced by action",
		},
		[]string{"tenant_id", "action"},
	)

	ProjectedSavings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seatwise_projected_monthly_savings_cents",
			Help: "Projected monthly savings of the latest completed analysis",
		},
		[]string{"tenant_id"},
	)

	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatwise_reports_generated_total",
			Help: "Total number of report artifacts by outcome",
		},
		[]string{"format", "status"},
	)

	AuditEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatwise_audit_events_published_total",
			Help: "Total number of audit events relayed to the broker",
		},
		[]string{"status"},
	)
)
