package store

import (
	"context"
	"time"

	"github.com/seatwise/seatwise/pkg/model"
)

// UsageQuery filters the usage metric time series for one user.
type UsageQuery struct {
	UserID string
	Period string
	Since  *time.Time
	Until  *time.Time
	Limit  int
}

// UsageStore is the interface for usage metric storage backends
// (PostgreSQL, ClickHouse).
type UsageStore interface {
	// CreateBatch appends a batch of metrics. Duplicate
	// (user, period, report_date) rows are ignored, never updated.
	CreateBatch(ctx context.Context, metrics []*model.UsageMetric) error

	// Query retrieves metrics for a user ordered by report date ascending.
	Query(ctx context.Context, query UsageQuery) ([]model.UsageMetric, error)

	// DeleteOldMetrics drops rows past the retention window (no-op for
	// backends with native TTL).
	DeleteOldMetrics(ctx context.Context, retentionDays int) error

	// Close closes the connection to the storage backend.
	Close() error
}
