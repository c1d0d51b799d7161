package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/store"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) CreateBatch(ctx context.Context, metrics []*model.UsageMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	// The series is append-only: conflicting snapshots are dropped, not updated.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(metrics, 500).Error
}

func (r *UsageRepository) Query(ctx context.Context, query store.UsageQuery) ([]model.UsageMetric, error) {
	if query.UserID == "" {
		return nil, gorm.ErrInvalidValue
	}

	var metrics []model.UsageMetric
	dbQuery := r.db.WithContext(ctx).
		Where("user_id = ?", query.UserID).
		Order("report_date ASC")

	if query.Period != "" {
		dbQuery = dbQuery.Where("period = ?", query.Period)
	}

	if query.Since != nil {
		dbQuery = dbQuery.Where("report_date >= ?", *query.Since)
	}

	if query.Until != nil {
		dbQuery = dbQuery.Where("report_date <= ?", *query.Until)
	}

	if query.Limit > 0 {
		dbQuery = dbQuery.Limit(query.Limit)
	}

	err := dbQuery.Find(&metrics).Error
	return metrics, err
}

func (r *UsageRepository) DeleteOldMetrics(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return r.db.WithContext(ctx).
		Where("report_date < ?", cutoff).
		Delete(&model.UsageMetric{}).Error
}

func (r *UsageRepository) Close() error {
	// The shared gorm pool is closed by Store.Close.
	return nil
}
