package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordTx appends one audit row on the caller's transaction, so the audit
// row commits atomically with the mutation it describes.
func (r *AuditRepository) RecordTx(tx *gorm.DB, entry *model.AuditLog) error {
	return tx.Create(entry).Error
}

func (r *AuditRepository) ListPending(ctx context.Context, limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []model.AuditLog
	err := r.db.WithContext(ctx).
		Where("status = ?", model.AuditStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *AuditRepository) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	updates := map[string]interface{}{
		"status":       model.AuditStatusPublished,
		"published_at": publishedAt,
	}
	return r.db.WithContext(ctx).
		Model(&model.AuditLog{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *AuditRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	updates := map[string]interface{}{
		"status": model.AuditStatusFailed,
	}
	return r.db.WithContext(ctx).
		Model(&model.AuditLog{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *AuditRepository) ListByEntity(ctx context.Context, entity, recordID string, limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []model.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity = ? AND record_id = ?", entity, recordID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
