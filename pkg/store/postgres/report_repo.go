package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *model.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepository) ListByAnalysis(ctx context.Context, analysisID string) ([]model.Report, error) {
	var reports []model.Report
	err := r.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, err
}

func (r *ReportRepository) MarkCompleted(ctx context.Context, id string, objectKey string, sizeBytes int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.ReportCompleted,
			"object_key":   objectKey,
			"size_bytes":   sizeBytes,
			"generated_at": &now,
			"updated_at":   now,
		}).Error
}

func (r *ReportRepository) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	return r.db.WithContext(ctx).Model(&model.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.ReportFailed,
			"error_message": errorMsg,
			"updated_at":    time.Now(),
		}).Error
}
