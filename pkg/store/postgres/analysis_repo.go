package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis *model.Analysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.WithContext(ctx).First(&analysis, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) List(ctx context.Context, tenantClientID string, status *model.AnalysisStatus, limit, offset int) ([]model.Analysis, int64, error) {
	var analyses []model.Analysis
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Analysis{}).Where("tenant_client_id = ?", tenantClientID)

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&analyses).Error

	return analyses, total, err
}

// Fail marks a running analysis FAILED. The status guard keeps a run that
// was cancelled mid-flight CANCELLED: terminal states never change.
func (r *AnalysisRepository) Fail(ctx context.Context, id string, errorMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Analysis{}).
		Where("id = ? AND status = ?", id, model.AnalysisRunning).
		Updates(map[string]interface{}{
			"status":        model.AnalysisFailed,
			"error_message": errorMsg,
			"finished_at":   &now,
			"updated_at":    now,
		}).Error
}

// Cancel aborts a pending or running analysis. RowsAffected 0 means the run
// already reached a terminal state.
func (r *AnalysisRepository) Cancel(ctx context.Context, id string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Analysis{}).
		Where("id = ? AND status IN ?", id, model.CancellableAnalysisStates()).
		Updates(map[string]interface{}{
			"status":      model.AnalysisCancelled,
			"finished_at": &now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClaimNextPending transitions the oldest pending analysis to RUNNING and
// returns it. The row lock keeps two analyzer instances off the same run.
func (r *AnalysisRepository) ClaimNextPending(ctx context.Context) (*model.Analysis, error) {
	var analysis model.Analysis

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Raw(`SELECT * FROM analyses WHERE status = ? ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`,
				model.AnalysisPending).
			Scan(&analysis).Error
		if err != nil {
			return err
		}
		if analysis.ID == (uuid.UUID{}) {
			return gorm.ErrRecordNotFound
		}

		now := time.Now()
		return tx.Model(&model.Analysis{}).
			Where("id = ?", analysis.ID).
			Updates(map[string]interface{}{
				"status":     model.AnalysisRunning,
				"started_at": &now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	analysis.Status = model.AnalysisRunning
	return &analysis, nil
}

// Complete stores the aggregated savings totals and flips the run to
// COMPLETED, unless it was cancelled while running.
func (r *AnalysisRepository) Complete(ctx context.Context, id string, usersEvaluated int, monthlyCents, annualCents int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Analysis{}).
		Where("id = ? AND status = ?", id, model.AnalysisRunning).
		Updates(map[string]interface{}{
			"status":                model.AnalysisCompleted,
			"users_evaluated":       usersEvaluated,
			"monthly_savings_cents": monthlyCents,
			"annual_savings_cents":  annualCents,
			"finished_at":           &now,
			"updated_at":            now,
		}).Error
}

type RecommendationRepository struct {
	db *gorm.DB
}

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

func (r *RecommendationRepository) CreateBatch(ctx context.Context, recommendations []*model.Recommendation) error {
	if len(recommendations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(recommendations, 200).Error
}

func (r *RecommendationRepository) GetByID(ctx context.Context, id string) (*model.Recommendation, error) {
	var recommendation model.Recommendation
	err := r.db.WithContext(ctx).
		Preload("User").
		First(&recommendation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &recommendation, nil
}

func (r *RecommendationRepository) ListByAnalysis(ctx context.Context, analysisID string, status *model.RecommendationStatus, limit, offset int) ([]model.Recommendation, int64, error) {
	var recommendations []model.Recommendation
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Recommendation{}).Where("analysis_id = ?", analysisID)

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("User").Order("monthly_savings_cents DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	err := query.Find(&recommendations).Error

	return recommendations, total, err
}

// UpdateStatus enforces the one-way lifecycle: only PROPOSED rows move.
func (r *RecommendationRepository) UpdateStatus(ctx context.Context, id string, to model.RecommendationStatus) error {
	result := r.db.WithContext(ctx).Model(&model.Recommendation{}).
		Where("id = ? AND status = ?", id, model.RecommendationProposed).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
