package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *model.TenantClient) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*model.TenantClient, error) {
	var tenant model.TenantClient
	err := r.db.WithContext(ctx).
		Preload("AppRegistration").
		First(&tenant, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]model.TenantClient, int64, error) {
	var tenants []model.TenantClient
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TenantClient{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("AppRegistration").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tenants).Error

	return tenants, total, err
}

// Update applies mutable fields only. TenantID is immutable after creation
// and is deliberately absent from the update set.
func (r *TenantRepository) Update(ctx context.Context, id string, name, domain, country string) error {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if name != "" {
		updates["name"] = name
	}
	if domain != "" {
		updates["primary_domain"] = domain
	}
	if country != "" {
		updates["country"] = country
	}

	result := r.db.WithContext(ctx).Model(&model.TenantClient{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the tenant and, through the FK cascade, its registration,
// users, assignments and analyses.
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Unscoped().Delete(&model.TenantClient{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TenantRepository) MarkUserSync(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.TenantClient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_user_sync_at": &at, "updated_at": at}).Error
}

func (r *TenantRepository) MarkUsageSync(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.TenantClient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_usage_sync_at": &at, "updated_at": at}).Error
}

// TenantSummary joins a tenant to its head counts and most recent analysis.
type TenantSummary struct {
	Tenant            model.TenantClient
	UserCount         int64
	ActiveAssignments int64
	LatestAnalysis    *model.Analysis
}

func (r *TenantRepository) Summary(ctx context.Context, id string) (*TenantSummary, error) {
	tenant, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := &TenantSummary{Tenant: *tenant}

	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("tenant_client_id = ?", tenant.ID).
		Count(&summary.UserCount).Error; err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(&model.LicenseAssignment{}).
		Joins("JOIN users ON users.id = license_assignments.user_id").
		Where("users.tenant_client_id = ? AND license_assignments.status = ?", tenant.ID, model.AssignmentActive).
		Count(&summary.ActiveAssignments).Error; err != nil {
		return nil, err
	}

	var latest model.Analysis
	err = r.db.WithContext(ctx).
		Where("tenant_client_id = ?", tenant.ID).
		Order("created_at DESC").
		First(&latest).Error
	switch err {
	case nil:
		summary.LatestAnalysis = &latest
	case gorm.ErrRecordNotFound:
		// Tenant has never been analyzed.
	default:
		return nil, err
	}

	return summary, nil
}
