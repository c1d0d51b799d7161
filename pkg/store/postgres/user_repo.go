package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seatwise/seatwise/pkg/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertBatch inserts or refreshes directory users keyed by
// (tenant_client_id, directory_id).
func (r *UserRepository) UpsertBatch(ctx context.Context, users []*model.User) error {
	if len(users) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_client_id"}, {Name: "directory_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_principal_name", "display_name", "department",
				"account_enabled", "last_synced_at", "updated_at",
			}),
		}).
		CreateInBatches(users, 200).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Assignments").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListByTenant(ctx context.Context, tenantClientID string, limit, offset int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := r.db.WithContext(ctx).Model(&model.User{}).Where("tenant_client_id = ?", tenantClientID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("Assignments").Order("user_principal_name ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	err := query.Find(&users).Error

	return users, total, err
}

func (r *UserRepository) ListEnabledWithAssignments(ctx context.Context, tenantClientID string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Preload("Assignments", "status = ?", model.AssignmentActive).
		Where("tenant_client_id = ? AND account_enabled = ?", tenantClientID, true).
		Find(&users).Error
	return users, err
}

// UpsertAssignments refreshes license assignments keyed by (user_id, sku).
func (r *UserRepository) UpsertAssignments(ctx context.Context, assignments []*model.LicenseAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "source", "assigned_at", "updated_at"}),
		}).
		CreateInBatches(assignments, 200).Error
}

// RemoveStaleAssignments drops assignments for a user that the directory no
// longer reports.
func (r *UserRepository) RemoveStaleAssignments(ctx context.Context, userID string, keepSKUs []string) error {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(keepSKUs) > 0 {
		query = query.Where("sku NOT IN ?", keepSKUs)
	}
	return query.Delete(&model.LicenseAssignment{}).Error
}
