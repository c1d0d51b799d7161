package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seatwise/seatwise/pkg/model"
)

type PricingRepository struct {
	db *gorm.DB
}

func NewPricingRepository(db *gorm.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// UpsertPrices loads price rows keyed by (sku, country, effective_date).
// Re-syncing the same effective date overwrites the price.
func (r *PricingRepository) UpsertPrices(ctx context.Context, prices []*model.PriceItem) error {
	if len(prices) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}, {Name: "country"}, {Name: "effective_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"monthly_price_cents", "currency"}),
		}).
		CreateInBatches(prices, 200).Error
}

// PriceAt resolves the price effective for a SKU in a country on a date:
// the newest row with effective_date <= asOf.
func (r *PricingRepository) PriceAt(ctx context.Context, sku, country string, asOf time.Time) (*model.PriceItem, error) {
	var price model.PriceItem
	err := r.db.WithContext(ctx).
		Where("sku = ? AND country = ? AND effective_date <= ?", sku, country, asOf).
		Order("effective_date DESC").
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *PricingRepository) ListPrices(ctx context.Context, sku, country string) ([]model.PriceItem, error) {
	query := r.db.WithContext(ctx).Model(&model.PriceItem{}).Order("sku ASC, effective_date DESC")
	if sku != "" {
		query = query.Where("sku = ?", sku)
	}
	if country != "" {
		query = query.Where("country = ?", country)
	}

	var prices []model.PriceItem
	err := query.Find(&prices).Error
	return prices, err
}

type SkuMatrixRepository struct {
	db *gorm.DB
}

func NewSkuMatrixRepository(db *gorm.DB) *SkuMatrixRepository {
	return &SkuMatrixRepository{db: db}
}

func (r *SkuMatrixRepository) UpsertMatrix(ctx context.Context, rows []*model.SkuServiceMatrix) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "service_plans", "is_addon", "updated_at"}),
		}).
		CreateInBatches(rows, 200).Error
}

func (r *SkuMatrixRepository) GetBySKU(ctx context.Context, sku string) (*model.SkuServiceMatrix, error) {
	var row model.SkuServiceMatrix
	err := r.db.WithContext(ctx).First(&row, "sku = ?", sku).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *SkuMatrixRepository) ListAll(ctx context.Context) ([]model.SkuServiceMatrix, error) {
	var rows []model.SkuServiceMatrix
	err := r.db.WithContext(ctx).Order("sku ASC").Find(&rows).Error
	return rows, err
}

func (r *SkuMatrixRepository) ReplaceCompatibility(ctx context.Context, pairs []*model.AddonCompatibility) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.AddonCompatibility{}).Error; err != nil {
			return err
		}
		if len(pairs) == 0 {
			return nil
		}
		return tx.CreateInBatches(pairs, 200).Error
	})
}

func (r *SkuMatrixRepository) ListCompatibility(ctx context.Context) ([]model.AddonCompatibility, error) {
	var pairs []model.AddonCompatibility
	err := r.db.WithContext(ctx).Order("addon_sku ASC, base_sku ASC").Find(&pairs).Error
	return pairs, err
}

func (r *SkuMatrixRepository) CompatibleBases(ctx context.Context, addonSKU string) ([]string, error) {
	var bases []string
	err := r.db.WithContext(ctx).Model(&model.AddonCompatibility{}).
		Where("addon_sku = ?", addonSKU).
		Pluck("base_sku", &bases).Error
	return bases, err
}

// MatrixSummary backs GET /sku-mapping/summary.
type MatrixSummary struct {
	SKUCount           int64 `json:"sku_count"`
	AddonCount         int64 `json:"addon_count"`
	CompatibilityPairs int64 `json:"compatibility_pairs"`
	PriceRows          int64 `json:"price_rows"`
}

func (r *SkuMatrixRepository) Summary(ctx context.Context) (*MatrixSummary, error) {
	var summary MatrixSummary

	if err := r.db.WithContext(ctx).Model(&model.SkuServiceMatrix{}).
		Where("is_addon = ?", false).Count(&summary.SKUCount).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.SkuServiceMatrix{}).
		Where("is_addon = ?", true).Count(&summary.AddonCount).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.AddonCompatibility{}).
		Count(&summary.CompatibilityPairs).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.PriceItem{}).
		Count(&summary.PriceRows).Error; err != nil {
		return nil, err
	}

	return &summary, nil
}
