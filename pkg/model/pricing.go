package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PriceItem is a temporal price table row: the price of a SKU in a country
// from EffectiveDate until superseded by a newer row.
type PriceItem struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SKU               string    `gorm:"not null;uniqueIndex:idx_price_sku_country_date"`
	Country           string    `gorm:"type:varchar(2);not null;uniqueIndex:idx_price_sku_country_date"`
	EffectiveDate     time.Time `gorm:"type:date;not null;uniqueIndex:idx_price_sku_country_date"`
	MonthlyPriceCents int64     `gorm:"not null"`
	Currency          string    `gorm:"type:varchar(3);default:'USD'"`
	CreatedAt         time.Time
}

// SkuServiceMatrix lists the service plans bundled in a SKU. Static
// reference data refreshed by the sku-mapping sync endpoints.
type SkuServiceMatrix struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SKU          string    `gorm:"uniqueIndex;not null"`
	DisplayName  string
	ServicePlans pq.StringArray `gorm:"type:text[]"`
	IsAddon      bool           `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Includes reports whether the SKU bundles every named service plan.
func (m *SkuServiceMatrix) Includes(plans ...string) bool {
	for _, plan := range plans {
		found := false
		for _, have := range m.ServicePlans {
			if have == plan {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AddonCompatibility records that an add-on SKU may sit on a base SKU.
type AddonCompatibility struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AddonSKU  string    `gorm:"not null;uniqueIndex:idx_addon_base"`
	BaseSKU   string    `gorm:"not null;uniqueIndex:idx_addon_base"`
	CreatedAt time.Time
}

func (AddonCompatibility) TableName() string {
	return "addon_compatibilities"
}
