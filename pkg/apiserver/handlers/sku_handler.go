package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/audit"
	"github.com/seatwise/seatwise/pkg/directory"
	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// SkuHandler serves the sku-mapping reference data and refreshes it from the
// directory catalog on demand.
type SkuHandler struct {
	db        *postgres.Store
	matrix    *postgres.SkuMatrixRepository
	pricing   *postgres.PricingRepository
	directory directory.Client
	recorder  *audit.Recorder
	logger    *zap.Logger
}

func NewSkuHandler(db *postgres.Store, client directory.Client, recorder *audit.Recorder, logger *zap.Logger) *SkuHandler {
	return &SkuHandler{
		db:        db,
		matrix:    postgres.NewSkuMatrixRepository(db.DB()),
		pricing:   postgres.NewPricingRepository(db.DB()),
		directory: client,
		recorder:  recorder,
		logger:    logger,
	}
}

func (h *SkuHandler) Summary(c *gin.Context) {
	summary, err := h.matrix.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sku-mapping summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SyncProducts pulls the SKU catalog and upserts the service matrix together
// with its price history.
func (h *SkuHandler) SyncProducts(c *gin.Context) {
	catalog, err := h.directory.ListSkuCatalog(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch sku catalog", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch sku catalog"})
		return
	}

	matrices := make([]*model.SkuServiceMatrix, 0, len(catalog))
	var prices []*model.PriceItem
	for _, definition := range catalog {
		matrices = append(matrices, &model.SkuServiceMatrix{
			SKU:          definition.SKU,
			DisplayName:  definition.DisplayName,
			ServicePlans: definition.ServicePlans,
			IsAddon:      definition.IsAddon,
		})
		for _, price := range definition.Prices {
			prices = append(prices, &model.PriceItem{
				SKU:               definition.SKU,
				Country:           price.Country,
				EffectiveDate:     price.EffectiveDate,
				MonthlyPriceCents: price.MonthlyPriceCents,
				Currency:          price.Currency,
			})
		}
	}

	err = h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := postgres.NewSkuMatrixRepository(tx).UpsertMatrix(c.Request.Context(), matrices); err != nil {
			return err
		}
		if err := postgres.NewPricingRepository(tx).UpsertPrices(c.Request.Context(), prices); err != nil {
			return err
		}
		return h.recorder.Changed(tx, "sku_service_matrices", model.AuditOpUpdate,
			"catalog", actorID(c), nil,
			gin.H{"skus": len(matrices), "prices": len(prices)})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store sku catalog"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"skus":   len(matrices),
		"prices": len(prices),
	})
}

// SyncCompatibility replaces the add-on compatibility pairs wholesale. The
// catalog is the source of truth; stale pairs must not survive a sync.
func (h *SkuHandler) SyncCompatibility(c *gin.Context) {
	pairs, err := h.directory.ListCompatibility(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch compatibility pairs", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch compatibility pairs"})
		return
	}

	rows := make([]*model.AddonCompatibility, 0, len(pairs))
	for _, pair := range pairs {
		rows = append(rows, &model.AddonCompatibility{
			AddonSKU: pair.AddonSKU,
			BaseSKU:  pair.BaseSKU,
		})
	}

	err = h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := postgres.NewSkuMatrixRepository(tx).ReplaceCompatibility(c.Request.Context(), rows); err != nil {
			return err
		}
		return h.recorder.Changed(tx, "addon_compatibilities", model.AuditOpUpdate,
			"catalog", actorID(c), nil, gin.H{"pairs": len(rows)})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store compatibility pairs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pairs": len(rows)})
}

func (h *SkuHandler) GetSKU(c *gin.Context) {
	row, err := h.matrix.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "sku not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sku"})
		return
	}

	bases, err := h.matrix.CompatibleBases(c.Request.Context(), row.SKU)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load compatibility"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sku":              row.SKU,
		"display_name":     row.DisplayName,
		"service_plans":    []string(row.ServicePlans),
		"is_addon":         row.IsAddon,
		"compatible_bases": bases,
	})
}

type priceResponse struct {
	SKU               string `json:"sku"`
	Country           string `json:"country"`
	EffectiveDate     string `json:"effective_date"`
	MonthlyPriceCents int64  `json:"monthly_price_cents"`
	Currency          string `json:"currency"`
}

func (h *SkuHandler) ListPrices(c *gin.Context) {
	prices, err := h.pricing.ListPrices(c.Request.Context(), c.Query("sku"), c.Query("country"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list prices"})
		return
	}

	items := make([]priceResponse, 0, len(prices))
	for _, price := range prices {
		items = append(items, priceResponse{
			SKU:               price.SKU,
			Country:           price.Country,
			EffectiveDate:     price.EffectiveDate.UTC().Format("2006-01-02"),
			MonthlyPriceCents: price.MonthlyPriceCents,
			Currency:          price.Currency,
		})
	}

	c.JSON(http.StatusOK, gin.H{"prices": items, "total": len(items)})
}
