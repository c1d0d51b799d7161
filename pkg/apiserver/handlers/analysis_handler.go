package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/audit"
	"github.com/seatwise/seatwise/pkg/eventbus"
	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// AnalysisReader is the slice of analysis storage the read endpoints use.
type AnalysisReader interface {
	GetByID(ctx context.Context, id string) (*model.Analysis, error)
	List(ctx context.Context, tenantClientID string, status *model.AnalysisStatus, limit, offset int) ([]model.Analysis, int64, error)
}

type AnalysisHandler struct {
	db              *postgres.Store
	analyses        AnalysisReader
	recommendations *postgres.RecommendationRepository
	tenants         TenantReader
	bus             *eventbus.Bus
	recorder        *audit.Recorder
	logger          *zap.Logger
}

func NewAnalysisHandler(db *postgres.Store, bus *eventbus.Bus, recorder *audit.Recorder, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		db:              db,
		analyses:        postgres.NewAnalysisRepository(db.DB()),
		recommendations: postgres.NewRecommendationRepository(db.DB()),
		tenants:         postgres.NewTenantRepository(db.DB()),
		bus:             bus,
		recorder:        recorder,
		logger:          logger,
	}
}

type analysisCreateRequest struct {
	TenantClientID string `json:"tenant_client_id" binding:"required"`
	LookbackDays   int    `json:"lookback_days"`
}

type analysisResponse struct {
	ID                  string  `json:"id"`
	TenantClientID      string  `json:"tenant_client_id"`
	Status              string  `json:"status"`
	LookbackDays        int     `json:"lookback_days"`
	TriggeredBy         string  `json:"triggered_by,omitempty"`
	ErrorMessage        string  `json:"error_message,omitempty"`
	UsersEvaluated      int     `json:"users_evaluated"`
	MonthlySavingsCents int64   `json:"monthly_savings_cents"`
	AnnualSavingsCents  int64   `json:"annual_savings_cents"`
	Currency            string  `json:"currency"`
	StartedAt           *string `json:"started_at,omitempty"`
	FinishedAt          *string `json:"finished_at,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

func mapAnalysis(analysis *model.Analysis) analysisResponse {
	return analysisResponse{
		ID:                  analysis.ID.String(),
		TenantClientID:      analysis.TenantClientID.String(),
		Status:              string(analysis.Status),
		LookbackDays:        analysis.LookbackDays,
		TriggeredBy:         analysis.TriggeredBy,
		ErrorMessage:        analysis.ErrorMessage,
		UsersEvaluated:      analysis.UsersEvaluated,
		MonthlySavingsCents: analysis.MonthlySavingsCents,
		AnnualSavingsCents:  analysis.AnnualSavingsCents,
		Currency:            analysis.Currency,
		StartedAt:           formatTime(analysis.StartedAt),
		FinishedAt:          formatTime(analysis.FinishedAt),
		CreatedAt:           analysis.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
}

type recommendationResponse struct {
	ID                  string  `json:"id"`
	AnalysisID          string  `json:"analysis_id"`
	UserID              string  `json:"user_id"`
	UserPrincipalName   string  `json:"user_principal_name,omitempty"`
	DisplayName         string  `json:"display_name,omitempty"`
	CurrentSKU          string  `json:"current_sku"`
	ProposedSKU         string  `json:"proposed_sku,omitempty"`
	Action              string  `json:"action"`
	Status              string  `json:"status"`
	Trend               string  `json:"trend"`
	UtilizationScore    float64 `json:"utilization_score"`
	MonthlySavingsCents int64   `json:"monthly_savings_cents"`
	AnnualSavingsCents  int64   `json:"annual_savings_cents"`
	Reason              string  `json:"reason,omitempty"`
}

func mapRecommendation(rec *model.Recommendation) recommendationResponse {
	resp := recommendationResponse{
		ID:                  rec.ID.String(),
		AnalysisID:          rec.AnalysisID.String(),
		UserID:              rec.UserID.String(),
		CurrentSKU:          rec.CurrentSKU,
		ProposedSKU:         rec.ProposedSKU,
		Action:              string(rec.Action),
		Status:              string(rec.Status),
		Trend:               string(rec.Trend),
		UtilizationScore:    rec.UtilizationScore,
		MonthlySavingsCents: rec.MonthlySavingsCents,
		AnnualSavingsCents:  rec.AnnualSavingsCents,
		Reason:              rec.Reason,
	}
	if rec.User != nil {
		resp.UserPrincipalName = rec.User.UserPrincipalName
		resp.DisplayName = rec.User.DisplayName
	}
	return resp
}

func (h *AnalysisHandler) Create(c *gin.Context) {
	var req analysisCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantClientID, err := uuid.Parse(req.TenantClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant_client_id"})
		return
	}

	if _, err := h.tenants.GetByID(c.Request.Context(), tenantClientID.String()); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return
	}

	analysis := &model.Analysis{
		TenantClientID: tenantClientID,
		Status:         model.AnalysisPending,
		TriggeredBy:    actorID(c),
	}
	if req.LookbackDays > 0 {
		analysis.LookbackDays = req.LookbackDays
	}

	err = h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := postgres.NewAnalysisRepository(tx).Create(c.Request.Context(), analysis); err != nil {
			return err
		}
		return h.recorder.Changed(tx, "analyses", model.AuditOpInsert,
			analysis.ID.String(), actorID(c), nil, analysis)
	})
	if err != nil {
		h.logger.Error("failed to create analysis",
			zap.String("tenant_client_id", req.TenantClientID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create analysis"})
		return
	}

	c.JSON(http.StatusCreated, mapAnalysis(analysis))
}

func (h *AnalysisHandler) List(c *gin.Context) {
	tenantClientID := c.Query("tenant_id")
	if tenantClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	var status *model.AnalysisStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.AnalysisStatus(raw)
		status = &parsed
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	analyses, total, err := h.analyses.List(c.Request.Context(), tenantClientID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list analyses"})
		return
	}

	items := make([]analysisResponse, 0, len(analyses))
	for i := range analyses {
		items = append(items, mapAnalysis(&analyses[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": items,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *AnalysisHandler) Get(c *gin.Context) {
	analysis, err := h.analyses.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}
	c.JSON(http.StatusOK, mapAnalysis(analysis))
}

// Cancel aborts a pending or running analysis. Terminal runs stay as they
// are and the request is rejected.
func (h *AnalysisHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	analysis, err := h.analyses.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}

	err = h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := postgres.NewAnalysisRepository(tx).Cancel(c.Request.Context(), id); err != nil {
			return err
		}
		return h.recorder.Changed(tx, "analyses", model.AuditOpUpdate, id, actorID(c),
			gin.H{"status": analysis.Status},
			gin.H{"status": model.AnalysisCancelled})
	})
	if err != nil {
		// The guarded update affects no rows once the run is terminal.
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusConflict, gin.H{"error": "analysis already finished"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel analysis"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "analysis cancelled"})
}

// Events follows an analysis as server-sent events: the current status
// first, then every status change until the run is terminal or the client
// disconnects.
func (h *AnalysisHandler) Events(c *gin.Context) {
	analysis, err := h.analyses.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}

	if h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("status", mapAnalysis(analysis))
	c.Writer.Flush()
	if analysis.Status.Terminal() {
		return
	}

	events := h.bus.Subscribe(c.Request.Context(), eventbus.ChannelAnalysis)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			var payload eventbus.AnalysisEvent
			if err := json.Unmarshal(event.Data, &payload); err != nil {
				continue
			}
			if payload.AnalysisID != analysis.ID.String() {
				continue
			}
			c.SSEvent("status", payload)
			c.Writer.Flush()
			if model.AnalysisStatus(payload.Status).Terminal() {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *AnalysisHandler) ListRecommendations(c *gin.Context) {
	analysisID := c.Param("id")
	if _, err := h.analyses.GetByID(c.Request.Context(), analysisID); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}

	var status *model.RecommendationStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.RecommendationStatus(raw)
		status = &parsed
	}

	limit := parseLimit(c.Query("limit"), 100)
	offset := parseOffset(c.Query("offset"))

	recommendations, total, err := h.recommendations.ListByAnalysis(c.Request.Context(), analysisID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recommendations"})
		return
	}

	items := make([]recommendationResponse, 0, len(recommendations))
	for i := range recommendations {
		items = append(items, mapRecommendation(&recommendations[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendations": items,
		"total":           total,
		"limit":           limit,
		"offset":          offset,
	})
}

type recommendationStatusRequest struct {
	Status model.RecommendationStatus `json:"status" binding:"required"`
}

// UpdateRecommendationStatus moves a recommendation out of PROPOSED. Any
// other starting state is a conflict.
func (h *AnalysisHandler) UpdateRecommendationStatus(c *gin.Context) {
	var req recommendationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	rec, err := h.recommendations.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "recommendation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recommendation"})
		return
	}

	if !model.ValidRecommendationTransition(rec.Status, req.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid status transition",
			"from":  rec.Status,
			"to":    req.Status,
		})
		return
	}

	err = h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := postgres.NewRecommendationRepository(tx).UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
			return err
		}
		return h.recorder.Changed(tx, "recommendations", model.AuditOpUpdate, id, actorID(c),
			gin.H{"status": rec.Status},
			gin.H{"status": req.Status})
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusConflict, gin.H{"error": "recommendation already reviewed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update recommendation"})
		return
	}

	rec.Status = req.Status
	c.JSON(http.StatusOK, mapRecommendation(rec))
}
