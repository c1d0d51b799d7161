package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/report"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// downloadURLTTL bounds how long a handed-out report link stays valid.
const downloadURLTTL = 15 * time.Minute

// ArtifactSigner is the slice of object storage the download endpoint needs.
type ArtifactSigner interface {
	PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

type ReportHandler struct {
	reports   *postgres.ReportRepository
	analyses  *postgres.AnalysisRepository
	generator *report.Generator
	storage   ArtifactSigner
	logger    *zap.Logger
}

func NewReportHandler(db *postgres.Store, generator *report.Generator, storage ArtifactSigner, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reports:   postgres.NewReportRepository(db.DB()),
		analyses:  postgres.NewAnalysisRepository(db.DB()),
		generator: generator,
		storage:   storage,
		logger:    logger,
	}
}

type reportCreateRequest struct {
	AnalysisID string `json:"analysis_id" binding:"required"`
}

type reportResponse struct {
	ID           string  `json:"id"`
	AnalysisID   string  `json:"analysis_id"`
	Format       string  `json:"format"`
	Status       string  `json:"status"`
	SizeBytes    int64   `json:"size_bytes"`
	ErrorMessage string  `json:"error_message,omitempty"`
	GeneratedAt  *string `json:"generated_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func mapReport(rep *model.Report) reportResponse {
	return reportResponse{
		ID:           rep.ID.String(),
		AnalysisID:   rep.AnalysisID.String(),
		Format:       rep.Format,
		Status:       string(rep.Status),
		SizeBytes:    rep.SizeBytes,
		ErrorMessage: rep.ErrorMessage,
		GeneratedAt:  formatTime(rep.GeneratedAt),
		CreatedAt:    rep.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
}

func (h *ReportHandler) List(c *gin.Context) {
	analysisID := c.Query("analysis_id")
	if analysisID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "analysis_id is required"})
		return
	}

	reports, err := h.reports.ListByAnalysis(c.Request.Context(), analysisID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}

	items := make([]reportResponse, 0, len(reports))
	for i := range reports {
		items = append(items, mapReport(&reports[i]))
	}

	c.JSON(http.StatusOK, gin.H{"reports": items, "total": len(items)})
}

// Create generates a report for a completed analysis. Generation is
// synchronous: artifacts are small enough that the frontend just waits.
func (h *ReportHandler) Create(c *gin.Context) {
	var req reportCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := h.analyses.GetByID(c.Request.Context(), req.AnalysisID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}

	if analysis.Status != model.AnalysisCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("analysis is %s, reports need a completed run", analysis.Status),
		})
		return
	}

	rep := &model.Report{
		AnalysisID: analysis.ID,
		Format:     model.ReportFormatCSV,
		Status:     model.ReportPending,
	}
	if err := h.reports.Create(c.Request.Context(), rep); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create report"})
		return
	}

	if err := h.generator.Generate(c.Request.Context(), rep); err != nil {
		h.logger.Error("report generation failed",
			zap.String("report_id", rep.ID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report generation failed"})
		return
	}

	generated, err := h.reports.GetByID(c.Request.Context(), rep.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		return
	}

	c.JSON(http.StatusCreated, mapReport(generated))
}

// Download redirects to a short-lived presigned URL so artifact bytes never
// flow through the API process.
func (h *ReportHandler) Download(c *gin.Context) {
	rep, err := h.reports.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		return
	}

	if rep.Status != model.ReportCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "report is not ready"})
		return
	}

	url, err := h.storage.PresignedURL(c.Request.Context(), rep.ObjectKey, downloadURLTTL)
	if err != nil {
		h.logger.Error("failed to sign report artifact url",
			zap.String("report_id", rep.ID.String()),
			zap.String("object_key", rep.ObjectKey),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign report download"})
		return
	}

	c.Redirect(http.StatusFound, url)
}
