package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// AuditHandler exposes the change history of a single record.
type AuditHandler struct {
	entries *postgres.AuditRepository
	logger  *zap.Logger
}

func NewAuditHandler(db *postgres.Store, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		entries: postgres.NewAuditRepository(db.DB()),
		logger:  logger,
	}
}

type auditEntryResponse struct {
	ID          string      `json:"id"`
	Entity      string      `json:"entity"`
	Operation   string      `json:"operation"`
	RecordID    string      `json:"record_id"`
	ActorID     string      `json:"actor_id,omitempty"`
	Before      model.JSONB `json:"before,omitempty"`
	After       model.JSONB `json:"after,omitempty"`
	Status      string      `json:"status"`
	PublishedAt *string     `json:"published_at,omitempty"`
	CreatedAt   string      `json:"created_at"`
}

func (h *AuditHandler) List(c *gin.Context) {
	entity := c.Query("entity")
	recordID := c.Query("record_id")
	if entity == "" || recordID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity and record_id are required"})
		return
	}

	limit := parseLimit(c.Query("limit"), 100)

	entries, err := h.entries.ListByEntity(c.Request.Context(), entity, recordID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		items = append(items, auditEntryResponse{
			ID:          entry.ID.String(),
			Entity:      entry.Entity,
			Operation:   entry.Operation,
			RecordID:    entry.RecordID,
			ActorID:     entry.ActorID,
			Before:      entry.Before,
			After:       entry.After,
			Status:      entry.Status,
			PublishedAt: formatTime(entry.PublishedAt),
			CreatedAt:   entry.CreatedAt.UTC().Format(timeRFC3339Nano),
		})
	}

	c.JSON(http.StatusOK, gin.H{"entries": items, "total": len(items)})
}
