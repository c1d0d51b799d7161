package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/apiserver/middleware"
	"github.com/seatwise/seatwise/pkg/audit"
	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/queue"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// SyncEnqueuer is the slice of the sync queue the handler needs.
type SyncEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.SyncJob) error
}

// TenantReader is the slice of tenant storage the read endpoints use.
type TenantReader interface {
	GetByID(ctx context.Context, id string) (*model.TenantClient, error)
	List(ctx context.Context, limit, offset int) ([]model.TenantClient, int64, error)
	Summary(ctx context.Context, id string) (*postgres.TenantSummary, error)
}

type TenantHandler struct {
	db       *postgres.Store
	tenants  TenantReader
	users    *postgres.UserRepository
	syncs    SyncEnqueuer
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewTenantHandler(db *postgres.Store, syncs SyncEnqueuer, recorder *audit.Recorder, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{
		db:       db,
		tenants:  postgres.NewTenantRepository(db.DB()),
		users:    postgres.NewUserRepository(db.DB()),
		syncs:    syncs,
		recorder: recorder,
		logger:   logger,
	}
}

type tenantCreateRequest struct {
	TenantID      string `json:"tenant_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	PrimaryDomain string `json:"primary_domain"`
	Country       string `json:"country"`
	ClientID      string `json:"client_id" binding:"required"`
}

type tenantUpdateRequest struct {
	Name          string `json:"name"`
	PrimaryDomain string `json:"primary_domain"`
	Country       string `json:"country"`
}

type tenantResponse struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenant_id"`
	Name            string  `json:"name"`
	PrimaryDomain   string  `json:"primary_domain,omitempty"`
	Country         string  `json:"country"`
	ConsentStatus   string  `json:"consent_status,omitempty"`
	ConsentUsable   bool    `json:"consent_usable"`
	LastUserSyncAt  *string `json:"last_user_sync_at,omitempty"`
	LastUsageSyncAt *string `json:"last_usage_sync_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func mapTenant(tenant *model.TenantClient) tenantResponse {
	resp := tenantResponse{
		ID:              tenant.ID.String(),
		TenantID:        tenant.TenantID,
		Name:            tenant.Name,
		PrimaryDomain:   tenant.PrimaryDomain,
		Country:         tenant.Country,
		LastUserSyncAt:  formatTime(tenant.LastUserSyncAt),
		LastUsageSyncAt: formatTime(tenant.LastUsageSyncAt),
		CreatedAt:       tenant.CreatedAt.UTC().Format(timeRFC3339Nano),
		UpdatedAt:       tenant.UpdatedAt.UTC().Format(timeRFC3339Nano),
	}
	if tenant.AppRegistration != nil {
		resp.ConsentStatus = string(tenant.AppRegistration.ConsentStatus)
		resp.ConsentUsable = tenant.AppRegistration.Usable()
	}
	return resp
}

func (h *TenantHandler) Create(c *gin.Context) {
	var req tenantCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant := &model.TenantClient{
		TenantID:      req.TenantID,
		Name:          req.Name,
		PrimaryDomain: req.PrimaryDomain,
		AppRegistration: &model.TenantAppRegistration{
			ClientID:      req.ClientID,
			ConsentStatus: model.ConsentPending,
		},
	}
	if req.Country != "" {
		tenant.Country = req.Country
	}

	err := h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := postgres.NewTenantRepository(tx).Create(c.Request.Context(), tenant); err != nil {
			return err
		}
		return h.recorder.Changed(tx, "tenant_clients", model.AuditOpInsert,
			tenant.ID.String(), actorID(c), nil, tenant)
	})
	if err != nil {
		h.logger.Error("failed to create tenant", zap.String("tenant_id", req.TenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tenant"})
		return
	}

	c.JSON(http.StatusCreated, mapTenant(tenant))
}

func (h *TenantHandler) List(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	tenants, total, err := h.tenants.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tenants"})
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for i := range tenants {
		items = append(items, mapTenant(&tenants[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"tenants": items,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.tenants.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return
	}
	c.JSON(http.StatusOK, mapTenant(tenant))
}

func (h *TenantHandler) Update(c *gin.Context) {
	var req tenantUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	before, err := h.tenants.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return
	}

	err = h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		repo := postgres.NewTenantRepository(tx)
		if err := repo.Update(c.Request.Context(), id, req.Name, req.PrimaryDomain, req.Country); err != nil {
			return err
		}
		after, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			return err
		}
		return h.recorder.Changed(tx, "tenant_clients", model.AuditOpUpdate,
			id, actorID(c), before, after)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update tenant"})
		return
	}

	tenant, err := h.tenants.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return
	}

	c.JSON(http.StatusOK, mapTenant(tenant))
}

func (h *TenantHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	before, err := h.tenants.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return
	}

	err = h.db.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := postgres.NewTenantRepository(tx).Delete(c.Request.Context(), id); err != nil {
			return err
		}
		return h.recorder.Changed(tx, "tenant_clients", model.AuditOpDelete,
			id, actorID(c), before, nil)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete tenant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "tenant deleted"})
}

func (h *TenantHandler) Summary(c *gin.Context) {
	summary, err := h.tenants.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant summary"})
		return
	}

	resp := gin.H{
		"tenant":             mapTenant(&summary.Tenant),
		"user_count":         summary.UserCount,
		"active_assignments": summary.ActiveAssignments,
	}
	if summary.LatestAnalysis != nil {
		resp["latest_analysis"] = mapAnalysis(summary.LatestAnalysis)
	}

	c.JSON(http.StatusOK, resp)
}

type assignmentResponse struct {
	SKU        string  `json:"sku"`
	Status     string  `json:"status"`
	Source     string  `json:"source"`
	AssignedAt *string `json:"assigned_at,omitempty"`
}

type userResponse struct {
	ID                string               `json:"id"`
	DirectoryID       string               `json:"directory_id"`
	UserPrincipalName string               `json:"user_principal_name"`
	DisplayName       string               `json:"display_name,omitempty"`
	Department        string               `json:"department,omitempty"`
	AccountEnabled    bool                 `json:"account_enabled"`
	Assignments       []assignmentResponse `json:"assignments"`
	LastSyncedAt      *string              `json:"last_synced_at,omitempty"`
}

func mapUser(user *model.User) userResponse {
	assignments := make([]assignmentResponse, 0, len(user.Assignments))
	for _, assignment := range user.Assignments {
		assignments = append(assignments, assignmentResponse{
			SKU:        assignment.SKU,
			Status:     string(assignment.Status),
			Source:     string(assignment.Source),
			AssignedAt: formatTime(assignment.AssignedAt),
		})
	}
	return userResponse{
		ID:                user.ID.String(),
		DirectoryID:       user.DirectoryID,
		UserPrincipalName: user.UserPrincipalName,
		DisplayName:       user.DisplayName,
		Department:        user.Department,
		AccountEnabled:    user.AccountEnabled,
		Assignments:       assignments,
		LastSyncedAt:      formatTime(user.LastSyncedAt),
	}
}

func (h *TenantHandler) ListUsers(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.tenants.GetByID(c.Request.Context(), id); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return
	}

	limit := parseLimit(c.Query("limit"), 100)
	offset := parseOffset(c.Query("offset"))

	users, total, err := h.users.ListByTenant(c.Request.Context(), id, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, mapUser(&users[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *TenantHandler) SyncUsers(c *gin.Context) {
	h.enqueueSync(c, queue.SyncUsers)
}

func (h *TenantHandler) SyncLicenses(c *gin.Context) {
	h.enqueueSync(c, queue.SyncLicenses)
}

func (h *TenantHandler) SyncUsage(c *gin.Context) {
	h.enqueueSync(c, queue.SyncUsage)
}

// enqueueSync validates consent before accepting the job so a revoked tenant
// fails fast at the API instead of inside the worker.
func (h *TenantHandler) enqueueSync(c *gin.Context, kind queue.SyncKind) {
	tenant, err := h.tenants.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return
	}

	if tenant.AppRegistration == nil || !tenant.AppRegistration.Usable() {
		c.JSON(http.StatusConflict, gin.H{"error": "tenant consent is not usable"})
		return
	}

	job := &queue.SyncJob{
		JobID:          uuid.New().String(),
		TenantClientID: tenant.ID.String(),
		Kind:           kind,
		RequestedBy:    actorID(c),
		RequestedAt:    time.Now().UTC(),
	}

	if err := h.syncs.Enqueue(c.Request.Context(), job); err != nil {
		h.logger.Error("failed to enqueue sync job",
			zap.String("tenant_client_id", job.TenantClientID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue sync job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.JobID,
		"kind":   string(kind),
		"status": "queued",
	})
}

func actorID(c *gin.Context) string {
	if claims := middleware.Operator(c); claims != nil {
		return claims.OperatorID
	}
	return ""
}
