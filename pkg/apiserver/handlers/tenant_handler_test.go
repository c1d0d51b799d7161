package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/queue"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

type stubTenantReader struct {
	tenants map[string]*model.TenantClient
}

func (s *stubTenantReader) GetByID(_ context.Context, id string) (*model.TenantClient, error) {
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return tenant, nil
}

func (s *stubTenantReader) List(_ context.Context, _, _ int) ([]model.TenantClient, int64, error) {
	items := make([]model.TenantClient, 0, len(s.tenants))
	for _, tenant := range s.tenants {
		items = append(items, *tenant)
	}
	return items, int64(len(items)), nil
}

func (s *stubTenantReader) Summary(_ context.Context, id string) (*postgres.TenantSummary, error) {
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &postgres.TenantSummary{Tenant: *tenant}, nil
}

type stubEnqueuer struct {
	jobs []*queue.SyncJob
	err  error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, job *queue.SyncJob) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func consentedTenant() *model.TenantClient {
	granted := time.Now().Add(-time.Hour)
	return &model.TenantClient{
		ID:       uuid.New(),
		TenantID: "contoso.onmicrosoft.com",
		Name:     "Contoso",
		AppRegistration: &model.TenantAppRegistration{
			ClientID:         uuid.New().String(),
			ConsentStatus:    model.ConsentGranted,
			ConsentGrantedAt: &granted,
			Valid:            true,
		},
	}
}

func syncTestRouter(tenants *stubTenantReader, syncs *stubEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := &TenantHandler{
		tenants: tenants,
		syncs:   syncs,
		logger:  zap.NewNop(),
	}
	router := gin.New()
	router.POST("/tenants/:id/sync_users", handler.SyncUsers)
	router.POST("/tenants/:id/sync_licenses", handler.SyncLicenses)
	router.POST("/tenants/:id/sync_usage", handler.SyncUsage)
	router.GET("/tenants/:id", handler.Get)
	return router
}

func TestSyncTriggerAccepted(t *testing.T) {
	tenant := consentedTenant()
	reader := &stubTenantReader{tenants: map[string]*model.TenantClient{tenant.ID.String(): tenant}}
	syncs := &stubEnqueuer{}
	router := syncTestRouter(reader, syncs)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/tenants/"+tenant.ID.String()+"/sync_users", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		JobID  string `json:"job_id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected a job_id in the response")
	}
	if resp.Kind != string(queue.SyncUsers) {
		t.Fatalf("expected kind %s, got %s", queue.SyncUsers, resp.Kind)
	}
	if resp.Status != "queued" {
		t.Fatalf("expected status queued, got %s", resp.Status)
	}

	if len(syncs.jobs) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(syncs.jobs))
	}
	job := syncs.jobs[0]
	if job.JobID != resp.JobID {
		t.Fatalf("response job_id %s does not match enqueued job %s", resp.JobID, job.JobID)
	}
	if job.TenantClientID != tenant.ID.String() {
		t.Fatalf("expected tenant %s, got %s", tenant.ID, job.TenantClientID)
	}
	if job.Kind != queue.SyncUsers {
		t.Fatalf("expected kind %s, got %s", queue.SyncUsers, job.Kind)
	}
}

func TestSyncTriggerUnknownTenant(t *testing.T) {
	reader := &stubTenantReader{tenants: map[string]*model.TenantClient{}}
	syncs := &stubEnqueuer{}
	router := syncTestRouter(reader, syncs)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/tenants/"+uuid.New().String()+"/sync_licenses", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(syncs.jobs) != 0 {
		t.Fatalf("expected no enqueued jobs, got %d", len(syncs.jobs))
	}
}

func TestSyncTriggerWithoutConsent(t *testing.T) {
	tenant := consentedTenant()
	tenant.AppRegistration.ConsentStatus = model.ConsentRevoked
	reader := &stubTenantReader{tenants: map[string]*model.TenantClient{tenant.ID.String(): tenant}}
	syncs := &stubEnqueuer{}
	router := syncTestRouter(reader, syncs)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/tenants/"+tenant.ID.String()+"/sync_usage", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(syncs.jobs) != 0 {
		t.Fatalf("expected no enqueued jobs, got %d", len(syncs.jobs))
	}
}

func TestGetUnknownTenant(t *testing.T) {
	reader := &stubTenantReader{tenants: map[string]*model.TenantClient{}}
	router := syncTestRouter(reader, &stubEnqueuer{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/tenants/"+uuid.New().String(), nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", recorder.Code, recorder.Body.String())
	}
}
