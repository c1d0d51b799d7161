package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/eventbus"
	"github.com/seatwise/seatwise/pkg/metrics"
	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/queue"
	"github.com/seatwise/seatwise/pkg/store"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

var ErrConsentMissing = errors.New("tenant app registration has no usable consent")

// Syncer executes queued sync jobs: it pulls users, license assignments and
// usage metrics from the directory and upserts them into the stores.
type Syncer struct {
	client     Client
	tenantRepo *postgres.TenantRepository
	userRepo   *postgres.UserRepository
	usageStore store.UsageStore
	bus        *eventbus.Bus
	logger     *zap.Logger
}

func NewSyncer(
	client Client,
	tenantRepo *postgres.TenantRepository,
	userRepo *postgres.UserRepository,
	usageStore store.UsageStore,
	bus *eventbus.Bus,
	logger *zap.Logger,
) *Syncer {
	return &Syncer{
		client:     client,
		tenantRepo: tenantRepo,
		userRepo:   userRepo,
		usageStore: usageStore,
		bus:        bus,
		logger:     logger,
	}
}

// Handle dispatches one sync job. Returned errors send the job through the
// queue's retry and DLQ path.
func (s *Syncer) Handle(ctx context.Context, job *queue.SyncJob) error {
	started := time.Now()

	tenant, err := s.tenantRepo.GetByID(ctx, job.TenantClientID)
	if err != nil {
		return fmt.Errorf("load tenant %s: %w", job.TenantClientID, err)
	}

	if tenant.AppRegistration == nil || !tenant.AppRegistration.Usable() {
		// Not retryable until the operator fixes consent, but the DLQ is the
		// right place for the job to surface.
		return fmt.Errorf("tenant %s: %w", tenant.TenantID, ErrConsentMissing)
	}

	var synced int
	switch job.Kind {
	case queue.SyncUsers:
		synced, err = s.syncUsers(ctx, tenant)
	case queue.SyncLicenses:
		synced, err = s.syncLicenses(ctx, tenant)
	case queue.SyncUsage:
		synced, err = s.syncUsage(ctx, tenant)
	default:
		return fmt.Errorf("unknown sync kind %q", job.Kind)
	}

	status := "completed"
	if err != nil {
		status = "failed"
	}

	metrics.SyncJobsTotal.WithLabelValues(tenant.TenantID, string(job.Kind), status).Inc()
	metrics.SyncDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(started).Seconds())

	s.publishSyncEvent(ctx, job, tenant, status, synced, err)

	if err != nil {
		s.logger.Error("sync job failed",
			zap.String("job_id", job.JobID),
			zap.String("tenant_id", tenant.TenantID),
			zap.String("kind", string(job.Kind)),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("sync job completed",
		zap.String("job_id", job.JobID),
		zap.String("tenant_id", tenant.TenantID),
		zap.String("kind", string(job.Kind)),
		zap.Int("records", synced),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

func (s *Syncer) syncUsers(ctx context.Context, tenant *model.TenantClient) (int, error) {
	directoryUsers, err := s.client.ListUsers(ctx, tenant.TenantID)
	if err != nil {
		return 0, fmt.Errorf("list directory users: %w", err)
	}

	now := time.Now()
	users := make([]*model.User, 0, len(directoryUsers))
	for _, du := range directoryUsers {
		users = append(users, &model.User{
			TenantClientID:    tenant.ID,
			DirectoryID:       du.ID,
			UserPrincipalName: du.UserPrincipalName,
			DisplayName:       du.DisplayName,
			Department:        du.Department,
			AccountEnabled:    du.AccountEnabled,
			LastSyncedAt:      &now,
		})
	}

	if err := s.userRepo.UpsertBatch(ctx, users); err != nil {
		return 0, fmt.Errorf("upsert users: %w", err)
	}

	if err := s.tenantRepo.MarkUserSync(ctx, tenant.ID.String(), now); err != nil {
		return 0, err
	}

	return len(users), nil
}

func (s *Syncer) syncLicenses(ctx context.Context, tenant *model.TenantClient) (int, error) {
	licenses, err := s.client.ListLicenses(ctx, tenant.TenantID)
	if err != nil {
		return 0, fmt.Errorf("list directory licenses: %w", err)
	}

	byUser, err := s.directoryIndex(ctx, tenant)
	if err != nil {
		return 0, err
	}

	assignments := make([]*model.LicenseAssignment, 0, len(licenses))
	keepByUser := make(map[uuid.UUID][]string)
	for _, license := range licenses {
		userID, ok := byUser[license.UserID]
		if !ok {
			// Directory reported a license for a user we have not synced yet.
			continue
		}
		assignments = append(assignments, &model.LicenseAssignment{
			UserID:     userID,
			SKU:        license.SKU,
			Status:     assignmentStatus(license.Status),
			Source:     assignmentSource(license.Source),
			AssignedAt: license.AssignedAt,
		})
		keepByUser[userID] = append(keepByUser[userID], license.SKU)
	}

	if err := s.userRepo.UpsertAssignments(ctx, assignments); err != nil {
		return 0, fmt.Errorf("upsert assignments: %w", err)
	}

	for userID, keep := range keepByUser {
		if err := s.userRepo.RemoveStaleAssignments(ctx, userID.String(), keep); err != nil {
			return 0, fmt.Errorf("remove stale assignments: %w", err)
		}
	}

	return len(assignments), nil
}

func (s *Syncer) syncUsage(ctx context.Context, tenant *model.TenantClient) (int, error) {
	records, err := s.client.ListUsage(ctx, tenant.TenantID, "")
	if err != nil {
		return 0, fmt.Errorf("list directory usage: %w", err)
	}

	byUser, err := s.directoryIndex(ctx, tenant)
	if err != nil {
		return 0, err
	}

	metricsBatch := make([]*model.UsageMetric, 0, len(records))
	for _, record := range records {
		userID, ok := byUser[record.UserID]
		if !ok {
			continue
		}
		metricsBatch = append(metricsBatch, &model.UsageMetric{
			UserID:           userID,
			Period:           record.Period,
			ReportDate:       record.ReportDate,
			EmailActive:      record.EmailActive,
			OneDriveActive:   record.OneDriveActive,
			SharePointActive: record.SharePointActive,
			TeamsActive:      record.TeamsActive,
			StorageUsedBytes: record.StorageUsedBytes,
		})
	}

	if err := s.usageStore.CreateBatch(ctx, metricsBatch); err != nil {
		return 0, fmt.Errorf("store usage metrics: %w", err)
	}

	if err := s.tenantRepo.MarkUsageSync(ctx, tenant.ID.String(), time.Now()); err != nil {
		return 0, err
	}

	return len(metricsBatch), nil
}

// directoryIndex maps external directory ids to local user ids for a tenant.
func (s *Syncer) directoryIndex(ctx context.Context, tenant *model.TenantClient) (map[string]uuid.UUID, error) {
	users, _, err := s.userRepo.ListByTenant(ctx, tenant.ID.String(), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list tenant users: %w", err)
	}
	index := make(map[string]uuid.UUID, len(users))
	for i := range users {
		index[users[i].DirectoryID] = users[i].ID
	}
	return index, nil
}

func (s *Syncer) publishSyncEvent(ctx context.Context, job *queue.SyncJob, tenant *model.TenantClient, status string, synced int, syncErr error) {
	if s.bus == nil {
		return
	}
	syncEvent := eventbus.SyncEvent{
		JobID:          job.JobID,
		TenantClientID: tenant.ID.String(),
		Kind:           string(job.Kind),
		Status:         status,
		RecordsSynced:  synced,
	}
	if syncErr != nil {
		syncEvent.Message = syncErr.Error()
	}
	if event, err := eventbus.NewEvent("sync_"+status, syncEvent); err == nil {
		_ = s.bus.Publish(ctx, eventbus.ChannelSync, event)
	}
}

func assignmentStatus(status string) model.AssignmentStatus {
	switch model.AssignmentStatus(status) {
	case model.AssignmentActive, model.AssignmentSuspended, model.AssignmentDisabled, model.AssignmentTrial:
		return model.AssignmentStatus(status)
	default:
		return model.AssignmentActive
	}
}

func assignmentSource(source string) model.AssignmentSource {
	switch model.AssignmentSource(source) {
	case model.SourceManual, model.SourceAuto, model.SourceGroup:
		return model.AssignmentSource(source)
	default:
		return model.SourceManual
	}
}
