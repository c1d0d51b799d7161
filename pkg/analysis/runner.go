package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/eventbus"
	"github.com/seatwise/seatwise/pkg/metrics"
	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/store"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// Runner claims pending analyses and drives the engine over the tenant's
// users, one run at a time.
type Runner struct {
	analysisRepo *postgres.AnalysisRepository
	recRepo      *postgres.RecommendationRepository
	tenantRepo   *postgres.TenantRepository
	userRepo     *postgres.UserRepository
	pricingRepo  *postgres.PricingRepository
	skuRepo      *postgres.SkuMatrixRepository
	usageStore   store.UsageStore
	bus          *eventbus.Bus
	logger       *zap.Logger
	interval     time.Duration
	threshold    float64
	lookbackDays int
}

func NewRunner(
	db *postgres.Store,
	usageStore store.UsageStore,
	bus *eventbus.Bus,
	logger *zap.Logger,
	interval time.Duration,
	threshold float64,
	lookbackDays int,
) *Runner {
	return &Runner{
		analysisRepo: postgres.NewAnalysisRepository(db.DB()),
		recRepo:      postgres.NewRecommendationRepository(db.DB()),
		tenantRepo:   postgres.NewTenantRepository(db.DB()),
		userRepo:     postgres.NewUserRepository(db.DB()),
		pricingRepo:  postgres.NewPricingRepository(db.DB()),
		skuRepo:      postgres.NewSkuMatrixRepository(db.DB()),
		usageStore:   usageStore,
		bus:          bus,
		logger:       logger,
		interval:     interval,
		threshold:    threshold,
		lookbackDays: lookbackDays,
	}
}

func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	analysis, err := r.analysisRepo.ClaimNextPending(ctx)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Error("failed to claim analysis", zap.Error(err))
		}
		return
	}

	started := time.Now()
	tenantID, runErr := r.process(ctx, analysis)

	status := model.AnalysisCompleted
	if runErr != nil {
		status = model.AnalysisFailed
		// Fail is guarded on RUNNING: a run cancelled mid-flight stays CANCELLED.
		if err := r.analysisRepo.Fail(ctx, analysis.ID.String(), runErr.Error()); err != nil {
			r.logger.Error("failed to mark analysis failed", zap.Error(err))
		}
		r.logger.Error("analysis failed",
			zap.String("analysis_id", analysis.ID.String()),
			zap.Error(runErr),
		)
	}

	metrics.AnalysesTotal.WithLabelValues(tenantID, string(status)).Inc()
	metrics.AnalysisDuration.WithLabelValues(tenantID).Observe(time.Since(started).Seconds())

	r.publishAnalysisEvent(ctx, analysis, status, runErr)
}

func (r *Runner) process(ctx context.Context, analysis *model.Analysis) (string, error) {
	tenant, err := r.tenantRepo.GetByID(ctx, analysis.TenantClientID.String())
	if err != nil {
		return "", fmt.Errorf("load tenant: %w", err)
	}

	engine, err := r.buildEngine(ctx, tenant)
	if err != nil {
		return tenant.TenantID, err
	}

	users, err := r.userRepo.ListEnabledWithAssignments(ctx, tenant.ID.String())
	if err != nil {
		return tenant.TenantID, fmt.Errorf("list users: %w", err)
	}

	lookback := analysis.LookbackDays
	if lookback <= 0 {
		lookback = r.lookbackDays
	}
	since := time.Now().AddDate(0, 0, -lookback)
	var recommendations []*model.Recommendation
	var monthlyCents int64
	evaluated := 0

	for i := range users {
		user := &users[i]
		snapshot, ok := r.snapshotFor(ctx, engine, user, since)
		if !ok {
			continue
		}
		evaluated++

		proposal := engine.Evaluate(snapshot)
		if proposal == nil {
			continue
		}

		recommendations = append(recommendations, &model.Recommendation{
			AnalysisID:          analysis.ID,
			UserID:              user.ID,
			CurrentSKU:          snapshot.BaseSKU,
			ProposedSKU:         proposal.ProposedSKU,
			Action:              proposal.Action,
			Status:              model.RecommendationProposed,
			Trend:               proposal.Trend,
			UtilizationScore:    proposal.UtilizationScore,
			MonthlySavingsCents: proposal.MonthlySavingsCents,
			AnnualSavingsCents:  proposal.MonthlySavingsCents * 12,
			Reason:              proposal.Reason,
		})
		monthlyCents += proposal.MonthlySavingsCents
		metrics.RecommendationsTotal.WithLabelValues(tenant.TenantID, string(proposal.Action)).Inc()
	}

	if err := r.recRepo.CreateBatch(ctx, recommendations); err != nil {
		return tenant.TenantID, fmt.Errorf("store recommendations: %w", err)
	}

	if err := r.analysisRepo.Complete(ctx, analysis.ID.String(), evaluated, monthlyCents, monthlyCents*12); err != nil {
		return tenant.TenantID, fmt.Errorf("complete analysis: %w", err)
	}

	metrics.ProjectedSavings.WithLabelValues(tenant.TenantID).Set(float64(monthlyCents))

	r.logger.Info("analysis completed",
		zap.String("analysis_id", analysis.ID.String()),
		zap.String("tenant_id", tenant.TenantID),
		zap.Int("users_evaluated", evaluated),
		zap.Int("recommendations", len(recommendations)),
		zap.Int64("monthly_savings_cents", monthlyCents),
	)
	return tenant.TenantID, nil
}

func (r *Runner) buildEngine(ctx context.Context, tenant *model.TenantClient) (*Engine, error) {
	matrices, err := r.skuRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sku matrix: %w", err)
	}

	compat, err := r.skuRepo.ListCompatibility(ctx)
	if err != nil {
		return nil, fmt.Errorf("load addon compatibility: %w", err)
	}

	asOf := time.Now()
	prices := make(map[string]int64, len(matrices))
	for _, matrix := range matrices {
		price, err := r.pricingRepo.PriceAt(ctx, matrix.SKU, tenant.Country, asOf)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve price for %s: %w", matrix.SKU, err)
		}
		prices[matrix.SKU] = price.MonthlyPriceCents
	}

	return NewEngine(matrices, compat, prices, r.threshold), nil
}

// snapshotFor assembles the engine input for one user. Users without an
// active, priced base SKU are skipped.
func (r *Runner) snapshotFor(ctx context.Context, engine *Engine, user *model.User, since time.Time) (UserSnapshot, bool) {
	var baseSKU string
	var basePrice int64 = -1
	var addons []string

	for _, assignment := range user.Assignments {
		matrix, known := engine.matrices[assignment.SKU]
		if known && matrix.IsAddon {
			addons = append(addons, assignment.SKU)
			continue
		}
		// The priciest base assignment is the optimization target.
		if price, priced := engine.prices[assignment.SKU]; priced && price > basePrice {
			baseSKU = assignment.SKU
			basePrice = price
		}
	}

	if baseSKU == "" {
		return UserSnapshot{}, false
	}

	usage, err := r.usageStore.Query(ctx, store.UsageQuery{
		UserID: user.ID.String(),
		Since:  &since,
	})
	if err != nil {
		r.logger.Warn("failed to load usage metrics",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return UserSnapshot{}, false
	}

	return UserSnapshot{
		BaseSKU:   baseSKU,
		AddonSKUs: addons,
		Metrics:   usage,
	}, true
}

func (r *Runner) publishAnalysisEvent(ctx context.Context, analysis *model.Analysis, status model.AnalysisStatus, runErr error) {
	if r.bus == nil {
		return
	}
	analysisEvent := eventbus.AnalysisEvent{
		AnalysisID:     analysis.ID.String(),
		TenantClientID: analysis.TenantClientID.String(),
		Status:         string(status),
	}
	if runErr != nil {
		analysisEvent.Message = runErr.Error()
	}
	if event, err := eventbus.NewEvent("analysis_"+string(status), analysisEvent); err == nil {
		_ = r.bus.Publish(ctx, eventbus.ChannelAnalysis, event)
	}
}
