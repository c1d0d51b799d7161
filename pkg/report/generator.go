package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/metrics"
	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// ArtifactStore is the slice of object storage the generator needs.
type ArtifactStore interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// Generator renders a completed analysis into a CSV artifact and records the
// outcome on the report row.
type Generator struct {
	reportRepo   *postgres.ReportRepository
	analysisRepo *postgres.AnalysisRepository
	recRepo      *postgres.RecommendationRepository
	storage      ArtifactStore
	logger       *zap.Logger
}

func NewGenerator(db *postgres.Store, storage ArtifactStore, logger *zap.Logger) *Generator {
	return &Generator{
		reportRepo:   postgres.NewReportRepository(db.DB()),
		analysisRepo: postgres.NewAnalysisRepository(db.DB()),
		recRepo:      postgres.NewRecommendationRepository(db.DB()),
		storage:      storage,
		logger:       logger,
	}
}

// Generate builds and stores the artifact for a pending report.
func (g *Generator) Generate(ctx context.Context, report *model.Report) error {
	analysis, err := g.analysisRepo.GetByID(ctx, report.AnalysisID.String())
	if err != nil {
		return g.fail(ctx, report, fmt.Errorf("load analysis: %w", err))
	}

	if analysis.Status != model.AnalysisCompleted {
		return g.fail(ctx, report, fmt.Errorf("analysis %s is %s, not completed", analysis.ID, analysis.Status))
	}

	recommendations, _, err := g.recRepo.ListByAnalysis(ctx, analysis.ID.String(), nil, 0, 0)
	if err != nil {
		return g.fail(ctx, report, fmt.Errorf("load recommendations: %w", err))
	}

	data, err := renderCSV(analysis, recommendations)
	if err != nil {
		return g.fail(ctx, report, err)
	}

	objectKey := fmt.Sprintf("reports/%s/%s.%s", analysis.TenantClientID, report.ID, report.Format)
	if err := g.storage.Upload(ctx, objectKey, data, "text/csv"); err != nil {
		return g.fail(ctx, report, err)
	}

	if err := g.reportRepo.MarkCompleted(ctx, report.ID.String(), objectKey, int64(len(data))); err != nil {
		return err
	}

	metrics.ReportsGenerated.WithLabelValues(report.Format, "completed").Inc()
	g.logger.Info("report generated",
		zap.String("report_id", report.ID.String()),
		zap.String("analysis_id", analysis.ID.String()),
		zap.String("object_key", objectKey),
		zap.Int("bytes", len(data)),
	)
	return nil
}

func (g *Generator) fail(ctx context.Context, report *model.Report, genErr error) error {
	metrics.ReportsGenerated.WithLabelValues(report.Format, "failed").Inc()
	if err := g.reportRepo.MarkFailed(ctx, report.ID.String(), genErr.Error()); err != nil {
		g.logger.Error("failed to mark report failed", zap.Error(err))
	}
	return genErr
}

func renderCSV(analysis *model.Analysis, recommendations []model.Recommendation) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"user", "display_name", "current_sku", "proposed_sku", "action",
		"status", "trend", "utilization_score", "monthly_savings", "annual_savings", "reason",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, rec := range recommendations {
		principal := ""
		displayName := ""
		if rec.User != nil {
			principal = rec.User.UserPrincipalName
			displayName = rec.User.DisplayName
		}
		row := []string{
			principal,
			displayName,
			rec.CurrentSKU,
			rec.ProposedSKU,
			string(rec.Action),
			string(rec.Status),
			string(rec.Trend),
			strconv.FormatFloat(rec.UtilizationScore, 'f', 2, 64),
			formatCents(rec.MonthlySavingsCents, analysis.Currency),
			formatCents(rec.AnnualSavingsCents, analysis.Currency),
			rec.Reason,
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	totals := []string{
		"TOTAL", "", "", "", "", "", "", "",
		formatCents(analysis.MonthlySavingsCents, analysis.Currency),
		formatCents(analysis.AnnualSavingsCents, analysis.Currency),
		fmt.Sprintf("generated %s", time.Now().UTC().Format(time.RFC3339)),
	}
	if err := writer.Write(totals); err != nil {
		return nil, err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
