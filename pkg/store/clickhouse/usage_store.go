package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/model"
	"github.com/seatwise/seatwise/pkg/store"
)

// ClickHouseUsageStore keeps the usage metric time series in ClickHouse.
// The table uses ReplacingMergeTree on (user_id, period, report_date) so
// duplicate snapshots collapse, matching the append-only contract.
type ClickHouseUsageStore struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClickHouseUsageStore(addr string, database string, username string, password string, logger *zap.Logger) (*ClickHouseUsageStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return &ClickHouseUsageStore{
		conn:   conn,
		logger: logger,
	}, nil
}

func (s *ClickHouseUsageStore) CreateBatch(ctx context.Context, metrics []*model.UsageMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO usage_metrics")
	if err != nil {
		return err
	}

	for _, metric := range metrics {
		err := batch.Append(
			metric.UserID,
			metric.Period,
			metric.ReportDate,
			metric.EmailActive,
			metric.OneDriveActive,
			metric.SharePointActive,
			metric.TeamsActive,
			metric.StorageUsedBytes,
			time.Now(), // created_at
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (s *ClickHouseUsageStore) Query(ctx context.Context, query store.UsageQuery) ([]model.UsageMetric, error) {
	if query.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	userUUID, err := uuid.Parse(query.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	queryText := "SELECT user_id, period, report_date, email_active, onedrive_active, sharepoint_active, teams_active, storage_used_bytes FROM usage_metrics WHERE user_id = ?"
	args := []interface{}{userUUID}

	if query.Period != "" {
		queryText += " AND period = ?"
		args = append(args, query.Period)
	}

	if query.Since != nil {
		queryText += " AND report_date >= ?"
		args = append(args, *query.Since)
	}

	if query.Until != nil {
		queryText += " AND report_date <= ?"
		args = append(args, *query.Until)
	}

	queryText += " ORDER BY report_date ASC"

	if query.Limit > 0 {
		queryText += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := s.conn.Query(ctx, queryText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []model.UsageMetric
	for rows.Next() {
		var metric model.UsageMetric
		if err := rows.Scan(
			&metric.UserID,
			&metric.Period,
			&metric.ReportDate,
			&metric.EmailActive,
			&metric.OneDriveActive,
			&metric.SharePointActive,
			&metric.TeamsActive,
			&metric.StorageUsedBytes,
		); err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}

	return metrics, nil
}

func (s *ClickHouseUsageStore) DeleteOldMetrics(ctx context.Context, retentionDays int) error {
	// ClickHouse handles retention via TTL natively.
	return nil
}

func (s *ClickHouseUsageStore) Close() error {
	return s.conn.Close()
}
