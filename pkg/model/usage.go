package model

import (
	"time"

	"github.com/google/uuid"
)

// UsageMetric is one activity snapshot per user and reporting period.
// The series is append-only: (user, period, report_date) is unique and
// rows are never updated after insert.
type UsageMetric struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_user_date;uniqueIndex:idx_usage_user_period_date"`
	Period           string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_usage_user_period_date"`
	ReportDate       time.Time `gorm:"type:date;not null;index:idx_usage_user_date;uniqueIndex:idx_usage_user_period_date"`
	EmailActive      bool      `gorm:"default:false"`
	OneDriveActive   bool      `gorm:"default:false"`
	SharePointActive bool      `gorm:"default:false"`
	TeamsActive      bool      `gorm:"default:false"`
	StorageUsedBytes int64     `gorm:"default:0"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

func (UsageMetric) TableName() string {
	return "usage_metrics"
}

func (m *UsageMetric) AnyActivity() bool {
	return m.EmailActive || m.OneDriveActive || m.SharePointActive || m.TeamsActive
}
