package model

import (
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportPending   ReportStatus = "PENDING"
	ReportCompleted ReportStatus = "COMPLETED"
	ReportFailed    ReportStatus = "FAILED"
)

const ReportFormatCSV = "csv"

// Report is the metadata of a generated artifact. The artifact itself lives
// in object storage under ObjectKey.
type Report struct {
	ID           uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AnalysisID   uuid.UUID    `gorm:"type:uuid;not null;index"`
	Analysis     *Analysis    `gorm:"foreignKey:AnalysisID"`
	Format       string       `gorm:"type:varchar(10);default:'csv'"`
	Status       ReportStatus `gorm:"type:varchar(20);default:'PENDING'"`
	ObjectKey    string
	SizeBytes    int64 `gorm:"default:0"`
	ErrorMessage string
	GeneratedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
