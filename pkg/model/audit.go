package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditStatusPending   = "pending"
	AuditStatusPublished = "published"
	AuditStatusFailed    = "failed"
)

const (
	AuditOpInsert = "INSERT"
	AuditOpUpdate = "UPDATE"
	AuditOpDelete = "DELETE"
)

// AuditLog is an append-only change record. Rows double as a transactional
// outbox: the relay publishes pending rows to Kafka and flips Status, the
// payload columns are never touched after insert.
type AuditLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Entity      string    `gorm:"not null;index"`
	Operation   string    `gorm:"type:varchar(10);not null"`
	RecordID    string    `gorm:"not null"`
	ActorID     string
	Before      JSONB     `gorm:"type:jsonb"`
	After       JSONB     `gorm:"type:jsonb"`
	Status      string    `gorm:"not null;default:'pending';index"`
	CreatedAt   time.Time `gorm:"autoCreateTime;not null"`
	PublishedAt *time.Time
}

func (AuditLog) TableName() string {
	return "audit_log"
}
