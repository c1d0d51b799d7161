package model

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentSuspended AssignmentStatus = "SUSPENDED"
	AssignmentDisabled  AssignmentStatus = "DISABLED"
	AssignmentTrial     AssignmentStatus = "TRIAL"
)

type AssignmentSource string

const (
	SourceManual AssignmentSource = "MANUAL"
	SourceAuto   AssignmentSource = "AUTO"
	SourceGroup  AssignmentSource = "GROUP"
)

// User is a directory principal under a tenant. DirectoryID is the external
// directory object id, unique within a tenant.
type User struct {
	ID                uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantClientID    uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_tenant_directory_id"`
	Tenant            *TenantClient `gorm:"foreignKey:TenantClientID"`
	DirectoryID       string        `gorm:"not null;uniqueIndex:idx_tenant_directory_id"`
	UserPrincipalName string        `gorm:"not null"`
	DisplayName       string
	Department        string
	AccountEnabled    bool                `gorm:"default:true"`
	Assignments       []LicenseAssignment `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	LastSyncedAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LicenseAssignment pairs a user with a SKU. A user holds at most one
// assignment per SKU.
type LicenseAssignment struct {
	ID         uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_sku"`
	User       *User            `gorm:"foreignKey:UserID"`
	SKU        string           `gorm:"not null;uniqueIndex:idx_user_sku"`
	Status     AssignmentStatus `gorm:"type:varchar(20);default:'ACTIVE';index"`
	Source     AssignmentSource `gorm:"type:varchar(20);default:'MANUAL'"`
	AssignedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
