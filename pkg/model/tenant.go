package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConsentStatus string

const (
	ConsentPending ConsentStatus = "PENDING"
	ConsentGranted ConsentStatus = "GRANTED"
	ConsentRevoked ConsentStatus = "REVOKED"
	ConsentExpired ConsentStatus = "EXPIRED"
)

// TenantClient is the aggregate root: one row per customer organization.
// TenantID is the external directory tenant identifier and never changes
// after creation.
type TenantClient struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        string    `gorm:"uniqueIndex;not null"`
	Name            string    `gorm:"not null"`
	PrimaryDomain   string
	Country         string                 `gorm:"type:varchar(2);default:'US'"`
	AppRegistration *TenantAppRegistration `gorm:"foreignKey:TenantClientID;constraint:OnDelete:CASCADE"`
	Users           []User                 `gorm:"foreignKey:TenantClientID;constraint:OnDelete:CASCADE"`
	Analyses        []Analysis             `gorm:"foreignKey:TenantClientID;constraint:OnDelete:CASCADE"`
	LastUserSyncAt  *time.Time
	LastUsageSyncAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// TenantAppRegistration holds the consent record that lets the directory
// client act on a tenant. Exactly one per tenant.
type TenantAppRegistration struct {
	ID               uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantClientID   uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex"`
	ClientID         string        `gorm:"not null"`
	ConsentStatus    ConsentStatus `gorm:"type:varchar(20);default:'PENDING'"`
	ConsentGrantedAt *time.Time
	ConsentExpiresAt *time.Time
	Valid            bool `gorm:"default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Usable reports whether the registration can back directory calls right now.
func (r *TenantAppRegistration) Usable() bool {
	if !r.Valid || r.ConsentStatus != ConsentGranted {
		return false
	}
	if r.ConsentExpiresAt != nil && r.ConsentExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}
