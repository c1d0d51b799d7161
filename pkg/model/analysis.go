package model

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "PENDING"
	AnalysisRunning   AnalysisStatus = "RUNNING"
	AnalysisCompleted AnalysisStatus = "COMPLETED"
	AnalysisFailed    AnalysisStatus = "FAILED"
	AnalysisCancelled AnalysisStatus = "CANCELLED"
)

func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed || s == AnalysisCancelled
}

// CancellableAnalysisStates lists the states a run may be aborted from.
// Terminal states are deliberately absent: they never transition again.
func CancellableAnalysisStates() []AnalysisStatus {
	return []AnalysisStatus{AnalysisPending, AnalysisRunning}
}

type RecommendationStatus string

const (
	RecommendationProposed     RecommendationStatus = "PROPOSED"
	RecommendationValidated    RecommendationStatus = "VALIDATED"
	RecommendationRejected     RecommendationStatus = "REJECTED"
	RecommendationSensitive    RecommendationStatus = "SENSITIVE"
	RecommendationDecommission RecommendationStatus = "DECOMMISSION"
)

type TrendDirection string

const (
	TrendRising    TrendDirection = "RISING"
	TrendStable    TrendDirection = "STABLE"
	TrendDeclining TrendDirection = "DECLINING"
)

type RecommendationAction string

const (
	ActionDowngrade    RecommendationAction = "DOWNGRADE"
	ActionDecommission RecommendationAction = "DECOMMISSION"
)

// Analysis is one optimization run over a tenant's users. Savings totals are
// aggregated over proposed and validated recommendations when the run
// completes.
type Analysis struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantClientID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Tenant              *TenantClient  `gorm:"foreignKey:TenantClientID"`
	Status              AnalysisStatus `gorm:"type:varchar(20);default:'PENDING';index"`
	LookbackDays        int            `gorm:"default:90"`
	TriggeredBy         string
	ErrorMessage        string
	UsersEvaluated      int              `gorm:"default:0"`
	MonthlySavingsCents int64            `gorm:"default:0"`
	AnnualSavingsCents  int64            `gorm:"default:0"`
	Currency            string           `gorm:"type:varchar(3);default:'USD'"`
	Recommendations     []Recommendation `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	StartedAt           *time.Time
	FinishedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Recommendation proposes a single SKU change for a user. ProposedSKU is
// empty for decommissions. Status only ever moves out of PROPOSED.
type Recommendation struct {
	ID                  uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AnalysisID          uuid.UUID `gorm:"type:uuid;not null;index"`
	Analysis            *Analysis `gorm:"foreignKey:AnalysisID"`
	UserID              uuid.UUID `gorm:"type:uuid;not null;index"`
	User                *User     `gorm:"foreignKey:UserID"`
	CurrentSKU          string    `gorm:"not null"`
	ProposedSKU         string
	Action              RecommendationAction `gorm:"type:varchar(20);not null"`
	Status              RecommendationStatus `gorm:"type:varchar(20);default:'PROPOSED';index"`
	Trend               TrendDirection       `gorm:"type:varchar(20);default:'STABLE'"`
	UtilizationScore    float64              `gorm:"default:0"`
	MonthlySavingsCents int64                `gorm:"default:0"`
	AnnualSavingsCents  int64                `gorm:"default:0"`
	Reason              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ValidRecommendationTransition reports whether a status change is allowed.
// The lifecycle fans out of PROPOSED once and never returns.
func ValidRecommendationTransition(from, to RecommendationStatus) bool {
	if from != RecommendationProposed {
		return false
	}
	switch to {
	case RecommendationValidated, RecommendationRejected, RecommendationSensitive, RecommendationDecommission:
		return true
	default:
		return false
	}
}
