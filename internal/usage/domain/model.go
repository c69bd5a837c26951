package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
)

// Key addresses one counter.
type Key struct {
	AccountID  snowflake.ID
	ModuleID   string
	FeatureKey string
}

// Counter is the stored tally of one (account, module, feature).
type Counter struct {
	AccountID    snowflake.ID               `gorm:"primaryKey;autoIncrement:false"`
	ModuleID     string                     `gorm:"primaryKey;type:varchar(64)"`
	FeatureKey   string                     `gorm:"primaryKey;type:varchar(128)"`
	Count        int64                      `gorm:"not null"`
	Cadence      featuredomain.ResetCadence `gorm:"type:varchar(32);not null"`
	PeriodAnchor time.Time                  `gorm:"not null"`
	Version      int64                      `gorm:"not null"`
	UpdatedAt    time.Time                  `gorm:"not null"`
}

func (Counter) TableName() string { return "usage_counters" }

// lifetimeAnchor is the anchor of counters that never reset.
var lifetimeAnchor = time.Unix(0, 0).UTC()

// PeriodStart returns the start of the period containing at.
func PeriodStart(cadence featuredomain.ResetCadence, at time.Time) time.Time {
	if cadence != featuredomain.ResetCalendarMonth {
		return lifetimeAnchor
	}
	at = at.UTC()
	return time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Lapsed reports whether anchor belongs to a period before the one at now.
func Lapsed(cadence featuredomain.ResetCadence, anchor, now time.Time) bool {
	return cadence == featuredomain.ResetCalendarMonth && anchor.Before(PeriodStart(cadence, now))
}

// Effective is the count as seen at now, applying the lazy reset.
func (c Counter) Effective(cadence featuredomain.ResetCadence, now time.Time) int64 {
	if Lapsed(cadence, c.PeriodAnchor, now) {
		return 0
	}
	return c.Count
}
