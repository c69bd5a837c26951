package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tier is a priced bundle of feature grants within one module.
type Tier struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	ModuleID    string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_tiers_module_key,priority:1"`
	Key         string       `gorm:"column:tier_key;type:varchar(64);not null;uniqueIndex:ux_tiers_module_key,priority:2"`
	Name        string       `gorm:"type:varchar(255);not null"`
	Description string       `gorm:"type:text;not null"`

	MonthlyPriceCents int64  `gorm:"not null"`
	AnnualPriceCents  int64  `gorm:"not null"`
	Currency          string `gorm:"type:varchar(3);not null"`

	MaxAccounts *int64
	MaxUsers    *int64

	IsDefault bool `gorm:"not null"`
	// IsPopular is presentation only.
	IsPopular bool `gorm:"not null"`
	SortOrder int  `gorm:"not null"`
	// Revision increments whenever the tier's feature set changes.
	Revision int64 `gorm:"not null"`

	Metadata  datatypes.JSONMap
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Tier) TableName() string { return "tiers" }

// Free reports a tier without a price in either cycle.
func (t Tier) Free() bool {
	return t.MonthlyPriceCents == 0 && t.AnnualPriceCents == 0
}
