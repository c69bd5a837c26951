package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Kind string

const (
	KindBoolean Kind = "boolean"
	KindLimit   Kind = "limit"
	KindText    Kind = "text"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBoolean, KindLimit, KindText:
		return true
	}
	return false
}

// ResetCadence controls when a limit feature's usage counter rolls over.
type ResetCadence string

const (
	ResetNever         ResetCadence = "never"
	ResetCalendarMonth ResetCadence = "calendar_month"
)

func (c ResetCadence) Valid() bool {
	return c == ResetNever || c == ResetCalendarMonth
}

// FeatureDefinition is one grant of a tier. Only the slot selected by Kind
// carries a value; the others hold their zero value.
type FeatureDefinition struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TierID   snowflake.ID `gorm:"column:tier_id;not null;uniqueIndex:ux_feature_definitions_tier_key,priority:1"`
	ModuleID string       `gorm:"type:varchar(64);not null;index:ix_feature_definitions_lookup,priority:1"`
	TierKey  string       `gorm:"type:varchar(64);not null;index:ix_feature_definitions_lookup,priority:2"`
	Key      string       `gorm:"column:feature_key;type:varchar(128);not null;uniqueIndex:ux_feature_definitions_tier_key,priority:2;index:ix_feature_definitions_lookup,priority:3"`
	Name     string       `gorm:"type:varchar(255);not null"`
	Kind     Kind         `gorm:"type:varchar(16);not null"`

	BoolValue    bool         `gorm:"not null"`
	LimitValue   *int64       `gorm:"column:limit_value"`
	TextValue    string       `gorm:"type:text;not null"`
	ResetCadence ResetCadence `gorm:"type:varchar(32);not null"`

	Revision  int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (FeatureDefinition) TableName() string { return "feature_definitions" }

// Unlimited reports a limit feature without a cap.
func (d FeatureDefinition) Unlimited() bool {
	return d.Kind == KindLimit && d.LimitValue == nil
}

// Grants reports whether the definition gives any access at all.
func (d FeatureDefinition) Grants() bool {
	switch d.Kind {
	case KindBoolean:
		return d.BoolValue
	case KindLimit:
		return d.LimitValue == nil || *d.LimitValue > 0
	case KindText:
		return d.TextValue != ""
	}
	return false
}
