package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// LiveStatuses are the statuses that hold a tier. At most one subscription
// per (account, module) may carry one of them.
var LiveStatuses = []Status{StatusTrialing, StatusActive, StatusPastDue}

func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

func (s Status) Live() bool {
	return s == StatusTrialing || s == StatusActive || s == StatusPastDue
}

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleAnnual
}

// PeriodEnd returns the end of a period of this cycle starting at start.
func (c BillingCycle) PeriodEnd(start time.Time) time.Time {
	if c == BillingCycleAnnual {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

type Subscription struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	AccountID    snowflake.ID `gorm:"not null;index:ix_subscriptions_account_module,priority:1"`
	ModuleID     string       `gorm:"type:varchar(64);not null;index:ix_subscriptions_account_module,priority:2"`
	TierID       snowflake.ID `gorm:"not null"`
	Status       Status       `gorm:"type:varchar(16);not null"`
	BillingCycle BillingCycle `gorm:"type:varchar(16);not null"`

	PeriodStart   time.Time `gorm:"not null"`
	PeriodEnd     time.Time `gorm:"not null"`
	CanceledAt    *time.Time
	ExpiredAt     *time.Time
	PlanChangedAt *time.Time
	// UsageResetPending is set with a billing-cycle change and cleared once
	// the module's usage counters have been reset.
	UsageResetPending bool `gorm:"not null;default:false"`

	Version   int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Current reports whether the subscription still grants its tier at now.
func (s Subscription) Current(now time.Time) bool {
	return s.Status.Live() && now.Before(s.PeriodEnd)
}
