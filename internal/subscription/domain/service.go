package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
)

type Service interface {
	// Activate creates the subscription, or changes the tier of the live
	// one while keeping its period end.
	Activate(ctx context.Context, req ActivateRequest) (*Subscription, error)
	// Cancel keeps the row; cancelling a terminated subscription is a no-op.
	Cancel(ctx context.Context, id snowflake.ID) (*Subscription, error)
	CurrentTier(ctx context.Context, accountID snowflake.ID, moduleID string) (*tierdomain.Tier, error)
	// ApplyProviderEvent applies a billing provider status report. It
	// returns (nil, nil) when a terminal status arrives for a pair without
	// a live subscription.
	ApplyProviderEvent(ctx context.Context, ev ProviderEvent) (*Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	GetLive(ctx context.Context, accountID snowflake.ID, moduleID string) (*Subscription, error)
	History(ctx context.Context, accountID snowflake.ID, moduleID string) ([]Subscription, error)
}

type ActivateRequest struct {
	AccountID snowflake.ID `json:"account_id"`
	ModuleID  string       `json:"module_id"`
	// TierID zero selects the module's default tier.
	TierID       snowflake.ID `json:"tier_id"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	TrialDays    int          `json:"trial_days,omitempty"`
}

type ProviderEvent struct {
	AccountID    snowflake.ID `json:"account_id"`
	ModuleID     string       `json:"module_id"`
	TierKey      string       `json:"tier_key"`
	Status       Status       `json:"status"`
	PeriodEnd    time.Time    `json:"period_end"`
	BillingCycle BillingCycle `json:"billing_cycle,omitempty"`
}

var (
	ErrInvalidAccount        = errors.New("invalid_account_id")
	ErrInvalidModule         = errors.New("invalid_module_id")
	ErrInvalidTier           = errors.New("invalid_tier")
	ErrInvalidBillingCycle   = errors.New("invalid_billing_cycle")
	ErrInvalidStatus         = errors.New("invalid_subscription_status")
	ErrInvalidTrial          = errors.New("invalid_trial_days")
	ErrInvalidTransition     = errors.New("invalid_status_transition")
	ErrTierModuleMismatch    = errors.New("tier_module_mismatch")
	ErrNotFound              = errors.New("subscription_not_found")
	ErrConcurrentUpdate      = errors.New("subscription_concurrent_update")
	ErrActivationInProgress  = errors.New("activation_in_progress")
	ErrAccountTypeNotAllowed = errors.New("account_type_not_allowed")
	ErrNoAccess              = errors.New("no_access")
)

// AccountTypeNotAllowedError is a permission denial: the module does not
// admit accounts of this type.
type AccountTypeNotAllowedError struct {
	ModuleID    string
	AccountType accountdomain.AccountType
}

func (e *AccountTypeNotAllowedError) Error() string {
	return fmt.Sprintf("%s: module %q does not admit %q accounts", ErrAccountTypeNotAllowed, e.ModuleID, e.AccountType)
}

func (e *AccountTypeNotAllowedError) Unwrap() error { return ErrAccountTypeNotAllowed }
