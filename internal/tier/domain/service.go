package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
)

type Service interface {
	DefineTier(ctx context.Context, req DefineRequest) (*Tier, error)
	// ReplaceFeatures swaps the tier's whole feature set in one transaction.
	ReplaceFeatures(ctx context.Context, tierID snowflake.ID, defs []featuredomain.Input) ([]featuredomain.FeatureDefinition, error)
	ListTiers(ctx context.Context, moduleID string) ([]Tier, error)
	GetTier(ctx context.Context, id snowflake.ID) (*Tier, error)
	FindTier(ctx context.Context, moduleID, key string) (*Tier, error)
	GetDefaultTier(ctx context.Context, moduleID string) (*Tier, error)
	// ValidateCatalog checks every module has exactly one default tier.
	ValidateCatalog(ctx context.Context) error
	// SyncModule writes a module with its complete tier list in one
	// transaction. Stored tiers missing from the list are demoted, and
	// nothing is committed unless the module ends with exactly one default.
	SyncModule(ctx context.Context, req SyncModuleRequest) (*SyncResult, error)
}

// CatalogTier is one tier with its whole feature set.
type CatalogTier struct {
	Tier     DefineRequest
	Features []featuredomain.Input
}

type SyncModuleRequest struct {
	Module moduledomain.DefineRequest
	Tiers  []CatalogTier
}

type SyncResult struct {
	ModuleID string
	Tiers    int
	Features int
	// Unlisted holds stored tier keys absent from the request. They keep
	// their features so existing subscriptions still resolve, but are no
	// longer default.
	Unlisted []string
}

type DefineRequest struct {
	ModuleID          string         `json:"module_id"`
	Key               string         `json:"tier_key"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	MonthlyPriceCents int64          `json:"monthly_price_cents"`
	AnnualPriceCents  int64          `json:"annual_price_cents"`
	Currency          string         `json:"currency"`
	MaxAccounts       *int64         `json:"max_accounts,omitempty"`
	MaxUsers          *int64         `json:"max_users,omitempty"`
	IsDefault         bool           `json:"is_default"`
	IsPopular         bool           `json:"is_popular"`
	SortOrder         int            `json:"sort_order"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

var (
	ErrInvalidModuleID = errors.New("invalid_module_id")
	ErrInvalidKey      = errors.New("invalid_tier_key")
	ErrInvalidName     = errors.New("invalid_tier_name")
	ErrInvalidPrice    = errors.New("invalid_tier_price")
	ErrInvalidCap      = errors.New("invalid_tier_cap")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrDuplicateKey    = errors.New("duplicate_tier_key")
	ErrNotFound        = errors.New("tier_not_found")
	ErrNoDefaultTier   = errors.New("no_default_tier")
)

// NoDefaultTierError reports a module with zero or several default tiers.
type NoDefaultTierError struct {
	ModuleID string
	Count    int
}

func (e *NoDefaultTierError) Error() string {
	return fmt.Sprintf("%s: module %q has %d default tiers", ErrNoDefaultTier, e.ModuleID, e.Count)
}

func (e *NoDefaultTierError) Unwrap() error { return ErrNoDefaultTier }
