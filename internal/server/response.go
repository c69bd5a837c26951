package server

import (
	"time"

	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
)

type accountResponse struct {
	ID          string    `json:"id"`
	AccountType string    `json:"account_type"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAccountResponse(a *accountdomain.Account) accountResponse {
	return accountResponse{
		ID:          a.ID.String(),
		AccountType: string(a.Type),
		CreatedAt:   a.CreatedAt,
	}
}

type moduleResponse struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Category             string   `json:"category"`
	AccountTypes         []string `json:"account_types"`
	RequiresSubscription bool     `json:"requires_subscription"`
}

func toModuleResponse(m moduledomain.Module) moduleResponse {
	types := make([]string, 0, len(m.AccountTypes))
	for _, t := range m.AccountTypes {
		types = append(types, string(t))
	}
	return moduleResponse{
		ID:                   m.ID,
		Name:                 m.Name,
		Category:             string(m.Category),
		AccountTypes:         types,
		RequiresSubscription: m.RequiresSubscription,
	}
}

type tierResponse struct {
	ID                string         `json:"id"`
	ModuleID          string         `json:"module_id"`
	Key               string         `json:"tier_key"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	MonthlyPriceCents int64          `json:"monthly_price_cents"`
	AnnualPriceCents  int64          `json:"annual_price_cents"`
	Currency          string         `json:"currency,omitempty"`
	MaxAccounts       *int64         `json:"max_accounts"`
	MaxUsers          *int64         `json:"max_users"`
	IsDefault         bool           `json:"is_default"`
	IsPopular         bool           `json:"is_popular"`
	SortOrder         int            `json:"sort_order"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

func toTierResponse(t *tierdomain.Tier) tierResponse {
	return tierResponse{
		ID:                t.ID.String(),
		ModuleID:          t.ModuleID,
		Key:               t.Key,
		Name:              t.Name,
		Description:       t.Description,
		MonthlyPriceCents: t.MonthlyPriceCents,
		AnnualPriceCents:  t.AnnualPriceCents,
		Currency:          t.Currency,
		MaxAccounts:       t.MaxAccounts,
		MaxUsers:          t.MaxUsers,
		IsDefault:         t.IsDefault,
		IsPopular:         t.IsPopular,
		SortOrder:         t.SortOrder,
		Metadata:          t.Metadata,
	}
}

type featureResponse struct {
	Key          string  `json:"feature_key"`
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Value        any     `json:"value"`
	ResetCadence *string `json:"reset_cadence,omitempty"`
}

func toFeatureResponse(d featuredomain.FeatureDefinition) featureResponse {
	resp := featureResponse{
		Key:  d.Key,
		Name: d.Name,
		Kind: string(d.Kind),
	}
	switch d.Kind {
	case featuredomain.KindBoolean:
		resp.Value = d.BoolValue
	case featuredomain.KindLimit:
		if d.LimitValue != nil {
			resp.Value = *d.LimitValue
		}
		cadence := string(d.ResetCadence)
		resp.ResetCadence = &cadence
	case featuredomain.KindText:
		resp.Value = d.TextValue
	}
	return resp
}

type subscriptionResponse struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	ModuleID      string     `json:"module_id"`
	TierID        string     `json:"tier_id"`
	Status        string     `json:"status"`
	BillingCycle  string     `json:"billing_cycle"`
	PeriodStart   time.Time  `json:"period_start"`
	PeriodEnd     time.Time  `json:"period_end"`
	CanceledAt    *time.Time `json:"canceled_at"`
	ExpiredAt     *time.Time `json:"expired_at"`
	PlanChangedAt *time.Time `json:"plan_changed_at"`
}

func toSubscriptionResponse(s *subscriptiondomain.Subscription) *subscriptionResponse {
	if s == nil {
		return nil
	}
	return &subscriptionResponse{
		ID:            s.ID.String(),
		AccountID:     s.AccountID.String(),
		ModuleID:      s.ModuleID,
		TierID:        s.TierID.String(),
		Status:        string(s.Status),
		BillingCycle:  string(s.BillingCycle),
		PeriodStart:   s.PeriodStart,
		PeriodEnd:     s.PeriodEnd,
		CanceledAt:    s.CanceledAt,
		ExpiredAt:     s.ExpiredAt,
		PlanChangedAt: s.PlanChangedAt,
	}
}
