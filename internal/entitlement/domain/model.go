package domain

import (
	"github.com/bwmarrin/snowflake"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
)

type Query struct {
	AccountID  snowflake.ID `json:"account_id"`
	ModuleID   string       `json:"module_id"`
	FeatureKey string       `json:"feature_key"`
}

// Entitlement is the resolved answer for one query. Kind is empty and
// Limit nil when the tier does not define the feature at all; an explicit
// limit of zero surfaces as Limit=0.
type Entitlement struct {
	ModuleID     string                     `json:"module_id"`
	FeatureKey   string                     `json:"feature_key"`
	TierKey      string                     `json:"tier_key"`
	Allowed      bool                       `json:"allowed"`
	Kind         featuredomain.Kind         `json:"kind,omitempty"`
	Limit        *int64                     `json:"limit"`
	Used         *int64                     `json:"used"`
	Remaining    *int64                     `json:"remaining"`
	Value        *string                    `json:"value"`
	ResetCadence featuredomain.ResetCadence `json:"reset_cadence,omitempty"`
}

// Defined reports whether the tier carries the feature key.
func (e Entitlement) Defined() bool {
	return e.Kind != ""
}
