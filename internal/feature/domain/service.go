package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// DefineFeature registers or overwrites one definition keyed by
	// (module, tier key, feature key).
	DefineFeature(ctx context.Context, req DefineRequest) (*FeatureDefinition, error)
	ListFeatures(ctx context.Context, moduleID, tierKey string) ([]FeatureDefinition, error)
	// Find returns (nil, nil) when the tier carries no such key.
	Find(ctx context.Context, moduleID, tierKey, key string) (*FeatureDefinition, error)
	ListByTier(ctx context.Context, tierID snowflake.ID) ([]FeatureDefinition, error)
}

type DefineRequest struct {
	ModuleID string `json:"module_id"`
	TierKey  string `json:"tier_key"`
	Input
}

var (
	ErrInvalidKey      = errors.New("invalid_feature_key")
	ErrInvalidKind     = errors.New("invalid_feature_kind")
	ErrInvalidValue    = errors.New("invalid_feature_value")
	ErrInvalidLimit    = errors.New("invalid_feature_limit")
	ErrInvalidCadence  = errors.New("invalid_reset_cadence")
	ErrDuplicateKey    = errors.New("duplicate_feature_key")
	ErrInvalidModuleID = errors.New("invalid_module_id")
	ErrInvalidTierKey  = errors.New("invalid_tier_key")
	ErrTierNotFound    = errors.New("tier_not_found")
)
