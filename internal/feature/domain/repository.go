package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, def *FeatureDefinition) error
	InsertBatch(ctx context.Context, db *gorm.DB, defs []FeatureDefinition) error
	DeleteByTier(ctx context.Context, db *gorm.DB, tierID snowflake.ID) error
	SetRevision(ctx context.Context, db *gorm.DB, tierID snowflake.ID, revision int64) error
	Find(ctx context.Context, db *gorm.DB, moduleID, tierKey, key string) (*FeatureDefinition, error)
	ListByTier(ctx context.Context, db *gorm.DB, tierID snowflake.ID) ([]FeatureDefinition, error)
	List(ctx context.Context, db *gorm.DB, moduleID, tierKey string) ([]FeatureDefinition, error)
}
