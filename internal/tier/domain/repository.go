package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, tier *Tier) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tier, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tier, error)
	FindByKey(ctx context.Context, db *gorm.DB, moduleID, key string) (*Tier, error)
	FindByKeyForUpdate(ctx context.Context, db *gorm.DB, moduleID, key string) (*Tier, error)
	ListByModule(ctx context.Context, db *gorm.DB, moduleID string) ([]Tier, error)
	ListDefaults(ctx context.Context, db *gorm.DB, moduleID string) ([]Tier, error)
	// ClearDefaultsExcept unsets is_default on every tier of the module
	// other than keep.
	ClearDefaultsExcept(ctx context.Context, db *gorm.DB, moduleID string, keep snowflake.ID) error
	// BumpRevision increments the tier revision and returns the new value.
	BumpRevision(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
