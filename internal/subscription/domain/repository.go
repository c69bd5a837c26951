package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindLive(ctx context.Context, db *gorm.DB, accountID snowflake.ID, moduleID string) (*Subscription, error)
	FindLiveForUpdate(ctx context.Context, db *gorm.DB, accountID snowflake.ID, moduleID string) (*Subscription, error)
	// UpdateVersioned applies fields only if sub.Version is still current
	// and reports whether the row was written.
	UpdateVersioned(ctx context.Context, db *gorm.DB, sub *Subscription, fields map[string]any) (bool, error)
	ClearUsageResetPending(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
