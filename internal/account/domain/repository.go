package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
}
