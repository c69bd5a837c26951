package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, module *Module) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Module, error)
	List(ctx context.Context, db *gorm.DB) ([]Module, error)
}
