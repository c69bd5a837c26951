package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/entitlement/internal/module/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, module *domain.Module) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "category", "account_types", "requires_subscription", "updated_at",
		}),
	}).Create(module).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Module, error) {
	var module domain.Module
	err := db.WithContext(ctx).Where("id = ?", id).Take(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Module, error) {
	var modules []domain.Module
	err := db.WithContext(ctx).Order("id ASC").Find(&modules).Error
	return modules, err
}
