package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/tier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, tier *domain.Tier) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "module_id"}, {Name: "tier_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "monthly_price_cents", "annual_price_cents", "currency",
			"max_accounts", "max_users", "is_default", "is_popular", "sort_order",
			"metadata", "updated_at",
		}),
	}).Create(tier).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tier, error) {
	return r.take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tier, error) {
	return r.take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, moduleID, key string) (*domain.Tier, error) {
	return r.take(db.WithContext(ctx).Where("module_id = ? AND tier_key = ?", moduleID, key))
}

func (r *repo) FindByKeyForUpdate(ctx context.Context, db *gorm.DB, moduleID, key string) (*domain.Tier, error) {
	return r.take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("module_id = ? AND tier_key = ?", moduleID, key))
}

func (r *repo) ListByModule(ctx context.Context, db *gorm.DB, moduleID string) ([]domain.Tier, error) {
	var tiers []domain.Tier
	err := db.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("sort_order ASC").
		Order("tier_key ASC").
		Find(&tiers).Error
	return tiers, err
}

func (r *repo) ListDefaults(ctx context.Context, db *gorm.DB, moduleID string) ([]domain.Tier, error) {
	var tiers []domain.Tier
	err := db.WithContext(ctx).
		Where("module_id = ? AND is_default = ?", moduleID, true).
		Order("sort_order ASC").
		Find(&tiers).Error
	return tiers, err
}

func (r *repo) ClearDefaultsExcept(ctx context.Context, db *gorm.DB, moduleID string, keep snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.Tier{}).
		Where("module_id = ? AND id <> ? AND is_default = ?", moduleID, keep, true).
		Update("is_default", false).Error
}

func (r *repo) BumpRevision(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Tier{}).
		Where("id = ?", id).
		Update("revision", gorm.Expr("revision + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}

	var revision int64
	err := db.WithContext(ctx).
		Model(&domain.Tier{}).
		Select("revision").
		Where("id = ?", id).
		Scan(&revision).Error
	return revision, err
}

func (r *repo) take(stmt *gorm.DB) (*domain.Tier, error) {
	var tier domain.Tier
	err := stmt.Take(&tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
