package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/feature/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, def *domain.FeatureDefinition) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tier_id"}, {Name: "feature_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "kind", "bool_value", "limit_value", "text_value",
			"reset_cadence", "revision", "updated_at",
		}),
	}).Create(def).Error
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, defs []domain.FeatureDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&defs).Error
}

func (r *repo) DeleteByTier(ctx context.Context, db *gorm.DB, tierID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("tier_id = ?", tierID).
		Delete(&domain.FeatureDefinition{}).Error
}

func (r *repo) SetRevision(ctx context.Context, db *gorm.DB, tierID snowflake.ID, revision int64) error {
	return db.WithContext(ctx).
		Model(&domain.FeatureDefinition{}).
		Where("tier_id = ?", tierID).
		Update("revision", revision).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, moduleID, tierKey, key string) (*domain.FeatureDefinition, error) {
	var def domain.FeatureDefinition
	err := db.WithContext(ctx).
		Where("module_id = ? AND tier_key = ? AND feature_key = ?", moduleID, tierKey, key).
		Take(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *repo) ListByTier(ctx context.Context, db *gorm.DB, tierID snowflake.ID) ([]domain.FeatureDefinition, error) {
	var defs []domain.FeatureDefinition
	err := db.WithContext(ctx).
		Where("tier_id = ?", tierID).
		Order("feature_key ASC").
		Find(&defs).Error
	return defs, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, moduleID, tierKey string) ([]domain.FeatureDefinition, error) {
	var defs []domain.FeatureDefinition
	err := db.WithContext(ctx).
		Where("module_id = ? AND tier_key = ?", moduleID, tierKey).
		Order("feature_key ASC").
		Find(&defs).Error
	return defs, err
}
