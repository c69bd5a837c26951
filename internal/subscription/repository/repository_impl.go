package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	return take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	return take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindLive(ctx context.Context, db *gorm.DB, accountID snowflake.ID, moduleID string) (*domain.Subscription, error) {
	return take(db.WithContext(ctx).
		Where("account_id = ? AND module_id = ? AND status IN ?", accountID, moduleID, domain.LiveStatuses).
		Order("created_at DESC"))
}

func (r *repo) FindLiveForUpdate(ctx context.Context, db *gorm.DB, accountID snowflake.ID, moduleID string) (*domain.Subscription, error) {
	return take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND module_id = ? AND status IN ?", accountID, moduleID, domain.LiveStatuses).
		Order("created_at DESC"))
}

func (r *repo) UpdateVersioned(ctx context.Context, db *gorm.DB, sub *domain.Subscription, fields map[string]any) (bool, error) {
	fields["version"] = sub.Version + 1
	res := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ? AND version = ?", sub.ID, sub.Version).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ClearUsageResetPending(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ? AND usage_reset_pending = ?", id, true).
		Update("usage_reset_pending", false).Error
}

func take(stmt *gorm.DB) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := stmt.Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
