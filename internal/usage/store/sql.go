package store

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/clock"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/usage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCASAttempts = 64

// SQLStore keeps counters in usage_counters and serializes writers per key
// with a compare-and-swap on the version column.
type SQLStore struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewSQLStore(db *gorm.DB, clk clock.Clock) *SQLStore {
	return &SQLStore{db: db, clock: clk}
}

func (s *SQLStore) Current(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence) (int64, error) {
	counter, err := s.find(ctx, key)
	if err != nil || counter == nil {
		return 0, err
	}
	return counter.Effective(cadence, s.clock.Now()), nil
}

func (s *SQLStore) Add(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence, delta int64, limit *int64) (int64, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		now := s.clock.Now()
		counter, err := s.find(ctx, key)
		if err != nil {
			return 0, err
		}
		if counter == nil {
			if err := s.seed(ctx, key, cadence); err != nil {
				return 0, err
			}
			continue
		}

		used := counter.Effective(cadence, now)
		next := used + delta
		if delta > 0 && limit != nil && next > *limit {
			return 0, &domain.LimitReachedError{Limit: *limit, Used: used}
		}
		if next < 0 {
			next = 0
		}

		anchor := counter.PeriodAnchor
		if domain.Lapsed(cadence, anchor, now) || counter.Cadence != cadence {
			anchor = domain.PeriodStart(cadence, now)
		}

		res := s.db.WithContext(ctx).
			Model(&domain.Counter{}).
			Where("account_id = ? AND module_id = ? AND feature_key = ? AND version = ?",
				key.AccountID, key.ModuleID, key.FeatureKey, counter.Version).
			Updates(map[string]any{
				"count":         next,
				"cadence":       cadence,
				"period_anchor": anchor,
				"version":       counter.Version + 1,
				"updated_at":    now,
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
	}
	return 0, domain.ErrContention
}

func (s *SQLStore) ResetModule(ctx context.Context, accountID snowflake.ID, moduleID string) error {
	return s.db.WithContext(ctx).
		Where("account_id = ? AND module_id = ?", accountID, moduleID).
		Delete(&domain.Counter{}).Error
}

// seed inserts a zero row; a concurrent seed for the same key wins silently.
func (s *SQLStore) seed(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence) error {
	now := s.clock.Now()
	row := domain.Counter{
		AccountID:    key.AccountID,
		ModuleID:     key.ModuleID,
		FeatureKey:   key.FeatureKey,
		Cadence:      cadence,
		PeriodAnchor: domain.PeriodStart(cadence, now),
		UpdatedAt:    now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *SQLStore) find(ctx context.Context, key domain.Key) (*domain.Counter, error) {
	var counter domain.Counter
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND module_id = ? AND feature_key = ?", key.AccountID, key.ModuleID, key.FeatureKey).
		Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

var _ domain.Store = (*SQLStore)(nil)
