package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Store domain.Store
}

type Service struct {
	log   *zap.Logger
	store domain.Store
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("usage.service"),
		store: p.Store,
	}
}

func (s *Service) Current(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence) (int64, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}
	return s.store.Current(ctx, key, normalizeCadence(cadence))
}

func (s *Service) Increment(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence, amount int64) (int64, error) {
	return s.IncrementWithin(ctx, key, cadence, amount, nil)
}

func (s *Service) IncrementWithin(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence, amount int64, limit *int64) (int64, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	count, err := s.store.Add(ctx, key, normalizeCadence(cadence), amount, limit)
	if err != nil {
		if !errors.Is(err, domain.ErrLimitReached) {
			s.log.Error("usage increment failed",
				zap.String("account_id", key.AccountID.String()),
				zap.String("module_id", key.ModuleID),
				zap.String("feature_key", key.FeatureKey),
				zap.Error(err),
			)
		}
		return 0, err
	}
	return count, nil
}

func (s *Service) Decrement(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence, amount int64) (int64, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return s.store.Add(ctx, key, normalizeCadence(cadence), -amount, nil)
}

func (s *Service) ResetModule(ctx context.Context, accountID snowflake.ID, moduleID string) error {
	moduleID = strings.TrimSpace(moduleID)
	if accountID == 0 || moduleID == "" {
		return domain.ErrInvalidKey
	}
	if err := s.store.ResetModule(ctx, accountID, moduleID); err != nil {
		return err
	}
	s.log.Info("usage counters reset",
		zap.String("account_id", accountID.String()),
		zap.String("module_id", moduleID),
	)
	return nil
}

func normalizeKey(key domain.Key) (domain.Key, error) {
	key.ModuleID = strings.TrimSpace(key.ModuleID)
	key.FeatureKey = strings.TrimSpace(key.FeatureKey)
	if key.AccountID == 0 || key.ModuleID == "" || key.FeatureKey == "" {
		return domain.Key{}, domain.ErrInvalidKey
	}
	return key, nil
}

func normalizeCadence(cadence featuredomain.ResetCadence) featuredomain.ResetCadence {
	if cadence == "" {
		return featuredomain.ResetNever
	}
	return cadence
}
