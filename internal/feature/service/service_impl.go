package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/feature/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	TierRepo tierdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	tierRepo tierdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("feature.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		tierRepo: p.TierRepo,
	}
}

func (s *Service) DefineFeature(ctx context.Context, req domain.DefineRequest) (*domain.FeatureDefinition, error) {
	moduleID := strings.TrimSpace(req.ModuleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModuleID
	}
	tierKey := strings.TrimSpace(req.TierKey)
	if tierKey == "" {
		return nil, domain.ErrInvalidTierKey
	}

	def, err := req.Input.Build()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tier, err := s.tierRepo.FindByKeyForUpdate(ctx, tx, moduleID, tierKey)
		if err != nil {
			return err
		}
		if tier == nil {
			return domain.ErrTierNotFound
		}

		revision, err := s.tierRepo.BumpRevision(ctx, tx, tier.ID)
		if err != nil {
			return err
		}

		def.ID = s.genID.Generate()
		def.TierID = tier.ID
		def.ModuleID = moduleID
		def.TierKey = tierKey
		def.Revision = revision
		def.CreatedAt = now
		def.UpdatedAt = now
		if err := s.repo.Upsert(ctx, tx, &def); err != nil {
			return err
		}

		// Every row of the tier carries the tier revision it belongs to.
		return s.repo.SetRevision(ctx, tx, tier.ID, revision)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("feature defined",
		zap.String("module_id", moduleID),
		zap.String("tier_key", tierKey),
		zap.String("feature_key", def.Key),
		zap.String("kind", string(def.Kind)),
	)
	return s.repo.Find(ctx, s.db, moduleID, tierKey, def.Key)
}

func (s *Service) ListFeatures(ctx context.Context, moduleID, tierKey string) ([]domain.FeatureDefinition, error) {
	moduleID = strings.TrimSpace(moduleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModuleID
	}
	tierKey = strings.TrimSpace(tierKey)
	if tierKey == "" {
		return nil, domain.ErrInvalidTierKey
	}
	return s.repo.List(ctx, s.db, moduleID, tierKey)
}

func (s *Service) Find(ctx context.Context, moduleID, tierKey, key string) (*domain.FeatureDefinition, error) {
	return s.repo.Find(ctx, s.db, strings.TrimSpace(moduleID), strings.TrimSpace(tierKey), strings.TrimSpace(key))
}

func (s *Service) ListByTier(ctx context.Context, tierID snowflake.ID) ([]domain.FeatureDefinition, error) {
	return s.repo.ListByTier(ctx, s.db, tierID)
}
