package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/clock"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	"github.com/smallbiznis/entitlement/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	FeatureRepo featuredomain.Repository
	ModuleRepo  moduledomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	featureRepo featuredomain.Repository
	moduleRepo  moduledomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("tier.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		featureRepo: p.FeatureRepo,
		moduleRepo:  p.ModuleRepo,
	}
}

func (s *Service) DefineTier(ctx context.Context, req domain.DefineRequest) (*domain.Tier, error) {
	tier, err := s.buildTier(req, s.clock.Now())
	if err != nil {
		return nil, err
	}

	module, err := s.moduleRepo.FindByID(ctx, s.db, tier.ModuleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, moduledomain.ErrNotFound
	}

	if err := s.repo.Upsert(ctx, s.db, tier); err != nil {
		return nil, err
	}

	s.log.Info("tier defined",
		zap.String("module_id", tier.ModuleID),
		zap.String("tier_key", tier.Key),
		zap.Bool("is_default", tier.IsDefault),
	)
	return s.FindTier(ctx, tier.ModuleID, tier.Key)
}

func (s *Service) ReplaceFeatures(ctx context.Context, tierID snowflake.ID, inputs []featuredomain.Input) ([]featuredomain.FeatureDefinition, error) {
	if tierID == 0 {
		return nil, domain.ErrNotFound
	}

	defs, err := buildFeatures(inputs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tier, err := s.repo.FindByIDForUpdate(ctx, tx, tierID)
		if err != nil {
			return err
		}
		if tier == nil {
			return domain.ErrNotFound
		}
		return s.replaceFeatures(ctx, tx, tier, defs, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tier features replaced",
		zap.String("tier_id", tierID.String()),
		zap.Int("features", len(defs)),
	)
	return s.featureRepo.ListByTier(ctx, s.db, tierID)
}

func (s *Service) SyncModule(ctx context.Context, req domain.SyncModuleRequest) (*domain.SyncResult, error) {
	now := s.clock.Now()
	module, err := moduledomain.NewModule(req.Module, now)
	if err != nil {
		return nil, err
	}

	type entry struct {
		tier *domain.Tier
		defs []featuredomain.FeatureDefinition
	}
	entries := make([]entry, 0, len(req.Tiers))
	listed := make(map[string]struct{}, len(req.Tiers))
	defaults := 0
	for _, ct := range req.Tiers {
		ct.Tier.ModuleID = module.ID
		tier, err := s.buildTier(ct.Tier, now)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", ct.Tier.Key, err)
		}
		if _, dup := listed[tier.Key]; dup {
			return nil, fmt.Errorf("tier %q: %w", tier.Key, domain.ErrDuplicateKey)
		}
		listed[tier.Key] = struct{}{}
		if tier.IsDefault {
			defaults++
		}

		defs, err := buildFeatures(ct.Features)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", tier.Key, err)
		}
		entries = append(entries, entry{tier: tier, defs: defs})
	}
	if defaults != 1 {
		return nil, &domain.NoDefaultTierError{ModuleID: module.ID, Count: defaults}
	}

	result := &domain.SyncResult{ModuleID: module.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.moduleRepo.Upsert(ctx, tx, module); err != nil {
			return err
		}

		stored, err := s.repo.ListByModule(ctx, tx, module.ID)
		if err != nil {
			return err
		}
		for _, t := range stored {
			if _, ok := listed[t.Key]; !ok {
				result.Unlisted = append(result.Unlisted, t.Key)
			}
		}

		var keep snowflake.ID
		for _, e := range entries {
			if err := s.repo.Upsert(ctx, tx, e.tier); err != nil {
				return fmt.Errorf("tier %q: %w", e.tier.Key, err)
			}
			tier, err := s.repo.FindByKeyForUpdate(ctx, tx, module.ID, e.tier.Key)
			if err != nil {
				return err
			}
			if tier == nil {
				return fmt.Errorf("tier %q: %w", e.tier.Key, domain.ErrNotFound)
			}
			if err := s.replaceFeatures(ctx, tx, tier, e.defs, now); err != nil {
				return fmt.Errorf("tier %q: %w", tier.Key, err)
			}
			if tier.IsDefault {
				keep = tier.ID
			}
			result.Tiers++
			result.Features += len(e.defs)
		}

		if err := s.repo.ClearDefaultsExcept(ctx, tx, module.ID, keep); err != nil {
			return err
		}
		current, err := s.repo.ListDefaults(ctx, tx, module.ID)
		if err != nil {
			return err
		}
		if len(current) != 1 {
			return &domain.NoDefaultTierError{ModuleID: module.ID, Count: len(current)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Unlisted) > 0 {
		s.log.Warn("stored tiers missing from catalog were demoted",
			zap.String("module_id", module.ID),
			zap.Strings("tier_keys", result.Unlisted),
		)
	}
	s.log.Info("module catalog synced",
		zap.String("module_id", module.ID),
		zap.Int("tiers", result.Tiers),
		zap.Int("features", result.Features),
	)
	return result, nil
}

func (s *Service) ListTiers(ctx context.Context, moduleID string) ([]domain.Tier, error) {
	moduleID = strings.TrimSpace(moduleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModuleID
	}
	return s.repo.ListByModule(ctx, s.db, moduleID)
}

func (s *Service) GetTier(ctx context.Context, id snowflake.ID) (*domain.Tier, error) {
	tier, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, domain.ErrNotFound
	}
	return tier, nil
}

func (s *Service) FindTier(ctx context.Context, moduleID, key string) (*domain.Tier, error) {
	tier, err := s.repo.FindByKey(ctx, s.db, strings.TrimSpace(moduleID), strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, domain.ErrNotFound
	}
	return tier, nil
}

func (s *Service) GetDefaultTier(ctx context.Context, moduleID string) (*domain.Tier, error) {
	moduleID = strings.TrimSpace(moduleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModuleID
	}
	defaults, err := s.repo.ListDefaults(ctx, s.db, moduleID)
	if err != nil {
		return nil, err
	}
	if len(defaults) != 1 {
		return nil, &domain.NoDefaultTierError{ModuleID: moduleID, Count: len(defaults)}
	}
	return &defaults[0], nil
}

func (s *Service) ValidateCatalog(ctx context.Context) error {
	modules, err := s.moduleRepo.List(ctx, s.db)
	if err != nil {
		return err
	}

	var errs []error
	for _, module := range modules {
		if _, err := s.GetDefaultTier(ctx, module.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.log.Error("catalog validation failed", zap.Error(errors.Join(errs...)))
	}
	return errors.Join(errs...)
}

func (s *Service) buildTier(req domain.DefineRequest, now time.Time) (*domain.Tier, error) {
	moduleID := strings.TrimSpace(req.ModuleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModuleID
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return nil, domain.ErrInvalidKey
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.MonthlyPriceCents < 0 || req.AnnualPriceCents < 0 {
		return nil, domain.ErrInvalidPrice
	}
	if (req.MaxAccounts != nil && *req.MaxAccounts < 0) || (req.MaxUsers != nil && *req.MaxUsers < 0) {
		return nil, domain.ErrInvalidCap
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency != "" && len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}

	return &domain.Tier{
		ID:                s.genID.Generate(),
		ModuleID:          moduleID,
		Key:               key,
		Name:              name,
		Description:       strings.TrimSpace(req.Description),
		MonthlyPriceCents: req.MonthlyPriceCents,
		AnnualPriceCents:  req.AnnualPriceCents,
		Currency:          currency,
		MaxAccounts:       req.MaxAccounts,
		MaxUsers:          req.MaxUsers,
		IsDefault:         req.IsDefault,
		IsPopular:         req.IsPopular,
		SortOrder:         req.SortOrder,
		Metadata:          datatypes.JSONMap(req.Metadata),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// replaceFeatures swaps the feature rows of a tier locked by tx and bumps
// its revision.
func (s *Service) replaceFeatures(ctx context.Context, tx *gorm.DB, tier *domain.Tier, defs []featuredomain.FeatureDefinition, now time.Time) error {
	revision, err := s.repo.BumpRevision(ctx, tx, tier.ID)
	if err != nil {
		return err
	}

	for i := range defs {
		defs[i].ID = s.genID.Generate()
		defs[i].TierID = tier.ID
		defs[i].ModuleID = tier.ModuleID
		defs[i].TierKey = tier.Key
		defs[i].Revision = revision
		defs[i].CreatedAt = now
		defs[i].UpdatedAt = now
	}

	if err := s.featureRepo.DeleteByTier(ctx, tx, tier.ID); err != nil {
		return err
	}
	return s.featureRepo.InsertBatch(ctx, tx, defs)
}

func buildFeatures(inputs []featuredomain.Input) ([]featuredomain.FeatureDefinition, error) {
	defs := make([]featuredomain.FeatureDefinition, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		def, err := in.Build()
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", in.Key, err)
		}
		if _, ok := seen[def.Key]; ok {
			return nil, fmt.Errorf("feature %q: %w", def.Key, featuredomain.ErrDuplicateKey)
		}
		seen[def.Key] = struct{}{}
		defs = append(defs, def)
	}
	return defs, nil
}
