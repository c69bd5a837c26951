package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/module/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("module.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Define(ctx context.Context, req domain.DefineRequest) (*domain.Module, error) {
	module, err := domain.NewModule(req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, s.db, module); err != nil {
		return nil, err
	}

	s.log.Info("module defined", zap.String("module_id", module.ID), zap.String("category", string(module.Category)))
	return s.Get(ctx, module.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Module, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidID
	}
	module, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, domain.ErrNotFound
	}
	return module, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Module, error) {
	return s.repo.List(ctx, s.db)
}
