package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/account/domain"
	"github.com/smallbiznis/entitlement/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	accountType := req.Type.Normalize()
	if accountType == "" {
		return nil, domain.ErrInvalidType
	}

	id := req.ID
	if id == 0 {
		id = s.genID.Generate()
	}

	now := s.now()
	account := &domain.Account{
		ID:        id,
		Type:      accountType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, account); err != nil {
		return nil, err
	}

	s.log.Debug("account registered",
		zap.String("account_id", id.String()),
		zap.String("account_type", string(accountType)),
	)
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
