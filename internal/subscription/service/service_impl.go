package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/config"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/lock"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	"github.com/smallbiznis/entitlement/internal/observability/metrics"
	"github.com/smallbiznis/entitlement/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	usagedomain "github.com/smallbiznis/entitlement/internal/usage/domain"
	"github.com/smallbiznis/entitlement/pkg/db"
	"github.com/smallbiznis/entitlement/pkg/db/option"
	"github.com/smallbiznis/entitlement/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keyActivationLock     = "entitlement:activate:%s:%s"
	activationLockPoll    = 25 * time.Millisecond
	maxActivationAttempts = 3
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	ModuleRepo  moduledomain.Repository
	TierRepo    tierdomain.Repository
	TierSvc     tierdomain.Service
	FeatureRepo featuredomain.Repository
	UsageSvc    usagedomain.Service
	Locker      *lock.Locker     `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	history     repository.Repository[domain.Subscription]
	accountRepo accountdomain.Repository
	moduleRepo  moduledomain.Repository
	tierRepo    tierdomain.Repository
	tierSvc     tierdomain.Service
	featureRepo featuredomain.Repository
	usageSvc    usagedomain.Service
	locker      *lock.Locker
	lockTTL     time.Duration
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	lockTTL := p.Cfg.ActivationLockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		history:     repository.ProvideStore[domain.Subscription](p.DB),
		accountRepo: p.AccountRepo,
		moduleRepo:  p.ModuleRepo,
		tierRepo:    p.TierRepo,
		tierSvc:     p.TierSvc,
		featureRepo: p.FeatureRepo,
		usageSvc:    p.UsageSvc,
		locker:      p.Locker,
		lockTTL:     lockTTL,
		metrics:     p.Metrics,
	}
}

func (s *Service) Activate(ctx context.Context, req domain.ActivateRequest) (*domain.Subscription, error) {
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	moduleID := strings.TrimSpace(req.ModuleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModule
	}
	cycle := req.BillingCycle
	if cycle == "" {
		cycle = domain.BillingCycleMonthly
	}
	if !cycle.Valid() {
		return nil, domain.ErrInvalidBillingCycle
	}
	if req.TrialDays < 0 {
		return nil, domain.ErrInvalidTrial
	}

	module, _, err := s.admit(ctx, req.AccountID, moduleID)
	if err != nil {
		return nil, err
	}

	var tier *tierdomain.Tier
	if req.TierID == 0 {
		tier, err = s.tierSvc.GetDefaultTier(ctx, module.ID)
	} else {
		tier, err = s.tierSvc.GetTier(ctx, req.TierID)
	}
	if err != nil {
		return nil, err
	}
	if tier.ModuleID != module.ID {
		return nil, domain.ErrTierModuleMismatch
	}

	if s.locker.Enabled() {
		key := fmt.Sprintf(keyActivationLock, req.AccountID.String(), module.ID)
		token, ok, err := s.locker.Acquire(ctx, key, s.lockTTL, s.lockTTL, activationLockPoll)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrActivationInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("release activation lock", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	var (
		sub        *domain.Subscription
		outcome    string
		resetUsage bool
	)
	for attempt := 0; attempt < maxActivationAttempts; attempt++ {
		sub, outcome, resetUsage, err = s.activateOnce(ctx, req.AccountID, module.ID, tier, cycle, req.TrialDays)
		if err == nil || !retryable(err) {
			break
		}
		s.log.Debug("activation raced, retrying",
			zap.String("account_id", req.AccountID.String()),
			zap.String("module_id", module.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	if err != nil {
		s.metrics.RecordActivation(module.ID, metrics.ActivationFailed)
		return nil, err
	}

	// The new cycle starts a fresh period for every counter of the module.
	// The row keeps the pending flag until the reset succeeds, so a retried
	// activation finishes it.
	if resetUsage {
		if err := s.usageSvc.ResetModule(ctx, req.AccountID, module.ID); err != nil {
			s.metrics.RecordActivation(module.ID, metrics.ActivationFailed)
			return nil, fmt.Errorf("reset usage after cycle change: %w", err)
		}
		if err := s.repo.ClearUsageResetPending(ctx, s.db, sub.ID); err != nil {
			return nil, err
		}
		sub.UsageResetPending = false
	}

	s.metrics.RecordActivation(module.ID, outcome)
	s.log.Info("subscription activated",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("account_id", req.AccountID.String()),
		zap.String("module_id", module.ID),
		zap.String("tier_key", tier.Key),
		zap.String("status", string(sub.Status)),
		zap.String("outcome", outcome),
	)
	return sub, nil
}

func (s *Service) activateOnce(
	ctx context.Context,
	accountID snowflake.ID,
	moduleID string,
	tier *tierdomain.Tier,
	cycle domain.BillingCycle,
	trialDays int,
) (*domain.Subscription, string, bool, error) {
	var (
		result     *domain.Subscription
		outcome    string
		resetUsage bool
	)
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		live, err := s.repo.FindLiveForUpdate(ctx, tx, accountID, moduleID)
		if err != nil {
			return err
		}

		if live != nil && !live.Current(now) {
			if err := s.expire(ctx, tx, live, now); err != nil {
				return err
			}
			live = nil
		}

		if live == nil {
			sub := &domain.Subscription{
				ID:           s.genID.Generate(),
				AccountID:    accountID,
				ModuleID:     moduleID,
				TierID:       tier.ID,
				Status:       domain.StatusActive,
				BillingCycle: cycle,
				PeriodStart:  now,
				PeriodEnd:    cycle.PeriodEnd(now),
				Version:      1,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if trialDays > 0 {
				sub.Status = domain.StatusTrialing
				sub.PeriodEnd = now.AddDate(0, 0, trialDays)
			}
			if err := s.repo.Insert(ctx, tx, sub); err != nil {
				return err
			}
			result, outcome = sub, metrics.ActivationCreated
			return nil
		}

		fields := map[string]any{
			"tier_id":    tier.ID,
			"updated_at": now,
		}
		if live.TierID != tier.ID {
			fields["plan_changed_at"] = now
		}
		resetUsage = live.UsageResetPending
		if live.BillingCycle != cycle {
			fields["billing_cycle"] = cycle
			fields["period_start"] = now
			fields["period_end"] = cycle.PeriodEnd(now)
			fields["usage_reset_pending"] = true
			resetUsage = true
		}
		ok, err := s.repo.UpdateVersioned(ctx, tx, live, fields)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}

		result, err = s.repo.FindByID(ctx, tx, live.ID)
		outcome = metrics.ActivationChanged
		return err
	})
	if err != nil {
		return nil, "", false, err
	}
	return result, outcome, resetUsage, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}

	var result *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNotFound
		}
		if !sub.Status.Live() {
			result = sub
			return nil
		}

		now := s.clock.Now()
		ok, err := s.repo.UpdateVersioned(ctx, tx, sub, map[string]any{
			"status":      domain.StatusCanceled,
			"canceled_at": now,
			"updated_at":  now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}
		result, err = s.repo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription canceled",
		zap.String("subscription_id", id.String()),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *Service) CurrentTier(ctx context.Context, accountID snowflake.ID, moduleID string) (*tierdomain.Tier, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	moduleID = strings.TrimSpace(moduleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModule
	}

	module, _, err := s.admit(ctx, accountID, moduleID)
	if err != nil {
		return nil, err
	}

	live, err := s.repo.FindLive(ctx, s.db, accountID, moduleID)
	if err != nil {
		return nil, err
	}
	if live != nil && live.Current(s.clock.Now()) {
		tier, err := s.tierRepo.FindByID(ctx, s.db, live.TierID)
		if err != nil {
			return nil, err
		}
		if tier != nil {
			return tier, nil
		}
		s.log.Warn("live subscription references a missing tier",
			zap.String("subscription_id", live.ID.String()),
			zap.String("tier_id", live.TierID.String()),
		)
	}

	tier, err := s.tierSvc.GetDefaultTier(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module.RequiresSubscription {
		grants, err := s.grantsAny(ctx, tier)
		if err != nil {
			return nil, err
		}
		if !grants {
			return nil, fmt.Errorf("%w: module %q requires a subscription", domain.ErrNoAccess, moduleID)
		}
	}
	return tier, nil
}

func (s *Service) ApplyProviderEvent(ctx context.Context, ev domain.ProviderEvent) (*domain.Subscription, error) {
	if ev.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	moduleID := strings.TrimSpace(ev.ModuleID)
	if moduleID == "" {
		return nil, domain.ErrInvalidModule
	}
	if !ev.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	cycle := ev.BillingCycle
	if cycle == "" {
		cycle = domain.BillingCycleMonthly
	}
	if !cycle.Valid() {
		return nil, domain.ErrInvalidBillingCycle
	}
	tierKey := strings.TrimSpace(ev.TierKey)
	if tierKey == "" {
		return nil, domain.ErrInvalidTier
	}

	if _, _, err := s.admit(ctx, ev.AccountID, moduleID); err != nil {
		return nil, err
	}
	tier, err := s.tierSvc.FindTier(ctx, moduleID, tierKey)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordProviderEvent(moduleID, string(ev.Status))

	var result *domain.Subscription
	for attempt := 0; attempt < maxActivationAttempts; attempt++ {
		result, err = s.applyEventOnce(ctx, ev.AccountID, moduleID, tier, cycle, ev)
		if err == nil || !retryable(err) {
			break
		}
	}
	if err != nil {
		s.log.Warn("provider event rejected",
			zap.String("account_id", ev.AccountID.String()),
			zap.String("module_id", moduleID),
			zap.String("status", string(ev.Status)),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (s *Service) applyEventOnce(
	ctx context.Context,
	accountID snowflake.ID,
	moduleID string,
	tier *tierdomain.Tier,
	cycle domain.BillingCycle,
	ev domain.ProviderEvent,
) (*domain.Subscription, error) {
	var result *domain.Subscription
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		live, err := s.repo.FindLiveForUpdate(ctx, tx, accountID, moduleID)
		if err != nil {
			return err
		}

		if live == nil {
			if !ev.Status.Live() {
				return nil
			}
			periodEnd := ev.PeriodEnd
			if periodEnd.IsZero() {
				periodEnd = cycle.PeriodEnd(now)
			}
			sub := &domain.Subscription{
				ID:           s.genID.Generate(),
				AccountID:    accountID,
				ModuleID:     moduleID,
				TierID:       tier.ID,
				Status:       ev.Status,
				BillingCycle: cycle,
				PeriodStart:  now,
				PeriodEnd:    periodEnd,
				Version:      1,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.repo.Insert(ctx, tx, sub); err != nil {
				return err
			}
			result = sub
			return nil
		}

		samePeriod := ev.PeriodEnd.IsZero() || live.PeriodEnd.Equal(ev.PeriodEnd)
		if live.Status == ev.Status && live.TierID == tier.ID && samePeriod {
			result = live
			return nil
		}
		if live.Status != ev.Status && !isTransitionAllowed(live.Status, ev.Status) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, live.Status, ev.Status)
		}

		fields := map[string]any{
			"status":     ev.Status,
			"updated_at": now,
		}
		if live.TierID != tier.ID {
			fields["tier_id"] = tier.ID
			fields["plan_changed_at"] = now
		}
		if !ev.PeriodEnd.IsZero() {
			fields["period_end"] = ev.PeriodEnd
		}
		switch ev.Status {
		case domain.StatusCanceled:
			fields["canceled_at"] = now
		case domain.StatusExpired:
			fields["expired_at"] = now
		}

		ok, err := s.repo.UpdateVersioned(ctx, tx, live, fields)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}
		result, err = s.repo.FindByID(ctx, tx, live.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) GetLive(ctx context.Context, accountID snowflake.ID, moduleID string) (*domain.Subscription, error) {
	sub, err := s.repo.FindLive(ctx, s.db, accountID, strings.TrimSpace(moduleID))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) History(ctx context.Context, accountID snowflake.ID, moduleID string) ([]domain.Subscription, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	filter := &domain.Subscription{AccountID: accountID, ModuleID: strings.TrimSpace(moduleID)}
	rows, err := s.history.Find(ctx, filter,
		option.ApplyOrder("created_at", option.DESC),
		option.ApplyOrder("id", option.DESC),
	)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Subscription, 0, len(rows))
	for _, row := range rows {
		items = append(items, *row)
	}
	return items, nil
}

// admit loads the module and account and checks the account type.
func (s *Service) admit(ctx context.Context, accountID snowflake.ID, moduleID string) (*moduledomain.Module, *accountdomain.Account, error) {
	module, err := s.moduleRepo.FindByID(ctx, s.db, moduleID)
	if err != nil {
		return nil, nil, err
	}
	if module == nil {
		return nil, nil, moduledomain.ErrNotFound
	}

	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, accountdomain.ErrNotFound
	}

	if !module.Permits(account.Type) {
		return nil, nil, &domain.AccountTypeNotAllowedError{ModuleID: module.ID, AccountType: account.Type}
	}
	return module, account, nil
}

func (s *Service) expire(ctx context.Context, tx *gorm.DB, sub *domain.Subscription, now time.Time) error {
	ok, err := s.repo.UpdateVersioned(ctx, tx, sub, map[string]any{
		"status":     domain.StatusExpired,
		"expired_at": now,
		"updated_at": now,
	})
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConcurrentUpdate
	}
	s.log.Info("subscription lapsed",
		zap.String("subscription_id", sub.ID.String()),
		zap.Time("period_end", sub.PeriodEnd),
	)
	return nil
}

func (s *Service) grantsAny(ctx context.Context, tier *tierdomain.Tier) (bool, error) {
	defs, err := s.featureRepo.ListByTier(ctx, s.db, tier.ID)
	if err != nil {
		return false, err
	}
	for _, def := range defs {
		if def.Grants() {
			return true, nil
		}
	}
	return false, nil
}

func isTransitionAllowed(from, to domain.Status) bool {
	switch from {
	case domain.StatusTrialing:
		return to == domain.StatusActive || to == domain.StatusPastDue || to == domain.StatusCanceled || to == domain.StatusExpired
	case domain.StatusActive:
		return to == domain.StatusPastDue || to == domain.StatusCanceled || to == domain.StatusExpired
	case domain.StatusPastDue:
		return to == domain.StatusActive || to == domain.StatusCanceled || to == domain.StatusExpired
	default:
		return false
	}
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrConcurrentUpdate) || db.IsDuplicateKeyErr(err) || db.IsRetryableTxErr(err)
}
