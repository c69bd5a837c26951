package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/entitlement/internal/cache"
	"github.com/smallbiznis/entitlement/internal/entitlement/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	usagedomain "github.com/smallbiznis/entitlement/internal/usage/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "entitlement/resolver"

type mode string

const (
	modeCheck   mode = "check"
	modePeek    mode = "peek"
	modeConsume mode = "consume"
	modeRelease mode = "release"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Subscriptions subscriptiondomain.Service
	Features      featuredomain.Service
	Usage         usagedomain.Service
	Cache         cache.FeatureSetCache `optional:"true"`
	Metrics       *metrics.Metrics      `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	subscriptions subscriptiondomain.Service
	features      featuredomain.Service
	usage         usagedomain.Service
	cache         cache.FeatureSetCache
	metrics       *metrics.Metrics
	tracer        trace.Tracer
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("entitlement.service"),
		subscriptions: p.Subscriptions,
		features:      p.Features,
		usage:         p.Usage,
		cache:         p.Cache,
		metrics:       p.Metrics,
		tracer:        otel.Tracer(tracerName),
	}
}

func (s *Service) Check(ctx context.Context, q domain.Query) (*domain.Entitlement, error) {
	return s.evaluate(ctx, q, modeCheck)
}

func (s *Service) Peek(ctx context.Context, q domain.Query) (*domain.Entitlement, error) {
	return s.evaluate(ctx, q, modePeek)
}

func (s *Service) evaluate(ctx context.Context, q domain.Query, m mode) (ent *domain.Entitlement, err error) {
	ctx, span := s.startSpan(ctx, q, m)
	defer func() { endSpan(span, err) }()

	q, err = normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	tier, def, err := s.resolve(ctx, q)
	if err != nil {
		s.metrics.RecordCheck(q.ModuleID, q.FeatureKey, "", metrics.ResultError)
		return nil, err
	}

	ent = newEntitlement(q, tier, def)
	if def != nil && def.Kind == featuredomain.KindLimit {
		used, err := s.usage.Current(ctx, usageKey(q), def.ResetCadence)
		if err != nil {
			s.metrics.RecordCheck(q.ModuleID, q.FeatureKey, string(def.Kind), metrics.ResultError)
			return nil, err
		}
		applyUsage(ent, def, used)
	}

	s.record(q, ent, m)
	span.SetAttributes(attribute.Bool("entitlement.allowed", ent.Allowed))
	return ent, nil
}

func (s *Service) Consume(ctx context.Context, q domain.Query, amount int64) (ent *domain.Entitlement, err error) {
	ctx, span := s.startSpan(ctx, q, modeConsume)
	defer func() { endSpan(span, err) }()

	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	q, err = normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	tier, def, err := s.resolve(ctx, q)
	if err != nil {
		s.metrics.RecordConsume(q.ModuleID, q.FeatureKey, metrics.ConsumeError)
		return nil, err
	}

	ent = newEntitlement(q, tier, def)
	switch {
	case def == nil:
		s.metrics.RecordConsume(q.ModuleID, q.FeatureKey, metrics.ConsumeDenied)
		return nil, domain.ErrFeatureNotGranted
	case def.Kind != featuredomain.KindLimit:
		// Flags and text grants have no counter to move.
		if !ent.Allowed {
			s.metrics.RecordConsume(q.ModuleID, q.FeatureKey, metrics.ConsumeDenied)
			return nil, domain.ErrFeatureNotGranted
		}
		s.metrics.RecordConsume(q.ModuleID, q.FeatureKey, metrics.ConsumeApplied)
		return ent, nil
	}

	used, err := s.usage.IncrementWithin(ctx, usageKey(q), def.ResetCadence, amount, def.LimitValue)
	if err != nil {
		var reached *usagedomain.LimitReachedError
		if errors.As(err, &reached) {
			s.metrics.RecordConsume(q.ModuleID, q.FeatureKey, metrics.ConsumeExceeded)
			s.log.Debug("consume denied",
				zap.String("account_id", q.AccountID.String()),
				zap.String("module_id", q.ModuleID),
				zap.String("feature_key", q.FeatureKey),
				zap.Int64("limit", reached.Limit),
				zap.Int64("used", reached.Used),
				zap.Int64("requested", amount),
			)
			return nil, &domain.LimitExceededError{
				ModuleID:   q.ModuleID,
				FeatureKey: q.FeatureKey,
				Limit:      reached.Limit,
				Used:       reached.Used,
				Requested:  amount,
			}
		}
		s.metrics.RecordConsume(q.ModuleID, q.FeatureKey, metrics.ConsumeError)
		return nil, err
	}

	applyUsage(ent, def, used)
	s.metrics.RecordConsume(q.ModuleID, q.FeatureKey, metrics.ConsumeApplied)
	s.log.Debug("consumed",
		zap.String("account_id", q.AccountID.String()),
		zap.String("module_id", q.ModuleID),
		zap.String("feature_key", q.FeatureKey),
		zap.Int64("amount", amount),
		zap.Int64("used", used),
	)
	return ent, nil
}

func (s *Service) Release(ctx context.Context, q domain.Query, amount int64) (ent *domain.Entitlement, err error) {
	ctx, span := s.startSpan(ctx, q, modeRelease)
	defer func() { endSpan(span, err) }()

	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	q, err = normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	tier, def, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if def == nil || def.Kind != featuredomain.KindLimit {
		return nil, domain.ErrFeatureNotGranted
	}

	used, err := s.usage.Decrement(ctx, usageKey(q), def.ResetCadence, amount)
	if err != nil {
		return nil, err
	}

	ent = newEntitlement(q, tier, def)
	applyUsage(ent, def, used)
	return ent, nil
}

// resolve returns the account's tier and the definition of the feature in
// it. A nil definition means the tier does not carry the key.
func (s *Service) resolve(ctx context.Context, q domain.Query) (*tierdomain.Tier, *featuredomain.FeatureDefinition, error) {
	tier, err := s.subscriptions.CurrentTier(ctx, q.AccountID, q.ModuleID)
	if err != nil {
		return nil, nil, err
	}

	if s.cache == nil {
		def, err := s.features.Find(ctx, q.ModuleID, tier.Key, q.FeatureKey)
		if err != nil {
			return nil, nil, err
		}
		return tier, def, nil
	}

	set, ok := s.cache.Get(tier.ID, tier.Revision)
	if !ok {
		defs, err := s.features.ListByTier(ctx, tier.ID)
		if err != nil {
			return nil, nil, err
		}
		set = cache.NewFeatureSet(defs, tier.Revision)
		s.cache.Set(tier.ID, set)
	}

	def, ok := set.Features[q.FeatureKey]
	if !ok {
		return tier, nil, nil
	}
	return tier, &def, nil
}

func (s *Service) record(q domain.Query, ent *domain.Entitlement, m mode) {
	result := metrics.ResultDenied
	if ent.Allowed {
		result = metrics.ResultAllowed
	}
	s.metrics.RecordCheck(q.ModuleID, q.FeatureKey, string(ent.Kind), result)
	s.log.Debug("entitlement resolved",
		zap.String("mode", string(m)),
		zap.String("account_id", q.AccountID.String()),
		zap.String("module_id", q.ModuleID),
		zap.String("feature_key", q.FeatureKey),
		zap.String("tier_key", ent.TierKey),
		zap.Bool("allowed", ent.Allowed),
	)
}

func (s *Service) startSpan(ctx context.Context, q domain.Query, m mode) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "entitlement."+string(m), trace.WithAttributes(
		attribute.String("module_id", q.ModuleID),
		attribute.String("feature_key", q.FeatureKey),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func newEntitlement(q domain.Query, tier *tierdomain.Tier, def *featuredomain.FeatureDefinition) *domain.Entitlement {
	ent := &domain.Entitlement{
		ModuleID:   q.ModuleID,
		FeatureKey: q.FeatureKey,
		TierKey:    tier.Key,
	}
	if def == nil {
		return ent
	}

	ent.Kind = def.Kind
	switch def.Kind {
	case featuredomain.KindBoolean:
		ent.Allowed = def.BoolValue
	case featuredomain.KindLimit:
		ent.ResetCadence = def.ResetCadence
		if def.LimitValue != nil {
			limit := *def.LimitValue
			ent.Limit = &limit
		}
		ent.Allowed = def.LimitValue == nil || *def.LimitValue > 0
	case featuredomain.KindText:
		value := def.TextValue
		ent.Value = &value
		ent.Allowed = value != ""
	}
	return ent
}

// applyUsage fills the counter fields of a limit entitlement.
func applyUsage(ent *domain.Entitlement, def *featuredomain.FeatureDefinition, used int64) {
	ent.Used = &used
	if def.LimitValue == nil {
		ent.Allowed = true
		ent.Remaining = nil
		return
	}
	remaining := max(*def.LimitValue-used, 0)
	ent.Remaining = &remaining
	ent.Allowed = remaining > 0
}

func normalizeQuery(q domain.Query) (domain.Query, error) {
	q.ModuleID = strings.TrimSpace(q.ModuleID)
	q.FeatureKey = strings.TrimSpace(q.FeatureKey)
	if q.AccountID == 0 || q.ModuleID == "" || q.FeatureKey == "" {
		return domain.Query{}, domain.ErrInvalidQuery
	}
	return q, nil
}

func usageKey(q domain.Query) usagedomain.Key {
	return usagedomain.Key{AccountID: q.AccountID, ModuleID: q.ModuleID, FeatureKey: q.FeatureKey}
}
