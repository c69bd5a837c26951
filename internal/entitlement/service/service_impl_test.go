package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	accountrepo "github.com/smallbiznis/entitlement/internal/account/repository"
	accountservice "github.com/smallbiznis/entitlement/internal/account/service"
	"github.com/smallbiznis/entitlement/internal/cache"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/dbtest"
	"github.com/smallbiznis/entitlement/internal/entitlement/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	featurerepo "github.com/smallbiznis/entitlement/internal/feature/repository"
	featureservice "github.com/smallbiznis/entitlement/internal/feature/service"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	modulerepo "github.com/smallbiznis/entitlement/internal/module/repository"
	moduleservice "github.com/smallbiznis/entitlement/internal/module/service"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/entitlement/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/entitlement/internal/subscription/service"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	tierrepo "github.com/smallbiznis/entitlement/internal/tier/repository"
	tierservice "github.com/smallbiznis/entitlement/internal/tier/service"
	usagedomain "github.com/smallbiznis/entitlement/internal/usage/domain"
	usageservice "github.com/smallbiznis/entitlement/internal/usage/service"
	usagestore "github.com/smallbiznis/entitlement/internal/usage/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	clk           *clock.FakeClock
	svc           domain.Service
	tiers         tierdomain.Service
	subscriptions subscriptiondomain.Service
	usage         usagedomain.Service
	account       snowflake.ID
	free          *tierdomain.Tier
	starter       *tierdomain.Tier
}

func ptr[T any](v T) *T { return &v }

func setupEntitlementService(t *testing.T, featureCache cache.FeatureSetCache) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	node := dbtest.MustNode(t)
	clk := clock.NewFakeClock(time.Date(2024, time.February, 20, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	accounts := accountservice.New(accountservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: accountrepo.Provide()})
	modules := moduleservice.New(moduleservice.Params{DB: db, Log: log, Clock: clk, Repo: modulerepo.Provide()})
	tiers := tierservice.New(tierservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo:        tierrepo.Provide(),
		FeatureRepo: featurerepo.Provide(),
		ModuleRepo:  modulerepo.Provide(),
	})
	features := featureservice.New(featureservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo:     featurerepo.Provide(),
		TierRepo: tierrepo.Provide(),
	})
	usage := usageservice.New(usageservice.Params{Log: log, Store: usagestore.NewSQLStore(db, clk)})
	subscriptions := subscriptionservice.New(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Cfg:         config.Config{},
		Repo:        subscriptionrepo.Provide(),
		AccountRepo: accountrepo.Provide(),
		ModuleRepo:  modulerepo.Provide(),
		TierRepo:    tierrepo.Provide(),
		TierSvc:     tiers,
		FeatureRepo: featurerepo.Provide(),
		UsageSvc:    usage,
	})

	_, err := modules.Define(ctx, moduledomain.DefineRequest{
		ID: "growbiz", Name: "GrowBiz", Category: moduledomain.CategorySME,
		AccountTypes: []accountdomain.AccountType{accountdomain.AccountTypeBusiness},
	})
	require.NoError(t, err)

	free, err := tiers.DefineTier(ctx, tierdomain.DefineRequest{ModuleID: "growbiz", Key: "free", Name: "Free", IsDefault: true})
	require.NoError(t, err)
	_, err = tiers.ReplaceFeatures(ctx, free.ID, []featuredomain.Input{
		{Key: "employees", Kind: featuredomain.KindLimit, Limit: ptr(int64(5))},
		{Key: "invoices", Kind: featuredomain.KindLimit, Limit: ptr(int64(3)), Reset: featuredomain.ResetCalendarMonth},
		{Key: "exports", Kind: featuredomain.KindLimit, Limit: ptr(int64(0))},
		{Key: "reports", Kind: featuredomain.KindBoolean, Bool: ptr(false)},
		{Key: "support", Kind: featuredomain.KindText, Text: ptr("email")},
	})
	require.NoError(t, err)

	starter, err := tiers.DefineTier(ctx, tierdomain.DefineRequest{ModuleID: "growbiz", Key: "starter", Name: "Starter", SortOrder: 1})
	require.NoError(t, err)
	_, err = tiers.ReplaceFeatures(ctx, starter.ID, []featuredomain.Input{
		{Key: "employees", Kind: featuredomain.KindLimit, Limit: ptr(int64(10))},
		{Key: "transactions", Kind: featuredomain.KindLimit},
		{Key: "reports", Kind: featuredomain.KindBoolean, Bool: ptr(true)},
		{Key: "support", Kind: featuredomain.KindText, Text: ptr("priority")},
	})
	require.NoError(t, err)

	account, err := accounts.Register(ctx, accountdomain.RegisterRequest{Type: accountdomain.AccountTypeBusiness})
	require.NoError(t, err)

	svc := New(Params{
		Log:           log,
		Subscriptions: subscriptions,
		Features:      features,
		Usage:         usage,
		Cache:         featureCache,
	})

	// Re-read tiers so revisions match the stored rows.
	free, err = tiers.GetTier(ctx, free.ID)
	require.NoError(t, err)
	starter, err = tiers.GetTier(ctx, starter.ID)
	require.NoError(t, err)

	return &fixture{
		clk:           clk,
		svc:           svc,
		tiers:         tiers,
		subscriptions: subscriptions,
		usage:         usage,
		account:       account.ID,
		free:          free,
		starter:       starter,
	}
}

func (f *fixture) query(feature string) domain.Query {
	return domain.Query{AccountID: f.account, ModuleID: "growbiz", FeatureKey: feature}
}

func (f *fixture) use(t *testing.T, feature string, cadence featuredomain.ResetCadence, n int64) {
	t.Helper()
	_, err := f.usage.Increment(context.Background(), usagedomain.Key{AccountID: f.account, ModuleID: "growbiz", FeatureKey: feature}, cadence, n)
	require.NoError(t, err)
}

// withAndWithoutCache runs fn against a resolver with and without the
// feature set cache.
func withAndWithoutCache(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("direct", func(t *testing.T) {
		fn(t, setupEntitlementService(t, nil))
	})
	t.Run("cached", func(t *testing.T) {
		fn(t, setupEntitlementService(t, cache.NewFeatureSetCache(16, time.Minute)))
	})
}

func TestCheck_LimitExhausted(t *testing.T) {
	withAndWithoutCache(t, func(t *testing.T, f *fixture) {
		f.use(t, "employees", featuredomain.ResetNever, 5)

		ent, err := f.svc.Check(context.Background(), f.query("employees"))
		require.NoError(t, err)
		assert.False(t, ent.Allowed)
		assert.Equal(t, "free", ent.TierKey)
		assert.Equal(t, int64(5), *ent.Limit)
		assert.Equal(t, int64(5), *ent.Used)
		assert.Equal(t, int64(0), *ent.Remaining)
	})
}

func TestConsume_OverLimitLeavesCounter(t *testing.T) {
	withAndWithoutCache(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		f.use(t, "employees", featuredomain.ResetNever, 5)

		_, err := f.svc.Consume(ctx, f.query("employees"), 1)
		var exceeded *domain.LimitExceededError
		require.True(t, errors.As(err, &exceeded))
		assert.ErrorIs(t, err, domain.ErrLimitExceeded)
		assert.Equal(t, int64(5), exceeded.Limit)
		assert.Equal(t, int64(5), exceeded.Used)
		assert.Equal(t, int64(1), exceeded.Requested)

		ent, err := f.svc.Peek(ctx, f.query("employees"))
		require.NoError(t, err)
		assert.Equal(t, int64(5), *ent.Used)
	})
}

func TestCheck_UpgradeKeepsUsage(t *testing.T) {
	withAndWithoutCache(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		f.use(t, "employees", featuredomain.ResetNever, 5)

		_, err := f.subscriptions.Activate(ctx, subscriptiondomain.ActivateRequest{
			AccountID: f.account, ModuleID: "growbiz", TierID: f.starter.ID,
		})
		require.NoError(t, err)

		ent, err := f.svc.Check(ctx, f.query("employees"))
		require.NoError(t, err)
		assert.True(t, ent.Allowed)
		assert.Equal(t, "starter", ent.TierKey)
		assert.Equal(t, int64(10), *ent.Limit)
		assert.Equal(t, int64(5), *ent.Remaining)
	})
}

func TestCheck_ExpiredSubscriptionFallsBackToDefault(t *testing.T) {
	withAndWithoutCache(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		_, err := f.subscriptions.Activate(ctx, subscriptiondomain.ActivateRequest{
			AccountID: f.account, ModuleID: "growbiz", TierID: f.starter.ID,
		})
		require.NoError(t, err)

		ent, err := f.svc.Check(ctx, f.query("reports"))
		require.NoError(t, err)
		assert.True(t, ent.Allowed)

		f.clk.Advance(40 * 24 * time.Hour)
		ent, err = f.svc.Check(ctx, f.query("reports"))
		require.NoError(t, err)
		assert.False(t, ent.Allowed)
		assert.Equal(t, "free", ent.TierKey)
	})
}

func TestCheck_ProviderExpiryMidPeriodFallsBackToDefault(t *testing.T) {
	withAndWithoutCache(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		sub, err := f.subscriptions.Activate(ctx, subscriptiondomain.ActivateRequest{
			AccountID: f.account, ModuleID: "growbiz", TierID: f.starter.ID,
		})
		require.NoError(t, err)

		f.clk.Advance(3 * 24 * time.Hour)
		_, err = f.subscriptions.ApplyProviderEvent(ctx, subscriptiondomain.ProviderEvent{
			AccountID: f.account,
			ModuleID:  "growbiz",
			TierKey:   "starter",
			Status:    subscriptiondomain.StatusExpired,
			PeriodEnd: sub.PeriodEnd,
		})
		require.NoError(t, err)
		require.True(t, f.clk.Now().Before(sub.PeriodEnd))

		tier, err := f.subscriptions.CurrentTier(ctx, f.account, "growbiz")
		require.NoError(t, err)
		assert.Equal(t, f.free.ID, tier.ID)

		ent, err := f.svc.Check(ctx, f.query("reports"))
		require.NoError(t, err)
		assert.False(t, ent.Allowed)
		assert.Equal(t, "free", ent.TierKey)

		ent, err = f.svc.Check(ctx, f.query("employees"))
		require.NoError(t, err)
		assert.Equal(t, int64(5), *ent.Limit)
	})
}

func TestCheck_AbsentFeatureIsDistinctFromZeroLimit(t *testing.T) {
	withAndWithoutCache(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		absent, err := f.svc.Check(ctx, f.query("payroll"))
		require.NoError(t, err)
		assert.False(t, absent.Allowed)
		assert.Nil(t, absent.Limit)
		assert.False(t, absent.Defined())

		zero, err := f.svc.Check(ctx, f.query("exports"))
		require.NoError(t, err)
		assert.False(t, zero.Allowed)
		require.NotNil(t, zero.Limit)
		assert.Equal(t, int64(0), *zero.Limit)
		assert.True(t, zero.Defined())
	})
}

func TestCheck_UnlimitedFeature(t *testing.T) {
	f := setupEntitlementService(t, nil)
	ctx := context.Background()

	_, err := f.subscriptions.Activate(ctx, subscriptiondomain.ActivateRequest{
		AccountID: f.account, ModuleID: "growbiz", TierID: f.starter.ID,
	})
	require.NoError(t, err)

	ent, err := f.svc.Consume(ctx, f.query("transactions"), 1000)
	require.NoError(t, err)
	assert.True(t, ent.Allowed)
	assert.Nil(t, ent.Limit)
	assert.Nil(t, ent.Remaining)
	assert.Equal(t, int64(1000), *ent.Used)
}

func TestCheck_MonthlyCounterResetsLazily(t *testing.T) {
	f := setupEntitlementService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Consume(ctx, f.query("invoices"), 1)
		require.NoError(t, err)
	}
	ent, err := f.svc.Check(ctx, f.query("invoices"))
	require.NoError(t, err)
	assert.False(t, ent.Allowed)
	assert.Equal(t, featuredomain.ResetCalendarMonth, ent.ResetCadence)

	f.clk.Set(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	ent, err = f.svc.Check(ctx, f.query("invoices"))
	require.NoError(t, err)
	assert.True(t, ent.Allowed)
	assert.Equal(t, int64(0), *ent.Used)
	assert.Equal(t, int64(3), *ent.Remaining)
}

func TestConsume_ConcurrentCallersNeverOvershoot(t *testing.T) {
	f := setupEntitlementService(t, cache.NewFeatureSetCache(16, time.Minute))
	ctx := context.Background()

	_, err := f.subscriptions.Activate(ctx, subscriptiondomain.ActivateRequest{
		AccountID: f.account, ModuleID: "growbiz", TierID: f.starter.ID,
	})
	require.NoError(t, err)

	const callers = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		exceeded  atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Consume(ctx, f.query("employees"), 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrLimitExceeded):
				exceeded.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded.Load())
	assert.Equal(t, int64(callers-10), exceeded.Load())

	ent, err := f.svc.Peek(ctx, f.query("employees"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), *ent.Used)
}

func TestConsume_BooleanAndText(t *testing.T) {
	f := setupEntitlementService(t, nil)
	ctx := context.Background()

	_, err := f.svc.Consume(ctx, f.query("reports"), 1)
	assert.ErrorIs(t, err, domain.ErrFeatureNotGranted)

	ent, err := f.svc.Consume(ctx, f.query("support"), 1)
	require.NoError(t, err)
	assert.True(t, ent.Allowed)
	assert.Equal(t, "email", *ent.Value)
	assert.Nil(t, ent.Used)

	_, err = f.svc.Consume(ctx, f.query("payroll"), 1)
	assert.ErrorIs(t, err, domain.ErrFeatureNotGranted)
}

func TestRelease(t *testing.T) {
	f := setupEntitlementService(t, nil)
	ctx := context.Background()
	f.use(t, "employees", featuredomain.ResetNever, 5)

	ent, err := f.svc.Release(ctx, f.query("employees"), 2)
	require.NoError(t, err)
	assert.True(t, ent.Allowed)
	assert.Equal(t, int64(3), *ent.Used)
	assert.Equal(t, int64(2), *ent.Remaining)

	ent, err = f.svc.Release(ctx, f.query("employees"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), *ent.Used)

	_, err = f.svc.Release(ctx, f.query("reports"), 1)
	assert.ErrorIs(t, err, domain.ErrFeatureNotGranted)
}

func TestValidation(t *testing.T) {
	f := setupEntitlementService(t, nil)
	ctx := context.Background()

	_, err := f.svc.Check(ctx, domain.Query{ModuleID: "growbiz", FeatureKey: "employees"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	_, err = f.svc.Consume(ctx, f.query("employees"), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.Release(ctx, f.query("employees"), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.Check(ctx, domain.Query{AccountID: f.account, ModuleID: "nope", FeatureKey: "employees"})
	assert.ErrorIs(t, err, moduledomain.ErrNotFound)
}

func TestCheck_CacheFollowsReplacedFeatureSet(t *testing.T) {
	f := setupEntitlementService(t, cache.NewFeatureSetCache(16, time.Hour))
	ctx := context.Background()

	ent, err := f.svc.Check(ctx, f.query("employees"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), *ent.Limit)

	_, err = f.tiers.ReplaceFeatures(ctx, f.free.ID, []featuredomain.Input{
		{Key: "employees", Kind: featuredomain.KindLimit, Limit: ptr(int64(7))},
	})
	require.NoError(t, err)

	ent, err = f.svc.Check(ctx, f.query("employees"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), *ent.Limit)

	gone, err := f.svc.Check(ctx, f.query("reports"))
	require.NoError(t, err)
	assert.False(t, gone.Defined())
}
