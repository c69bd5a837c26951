package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/dbtest"
	"github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/feature/repository"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	modulerepo "github.com/smallbiznis/entitlement/internal/module/repository"
	moduleservice "github.com/smallbiznis/entitlement/internal/module/service"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	tierrepo "github.com/smallbiznis/entitlement/internal/tier/repository"
	tierservice "github.com/smallbiznis/entitlement/internal/tier/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	features domain.Service
	tiers    tierdomain.Service
	free     *tierdomain.Tier
}

func setupFeatureService(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.MustNode(t)
	clk := clock.NewFakeClock(time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	modules := moduleservice.New(moduleservice.Params{DB: db, Log: log, Clock: clk, Repo: modulerepo.Provide()})
	tiers := tierservice.New(tierservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo:        tierrepo.Provide(),
		FeatureRepo: repository.Provide(),
		ModuleRepo:  modulerepo.Provide(),
	})
	features := New(Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo:     repository.Provide(),
		TierRepo: tierrepo.Provide(),
	})

	ctx := context.Background()
	_, err := modules.Define(ctx, moduledomain.DefineRequest{
		ID:           "growbiz",
		Name:         "GrowBiz",
		Category:     moduledomain.CategorySME,
		AccountTypes: []accountdomain.AccountType{accountdomain.AccountTypeBusiness},
	})
	require.NoError(t, err)
	free, err := tiers.DefineTier(ctx, tierdomain.DefineRequest{ModuleID: "growbiz", Key: "free", Name: "Free", IsDefault: true})
	require.NoError(t, err)

	return fixture{features: features, tiers: tiers, free: free}
}

func limit(n int64) *int64 { return &n }

func TestDefineFeature_UpsertsByKey(t *testing.T) {
	f := setupFeatureService(t)
	ctx := context.Background()

	def, err := f.features.DefineFeature(ctx, domain.DefineRequest{
		ModuleID: "growbiz", TierKey: "free",
		Input: domain.Input{Key: "employees", Name: "Employees", Kind: domain.KindLimit, Limit: limit(5)},
	})
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, f.free.ID, def.TierID)
	assert.Equal(t, int64(5), *def.LimitValue)

	redefined, err := f.features.DefineFeature(ctx, domain.DefineRequest{
		ModuleID: "growbiz", TierKey: "free",
		Input: domain.Input{Key: "employees", Name: "Employees", Kind: domain.KindLimit, Limit: limit(8)},
	})
	require.NoError(t, err)
	assert.Equal(t, def.ID, redefined.ID, "redefinition keeps the row")
	assert.Equal(t, int64(8), *redefined.LimitValue)
	assert.Greater(t, redefined.Revision, def.Revision)

	list, err := f.features.ListFeatures(ctx, "growbiz", "free")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(8), *list[0].LimitValue)
}

func TestDefineFeature_BumpsTierRevision(t *testing.T) {
	f := setupFeatureService(t)
	ctx := context.Background()

	_, err := f.features.DefineFeature(ctx, domain.DefineRequest{
		ModuleID: "growbiz", TierKey: "free",
		Input: domain.Input{Key: "reports", Kind: domain.KindBoolean},
	})
	require.NoError(t, err)
	_, err = f.features.DefineFeature(ctx, domain.DefineRequest{
		ModuleID: "growbiz", TierKey: "free",
		Input: domain.Input{Key: "employees", Kind: domain.KindLimit, Limit: limit(5)},
	})
	require.NoError(t, err)

	tier, err := f.tiers.GetTier(ctx, f.free.ID)
	require.NoError(t, err)
	assert.Equal(t, f.free.Revision+2, tier.Revision)

	defs, err := f.features.ListByTier(ctx, f.free.ID)
	require.NoError(t, err)
	for _, def := range defs {
		assert.Equal(t, tier.Revision, def.Revision, def.Key)
	}
}

func TestDefineFeature_Validation(t *testing.T) {
	f := setupFeatureService(t)
	ctx := context.Background()

	_, err := f.features.DefineFeature(ctx, domain.DefineRequest{
		ModuleID: "growbiz", TierKey: "gold",
		Input: domain.Input{Key: "reports", Kind: domain.KindBoolean},
	})
	assert.ErrorIs(t, err, domain.ErrTierNotFound)

	_, err = f.features.DefineFeature(ctx, domain.DefineRequest{
		ModuleID: "growbiz", TierKey: "free",
		Input: domain.Input{Key: "employees", Kind: domain.KindLimit, Limit: limit(-3)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)

	_, err = f.features.DefineFeature(ctx, domain.DefineRequest{
		ModuleID: "growbiz", TierKey: "free",
		Input: domain.Input{Key: "employees", Kind: "quota"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = f.features.DefineFeature(ctx, domain.DefineRequest{
		TierKey: "free",
		Input:   domain.Input{Key: "employees", Kind: domain.KindBoolean},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidModuleID)
}

func TestListFeatures_OrderedByKey(t *testing.T) {
	f := setupFeatureService(t)
	ctx := context.Background()

	for _, key := range []string{"reports", "employees", "branding"} {
		_, err := f.features.DefineFeature(ctx, domain.DefineRequest{
			ModuleID: "growbiz", TierKey: "free",
			Input: domain.Input{Key: key, Kind: domain.KindBoolean},
		})
		require.NoError(t, err)
	}

	list, err := f.features.ListFeatures(ctx, "growbiz", "free")
	require.NoError(t, err)
	keys := make([]string, 0, len(list))
	for _, def := range list {
		keys = append(keys, def.Key)
	}
	assert.Equal(t, []string{"branding", "employees", "reports"}, keys)
}

func TestFind_AbsentIsNil(t *testing.T) {
	f := setupFeatureService(t)

	def, err := f.features.Find(context.Background(), "growbiz", "free", "payroll")
	require.NoError(t, err)
	assert.Nil(t, def)
}
