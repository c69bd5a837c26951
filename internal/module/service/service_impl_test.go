package service

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/dbtest"
	"github.com/smallbiznis/entitlement/internal/module/domain"
	"github.com/smallbiznis/entitlement/internal/module/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupModuleService(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{
		DB:    dbtest.Open(t),
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestDefine_DerivesSlugAndDedupesTypes(t *testing.T) {
	svc := setupModuleService(t)
	ctx := context.Background()

	module, err := svc.Define(ctx, domain.DefineRequest{
		Name:         "Task Flow",
		Category:     "Personal",
		AccountTypes: []accountdomain.AccountType{"Member", "member", "client"},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-flow", module.ID)
	assert.Equal(t, domain.CategoryPersonal, module.Category)
	assert.ElementsMatch(t, []accountdomain.AccountType{"member", "client"}, []accountdomain.AccountType(module.AccountTypes))
	assert.True(t, module.Permits("MEMBER"))
	assert.False(t, module.Permits(accountdomain.AccountTypeBusiness))
}

func TestDefine_Upserts(t *testing.T) {
	svc := setupModuleService(t)
	ctx := context.Background()

	_, err := svc.Define(ctx, domain.DefineRequest{
		ID: "growbiz", Name: "GrowBiz", Category: domain.CategorySME,
		AccountTypes: []accountdomain.AccountType{accountdomain.AccountTypeBusiness},
	})
	require.NoError(t, err)

	module, err := svc.Define(ctx, domain.DefineRequest{
		ID: "growbiz", Name: "GrowBiz Pro", Category: domain.CategoryEnterprise,
		AccountTypes:         []accountdomain.AccountType{accountdomain.AccountTypeBusiness, accountdomain.AccountTypeClient},
		RequiresSubscription: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "GrowBiz Pro", module.Name)
	assert.True(t, module.RequiresSubscription)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDefine_Validation(t *testing.T) {
	svc := setupModuleService(t)
	ctx := context.Background()
	types := []accountdomain.AccountType{accountdomain.AccountTypeMember}

	_, err := svc.Define(ctx, domain.DefineRequest{ID: "x", Category: domain.CategoryCore, AccountTypes: types})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Define(ctx, domain.DefineRequest{ID: "Not A Slug", Name: "x", Category: domain.CategoryCore, AccountTypes: types})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Define(ctx, domain.DefineRequest{ID: "x", Name: "x", Category: "misc", AccountTypes: types})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)

	_, err = svc.Define(ctx, domain.DefineRequest{ID: "x", Name: "x", Category: domain.CategoryCore})
	assert.ErrorIs(t, err, domain.ErrInvalidAccountType)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
