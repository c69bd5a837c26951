package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/entitlement/internal/account/domain"
	"github.com/smallbiznis/entitlement/internal/account/repository"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAccountService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    dbtest.Open(t),
		Log:   zap.NewNop(),
		GenID: dbtest.MustNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestRegister(t *testing.T) {
	svc, _ := setupAccountService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, domain.RegisterRequest{Type: " Business "})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.AccountTypeBusiness, created.Type)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestRegister_ExistingIDChangesType(t *testing.T) {
	svc, clk := setupAccountService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, domain.RegisterRequest{ID: 1001, Type: domain.AccountTypeMember})
	require.NoError(t, err)

	clk.Advance(time.Hour)
	updated, err := svc.Register(ctx, domain.RegisterRequest{ID: 1001, Type: domain.AccountTypeClient})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, domain.AccountTypeClient, updated.Type)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := setupAccountService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{Type: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.Get(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Get(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
