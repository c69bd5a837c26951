package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
)

// Store is the counter backing store. Add is a single atomic
// read-modify-write per key.
type Store interface {
	Current(ctx context.Context, key Key, cadence featuredomain.ResetCadence) (int64, error)
	// Add applies delta after the lazy reset. When delta is positive and
	// limit is set, a result above *limit fails with *LimitReachedError and
	// leaves the counter unchanged. Results below zero floor at zero.
	Add(ctx context.Context, key Key, cadence featuredomain.ResetCadence, delta int64, limit *int64) (int64, error)
	ResetModule(ctx context.Context, accountID snowflake.ID, moduleID string) error
}

type Service interface {
	Current(ctx context.Context, key Key, cadence featuredomain.ResetCadence) (int64, error)
	Increment(ctx context.Context, key Key, cadence featuredomain.ResetCadence, amount int64) (int64, error)
	// IncrementWithin increments only while the result stays within limit.
	IncrementWithin(ctx context.Context, key Key, cadence featuredomain.ResetCadence, amount int64, limit *int64) (int64, error)
	Decrement(ctx context.Context, key Key, cadence featuredomain.ResetCadence, amount int64) (int64, error)
	ResetModule(ctx context.Context, accountID snowflake.ID, moduleID string) error
}

var (
	ErrInvalidKey    = errors.New("invalid_usage_key")
	ErrInvalidAmount = errors.New("invalid_usage_amount")
	ErrLimitReached  = errors.New("usage_limit_reached")
	ErrContention    = errors.New("usage_counter_contention")
)

// LimitReachedError carries the counter state that blocked an increment.
type LimitReachedError struct {
	Limit int64
	Used  int64
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("%s: used %d of %d", ErrLimitReached, e.Used, e.Limit)
}

func (e *LimitReachedError) Unwrap() error { return ErrLimitReached }
