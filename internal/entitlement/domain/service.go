package domain

import (
	"context"
	"errors"
	"fmt"
)

type Service interface {
	// Check answers "may the account consume one more unit". It has no side
	// effects.
	Check(ctx context.Context, q Query) (*Entitlement, error)
	// Peek reports the current standing without implying permission to
	// increment.
	Peek(ctx context.Context, q Query) (*Entitlement, error)
	// Consume atomically verifies remaining >= amount and increments the
	// counter, returning the post-increment entitlement.
	Consume(ctx context.Context, q Query, amount int64) (*Entitlement, error)
	// Release gives back amount units of a limit feature.
	Release(ctx context.Context, q Query, amount int64) (*Entitlement, error)
}

var (
	ErrInvalidQuery      = errors.New("invalid_entitlement_query")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrFeatureNotGranted = errors.New("feature_not_granted")
	ErrLimitExceeded     = errors.New("limit_exceeded")
)

// LimitExceededError is returned by Consume when the increment would pass
// the limit. The counter is left unchanged.
type LimitExceededError struct {
	ModuleID   string
	FeatureKey string
	Limit      int64
	Used       int64
	Requested  int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s: %s/%s used %d of %d, requested %d",
		ErrLimitExceeded, e.ModuleID, e.FeatureKey, e.Used, e.Limit, e.Requested)
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }
