package repository

import (
	"context"

	"github.com/smallbiznis/entitlement/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a thin generic store for simple row access. Domain
// repositories with locking or compare-and-swap semantics do not use it.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
