package usage

import (
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/usage/domain"
	"github.com/smallbiznis/entitlement/internal/usage/service"
	"github.com/smallbiznis/entitlement/internal/usage/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("usage.service",
	fx.Provide(NewStore),
	fx.Provide(service.New),
)

type StoreParams struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Redis *redis.Client `optional:"true"`
	Clock clock.Clock
	Log   *zap.Logger
}

// NewStore picks the counter backend named by USAGE_STORE.
func NewStore(p StoreParams) (domain.Store, error) {
	switch p.Cfg.UsageStore {
	case config.UsageStoreRedis:
		if p.Redis == nil {
			return nil, errors.New("usage store redis requires REDIS_ADDR")
		}
		p.Log.Info("usage counters backed by redis")
		return store.NewRedisStore(p.Redis, p.Clock), nil
	default:
		p.Log.Info("usage counters backed by sql")
		return store.NewSQLStore(p.DB, p.Clock), nil
	}
}
