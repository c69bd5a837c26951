package logger

import (
	"context"

	"github.com/smallbiznis/entitlement/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLevelFromConfig seeds the adjustable level from the runtime config.
func NewLevelFromConfig(holder *config.RuntimeHolder) (zap.AtomicLevel, error) {
	return NewLevel(holder.Get().LogLevel)
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger, level zap.AtomicLevel, holder *config.RuntimeHolder) {
	holder.OnChange(func(cfg config.RuntimeConfig) {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			log.Warn("ignoring runtime log level", zap.String("level", cfg.LogLevel), zap.Error(err))
			return
		}
		log.Info("log level changed", zap.String("level", cfg.LogLevel))
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			_ = log.Sync()
			return nil
		},
	})
}

// Module wires the global zap logger for the application.
var Module = fx.Module("logger",
	fx.Provide(
		NewLevelFromConfig,
		New,
	),
	fx.Invoke(registerHooks),
)
