package catalog

import (
	"context"

	"github.com/smallbiznis/entitlement/internal/config"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("catalog",
	fx.Provide(NewImporter),
	fx.Invoke(Bootstrap),
)

// Bootstrap imports the configured catalog file, if any, and then refuses
// to start when a module lacks exactly one default tier.
func Bootstrap(lc fx.Lifecycle, cfg config.Config, importer *Importer, tiers tierdomain.Service, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Catalog.Path != "" {
				if _, err := importer.ImportFile(ctx, cfg.Catalog.Path); err != nil {
					return err
				}
			}
			if err := tiers.ValidateCatalog(ctx); err != nil {
				log.Error("catalog is not servable", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
