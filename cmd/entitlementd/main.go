package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/account"
	"github.com/smallbiznis/entitlement/internal/cache"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/entitlement"
	"github.com/smallbiznis/entitlement/internal/feature"
	"github.com/smallbiznis/entitlement/internal/lock"
	"github.com/smallbiznis/entitlement/internal/logger"
	"github.com/smallbiznis/entitlement/internal/migration"
	"github.com/smallbiznis/entitlement/internal/module"
	"github.com/smallbiznis/entitlement/internal/observability/metrics"
	"github.com/smallbiznis/entitlement/internal/subscription"
	"github.com/smallbiznis/entitlement/internal/tier"
	"github.com/smallbiznis/entitlement/internal/usage"
	"github.com/smallbiznis/entitlement/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "entitlementd",
	Short:         "Module entitlement service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// coreModules wires storage and the domain services shared by every
// command that touches the database.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		logger.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		lock.Module,

		account.Module,
		module.Module,
		feature.Module,
		tier.Module,
		usage.Module,
		subscription.Module,
	)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// resolverModules adds the entitlement resolver with its cache and metrics.
func resolverModules() fx.Option {
	return fx.Options(
		metrics.Module,
		cache.Module,
		entitlement.Module,
	)
}
