package migration

import (
	"fmt"

	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	usagedomain "github.com/smallbiznis/entitlement/internal/usage/domain"
	"github.com/smallbiznis/entitlement/pkg/db"
	"gorm.io/gorm"
)

// Partial unique index: one live subscription per (account, module).
const liveSubscriptionIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_subscriptions_live
ON subscriptions (account_id, module_id)
WHERE status IN ('trialing', 'active', 'past_due')`

// AutoMigrate builds the schema from the models for dialects without SQL
// migrations. MySQL has no partial indexes; there the row lock and the
// activation lock carry the live-subscription invariant alone.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&accountdomain.Account{},
		&moduledomain.Module{},
		&tierdomain.Tier{},
		&featuredomain.FeatureDefinition{},
		&subscriptiondomain.Subscription{},
		&usagedomain.Counter{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if conn.Dialector.Name() == db.DialectMySQL {
		return nil
	}
	if err := conn.Exec(liveSubscriptionIndex).Error; err != nil {
		return fmt.Errorf("create live subscription index: %w", err)
	}
	return nil
}
