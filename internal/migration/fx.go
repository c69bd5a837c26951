package migration

import (
	"github.com/smallbiznis/entitlement/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Migrate),
)

// Migrate brings the schema up to date for the connected dialect.
func Migrate(conn *gorm.DB, log *zap.Logger) error {
	if !db.IsPostgres(conn) {
		log.Info("applying schema with auto migrate", zap.String("dialect", conn.Dialector.Name()))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	log.Info("applying embedded migrations")
	return RunMigrations(sqlDB)
}
