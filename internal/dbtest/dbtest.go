// Package dbtest opens migrated sqlite databases for tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/entitlement/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a private shared-cache in-memory database with the full
// schema. One connection keeps concurrent tests serialized inside sqlite.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db := open(t, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), 1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	return migrate(t, db)
}

// OpenFile returns a WAL database file under t.TempDir() that allows conns
// open connections, so concurrent writers race for real.
func OpenFile(t testing.TB, conns int) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "entitlement.db")
	dsn := path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	return migrate(t, open(t, dsn, conns))
}

func open(t testing.TB, dsn string, conns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func migrate(t testing.TB, db *gorm.DB) *gorm.DB {
	t.Helper()
	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func MustNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
