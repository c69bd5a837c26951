package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("USAGE_STORE", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	assert.Equal(t, "entitlement", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, UsageStoreSQL, cfg.UsageStore)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 512, cfg.Catalog.CacheSize)
	assert.Equal(t, time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.ActivationLockTTL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DATABASE_TYPE", " SQLite ")
	t.Setenv("USAGE_STORE", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CATALOG_PATH", "catalog.yml")
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "5")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, UsageStoreRedis, cfg.UsageStore)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "catalog.yml", cfg.Catalog.Path)
	assert.Equal(t, 5*time.Second, cfg.Catalog.CacheTTL)
}

func TestLoad_UnknownUsageStoreFallsBackToSQL(t *testing.T) {
	t.Setenv("USAGE_STORE", "memcached")
	assert.Equal(t, UsageStoreSQL, Load().UsageStore)
}

func TestNewRuntimeHolder_WithoutFile(t *testing.T) {
	holder, err := NewRuntimeHolder(Config{LogLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "warn", holder.Get().LogLevel)
}

func TestNewRuntimeHolder_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: DEBUG\n"), 0o600))

	holder, err := NewRuntimeHolder(Config{LogLevel: "info", RuntimeConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "debug", holder.Get().LogLevel)

	var seen []string
	holder.OnChange(func(cfg RuntimeConfig) { seen = append(seen, cfg.LogLevel) })
	holder.set(RuntimeConfig{LogLevel: "error"})
	assert.Equal(t, []string{"error"}, seen)
	assert.Equal(t, "error", holder.Get().LogLevel)
}

func TestNewRuntimeHolder_RejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: loud\n"), 0o600))

	_, err := NewRuntimeHolder(Config{LogLevel: "info", RuntimeConfigPath: path})
	assert.Error(t, err)
}
