package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig

	// UsageStore selects the usage counter backend: "sql" or "redis".
	UsageStore string

	Catalog CatalogConfig

	ActivationLockTTL time.Duration
	RuntimeConfigPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type CatalogConfig struct {
	Path      string
	CacheSize int
	CacheTTL  time.Duration
}

const (
	UsageStoreSQL   = "sql"
	UsageStoreRedis = "redis"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRuntimeHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		AppName:     v.GetString("APP_SERVICE"),
		AppVersion:  v.GetString("APP_VERSION"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		HTTPAddr:    v.GetString("HTTP_ADDR"),

		DBType:            strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_TYPE"))),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime: v.GetInt("DATABASE_CONN_MAX_IDLE_TIME"),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: strings.TrimSpace(v.GetString("REDIS_PASSWORD")),
			DB:       v.GetInt("REDIS_DB"),
		},

		UsageStore: normalizeUsageStore(v.GetString("USAGE_STORE")),

		Catalog: CatalogConfig{
			Path:      strings.TrimSpace(v.GetString("CATALOG_PATH")),
			CacheSize: v.GetInt("CATALOG_CACHE_SIZE"),
			CacheTTL:  time.Duration(v.GetInt("CATALOG_CACHE_TTL_SECONDS")) * time.Second,
		},

		ActivationLockTTL: time.Duration(v.GetInt("ACTIVATION_LOCK_TTL_SECONDS")) * time.Second,
		RuntimeConfigPath: strings.TrimSpace(v.GetString("RUNTIME_CONFIG_PATH")),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_SERVICE", "entitlement")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "entitlement")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 20)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 300)
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", 60)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("USAGE_STORE", UsageStoreSQL)

	v.SetDefault("CATALOG_CACHE_SIZE", 512)
	v.SetDefault("CATALOG_CACHE_TTL_SECONDS", 60)
	v.SetDefault("ACTIVATION_LOCK_TTL_SECONDS", 10)
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeUsageStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case UsageStoreRedis:
		return UsageStoreRedis
	default:
		return UsageStoreSQL
	}
}
