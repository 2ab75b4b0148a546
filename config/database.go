package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"products"`
	Password string `env:"PASSWORD"                envDefault:"products"`
	Name     string `env:"NAME"                    envDefault:"products"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig contains TTLs for Redis-backed job state.
type CacheConfig struct {
	// ProgressTTL is the TTL for per-job progress snapshots.
	ProgressTTL time.Duration `env:"CACHE_PROGRESS_TTL" envDefault:"24h"`

	// UploadTTL is the TTL for staged upload bookkeeping entries.
	UploadTTL time.Duration `env:"CACHE_UPLOAD_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.ProgressTTL <= 0 {
		c.ProgressTTL = 24 * time.Hour
	}
	if c.UploadTTL <= 0 {
		c.UploadTTL = 24 * time.Hour
	}
}
