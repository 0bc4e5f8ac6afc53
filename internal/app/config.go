package app

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	// StorageQuotaBytes models a browser-style storage quota. It is an
	// accounting estimate, not a platform-enforced limit.
	StorageQuotaBytes int64 `envconfig:"STORAGE_QUOTA_BYTES" default:"5242880"`

	BackupLimit         int     `envconfig:"BACKUP_LIMIT" default:"20"`
	ReorderLevelDefault float64 `envconfig:"REORDER_LEVEL_DEFAULT" default:"10"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
