// Package config defines the typed service configuration and its defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/fraudsight/fraudsight/internal/common"
)

// Config is the full service configuration, read once at startup. Changes
// require a restart; nothing re-reads configuration at runtime.
type Config struct {
	Broker  BrokerConfig  `mapstructure:"broker"`
	Store   StoreConfig   `mapstructure:"store"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Model   ModelConfig   `mapstructure:"model"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BrokerConfig configures the event broker connection.
type BrokerConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
	// Enabled gates the consumer side only; publishing stays available so
	// submissions queue up for a later consumer.
	Enabled bool `mapstructure:"enabled"`
}

// StoreConfig configures the durable store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig configures the flagged-transaction cache.
type CacheConfig struct {
	URL string `mapstructure:"url"`
}

// RulesConfig configures the deterministic rule checks.
type RulesConfig struct {
	HighRiskCategories []string `mapstructure:"high_risk_categories"`
	AmountHardMax      float64  `mapstructure:"amount_hard_max"`
	Enabled            bool     `mapstructure:"enabled"`
}

// ModelConfig configures the anomaly model.
type ModelConfig struct {
	Path      string  `mapstructure:"path"`
	Threshold float64 `mapstructure:"threshold"`
}

// APIConfig configures the HTTP server and its admin credential.
type APIConfig struct {
	Addr          string `mapstructure:"addr"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	AdminUser     string `mapstructure:"admin_user"`
	AdminPassword string `mapstructure:"admin_password"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v. Callers layer config file and
// environment on top.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("broker.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.topic", "transactions")
	v.SetDefault("broker.group_id", "fraud-consumer")
	v.SetDefault("broker.enabled", true)

	v.SetDefault("store.path", "~/.local/share/fraudsight/fraudsight.db")

	v.SetDefault("cache.url", "redis://localhost:6379/0")

	v.SetDefault("rules.enabled", true)
	v.SetDefault("rules.amount_hard_max", 1_000_000)
	v.SetDefault("rules.high_risk_categories", []string{"jewelry", "crypto"})

	v.SetDefault("model.path", "~/.local/share/fraudsight/model.json")
	v.SetDefault("model.threshold", -0.2)

	v.SetDefault("api.addr", ":8000")
	v.SetDefault("api.jwt_secret", "devsecret")
	v.SetDefault("api.admin_user", "admin")
	v.SetDefault("api.admin_password", "admin")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load unmarshals and validates the configuration from v. Paths are expanded
// before they come back.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	cfg.Model.Path = ExpandPath(cfg.Model.Path)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Broker.Brokers) == 0 {
		return fmt.Errorf("broker.brokers: %w", common.ErrMissingConfig)
	}
	if c.Broker.Topic == "" {
		return fmt.Errorf("broker.topic: %w", common.ErrMissingConfig)
	}
	if c.Broker.GroupID == "" {
		return fmt.Errorf("broker.group_id: %w", common.ErrMissingConfig)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path: %w", common.ErrMissingConfig)
	}
	if c.Cache.URL == "" {
		return fmt.Errorf("cache.url: %w", common.ErrMissingConfig)
	}
	if c.Model.Path == "" {
		return fmt.Errorf("model.path: %w", common.ErrMissingConfig)
	}
	if c.API.Addr == "" {
		return fmt.Errorf("api.addr: %w", common.ErrMissingConfig)
	}
	if c.API.JWTSecret == "" {
		return fmt.Errorf("api.jwt_secret: %w", common.ErrMissingConfig)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
