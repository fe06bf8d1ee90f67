package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	AI          AIConfig          `mapstructure:"ai"`
	Sync        SyncConfig        `mapstructure:"sync"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Component string `mapstructure:"component"`
	Source    bool   `mapstructure:"source"`
}

type DBConfig struct {
	Driver   string `mapstructure:"driver"` // "mysql" or "sqlite"
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"` // sqlite file, ":memory:" allowed
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MarketplaceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ProfileTimeout time.Duration `mapstructure:"profile_timeout"`
	PageSize       int           `mapstructure:"page_size"`
}

type AIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type SyncConfig struct {
	CacheMaxAge       time.Duration `mapstructure:"cache_max_age"`
	HideDelay         time.Duration `mapstructure:"hide_delay"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
	ProgressGrace     time.Duration `mapstructure:"progress_grace"`
}

// Load reads configuration from an optional YAML file and the environment.
//
// Behavior:
//  1. Defaults are applied first.
//  2. If path is non-empty the file must exist and parse; if path is empty,
//     "config.yaml" in the working directory is used when present.
//  3. Environment variables override everything, prefixed WARDEN_ with dots
//     replaced by underscores (e.g. WARDEN_DB_HOST, WARDEN_AI_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.env", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.component", "warden")
	v.SetDefault("log.source", false)

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.user", "root")
	v.SetDefault("db.password", "root")
	v.SetDefault("db.name", "warden")
	v.SetDefault("db.path", "warden.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("marketplace.base_url", "https://app.respondent.io")
	v.SetDefault("marketplace.timeout", "30s")
	v.SetDefault("marketplace.profile_timeout", "10s")
	v.SetDefault("marketplace.page_size", 50)

	v.SetDefault("ai.base_url", "https://api.x.ai/v1")
	v.SetDefault("ai.model", "grok-4-1-fast-reasoning")
	v.SetDefault("ai.max_tokens", 600)
	v.SetDefault("ai.temperature", 0.3)

	v.SetDefault("sync.cache_max_age", "30m")
	v.SetDefault("sync.hide_delay", "100ms")
	v.SetDefault("sync.refresh_interval", "30m")
	v.SetDefault("sync.keepalive_interval", "6h")
	v.SetDefault("sync.progress_grace", "60s")

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed aliases for secrets commonly set by deploy tooling.
	_ = v.BindEnv("ai.api_key", "WARDEN_AI_API_KEY", "GROK_API_KEY")
	_ = v.BindEnv("db.dsn", "WARDEN_DB_DSN", "MYSQL_DSN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DB.DSN == "" && cfg.DB.Driver == "mysql" {
		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	return &cfg, nil
}
