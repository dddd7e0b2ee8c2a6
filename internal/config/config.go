package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/openmedicaid/claimlens/internal/aggregates"
	"github.com/openmedicaid/claimlens/internal/insight"
	"github.com/openmedicaid/claimlens/internal/outlier"
)

// Aggregate source types.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// Response cache types.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PageSize        int           `mapstructure:"page_size"`
}

// SourceConfig selects where aggregate snapshots come from. An empty
// FilePath serves the embedded sample snapshot.
type SourceConfig struct {
	Type        string        `mapstructure:"type"`
	FilePath    string        `mapstructure:"file_path"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	MaxConns    int32         `mapstructure:"max_conns"`
	SlowQuery   time.Duration `mapstructure:"slow_query"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// AnalysisConfig holds the outlier policy, chart shaping, insight rule
// thresholds and the refresh schedule.
type AnalysisConfig struct {
	OutlierThreshold float64            `mapstructure:"outlier_threshold"`
	Tiers            []outlier.Tier     `mapstructure:"tiers"`
	CatalogFile      string             `mapstructure:"catalog_file"`
	BeneficiaryRatio float64            `mapstructure:"beneficiary_ratio"`
	ValidStateCodes  []string           `mapstructure:"valid_state_codes"`
	RefreshSchedule  string             `mapstructure:"refresh_schedule"`
	RefreshTimeout   time.Duration      `mapstructure:"refresh_timeout"`
	Rules            insight.RuleConfig `mapstructure:"rules"`
}

// StorageConfig holds report history configuration
type StorageConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	MaxReports int    `mapstructure:"max_reports"`
	DBPath     string `mapstructure:"db_path"`
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and CLAIMLENS_* environment
// variables, e.g. CLAIMLENS_SOURCE_POSTGRES_DSN for source.postgres_dsn.
func Load(path string) (*Config, error) {
	v := viper.New()

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("CLAIMLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) error {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.page_size", 25)

	// Source defaults
	v.SetDefault("source.type", SourceFile)
	v.SetDefault("source.file_path", "")
	v.SetDefault("source.postgres_dsn", "")
	v.SetDefault("source.max_conns", 4)
	v.SetDefault("source.slow_query", "2s")
	v.SetDefault("source.url", "")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.retry_delay", "1s")

	// Analysis defaults
	v.SetDefault("analysis.outlier_threshold", outlier.DefaultThreshold)
	v.SetDefault("analysis.catalog_file", "")
	v.SetDefault("analysis.beneficiary_ratio", aggregates.BeneficiaryEstimateRatio)
	v.SetDefault("analysis.valid_state_codes", aggregates.DefaultValidStateCodes)
	v.SetDefault("analysis.refresh_schedule", "@every 1h")
	v.SetDefault("analysis.refresh_timeout", "5m")

	// Every rule threshold gets its own key so environment overrides work.
	rules, err := json.Marshal(insight.DefaultRuleConfig())
	if err != nil {
		return fmt.Errorf("failed to encode rule defaults: %w", err)
	}
	var ruleDefaults map[string]interface{}
	if err := json.Unmarshal(rules, &ruleDefaults); err != nil {
		return fmt.Errorf("failed to decode rule defaults: %w", err)
	}
	for key, value := range ruleDefaults {
		v.SetDefault("analysis.rules."+key, value)
	}

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.max_reports", 50)
	v.SetDefault("storage.db_path", "./data/claimlens.db")

	// Cache defaults
	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "claimlens:")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.PageSize < 1 {
		return fmt.Errorf("server.page_size must be at least 1")
	}

	// Validate Source config
	switch c.Source.Type {
	case SourceFile:
	case SourcePostgres:
		if c.Source.PostgresDSN == "" {
			return fmt.Errorf("source.postgres_dsn is required when source.type is postgres")
		}
		if c.Source.MaxConns < 1 {
			return fmt.Errorf("source.max_conns must be at least 1")
		}
	case SourceHTTP:
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required when source.type is http")
		}
		if c.Source.Timeout <= 0 {
			return fmt.Errorf("source.timeout must be positive")
		}
		if c.Source.MaxRetries < 1 {
			return fmt.Errorf("source.max_retries must be at least 1")
		}
	default:
		return fmt.Errorf("source.type must be one of: file, postgres, http")
	}

	// Validate Analysis config
	if err := c.OutlierConfig().Validate(); err != nil {
		return fmt.Errorf("analysis outlier policy: %w", err)
	}
	if c.Analysis.BeneficiaryRatio <= 0 || c.Analysis.BeneficiaryRatio > 1 {
		return fmt.Errorf("analysis.beneficiary_ratio must be in (0, 1]")
	}
	if len(c.Analysis.ValidStateCodes) == 0 {
		return fmt.Errorf("analysis.valid_state_codes must contain at least one code")
	}
	if c.Analysis.RefreshSchedule == "" {
		return fmt.Errorf("analysis.refresh_schedule is required")
	}
	if c.Analysis.RefreshTimeout < time.Second {
		return fmt.Errorf("analysis.refresh_timeout must be at least 1 second")
	}
	if err := c.Analysis.Rules.Validate(); err != nil {
		return fmt.Errorf("analysis.rules: %w", err)
	}

	// Validate Storage config
	if c.Storage.Enabled {
		if c.Storage.MaxReports < 1 {
			return fmt.Errorf("storage.max_reports must be at least 1")
		}
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required")
		}
	}

	// Validate Cache config
	switch c.Cache.Type {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required when cache.type is redis")
		}
	default:
		return fmt.Errorf("cache.type must be one of: none, memory, redis")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// OutlierConfig returns the classification policy: the configured threshold
// and tier table over the default analogy bands. No tiers means the default
// six-level table.
func (c *Config) OutlierConfig() outlier.Config {
	cfg := outlier.DefaultConfig()
	cfg.Threshold = c.Analysis.OutlierThreshold
	if len(c.Analysis.Tiers) > 0 {
		cfg.Tiers = c.Analysis.Tiers
	}
	return cfg
}

// DeriveOptions returns the chart shaping options.
func (c *Config) DeriveOptions() aggregates.DeriveOptions {
	opts := aggregates.DefaultDeriveOptions()
	opts.BeneficiaryEstimateRatio = c.Analysis.BeneficiaryRatio
	opts.ValidStateCodes = c.Analysis.ValidStateCodes
	return opts
}
