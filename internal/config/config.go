package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Translate TranslateConfig `yaml:"translate" mapstructure:"translate"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the cache database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RegistryConfig configures the ClinicalTrials.gov client.
type RegistryConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	MaxResults  int    `yaml:"max_results" mapstructure:"max_results"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// TranslateConfig configures the plain-language translation phase.
type TranslateConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens   int `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MatchConfig holds the relevance filter's bucket caps. The values are
// empirically tuned, hence configurable rather than hardcoded.
type MatchConfig struct {
	NearbyCap     int `yaml:"nearby_cap" mapstructure:"nearby_cap"`
	RecruitingCap int `yaml:"recruiting_cap" mapstructure:"recruiting_cap"`
	ActiveCap     int `yaml:"active_cap" mapstructure:"active_cap"`
	BackfillMin   int `yaml:"backfill_min" mapstructure:"backfill_min"`
	BackfillCap   int `yaml:"backfill_cap" mapstructure:"backfill_cap"`
}

// CacheConfig configures result caching.
type CacheConfig struct {
	TTLHours int  `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Disabled bool `yaml:"disabled" mapstructure:"disabled"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLINIMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "clinimatch.db")
	v.SetDefault("registry.base_url", "https://clinicaltrials.gov/api/v2")
	v.SetDefault("registry.user_agent", "CliniMatch/1.0 (Clinical Trial Matching Service)")
	v.SetDefault("registry.timeout_secs", 30)
	v.SetDefault("registry.max_retries", 3)
	v.SetDefault("registry.max_results", 100)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("translate.workers", 5)
	v.SetDefault("translate.timeout_secs", 30)
	v.SetDefault("translate.max_tokens", 1000)
	v.SetDefault("match.nearby_cap", 20)
	v.SetDefault("match.recruiting_cap", 30)
	v.SetDefault("match.active_cap", 15)
	v.SetDefault("match.backfill_min", 10)
	v.SetDefault("match.backfill_cap", 15)
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
