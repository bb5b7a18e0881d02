// Package config loads application configuration from config.yaml, .env,
// and ENERGYSTATS_* environment variables, and initializes the global
// zap logger.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ember    EmberConfig    `yaml:"ember" mapstructure:"ember"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// EmberConfig holds Ember API settings. The API key is required for
// extraction but not for transform-only runs, so it is validated at the
// client boundary rather than here.
type EmberConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url" validate:"url"`
	StartDate   string  `yaml:"start_date" mapstructure:"start_date"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gt=0"`
}

// PipelineConfig configures transform behavior.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// Optional .env in the working directory, matching how the extraction
	// credentials are distributed.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENERGYSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "energy-stats.db")
	v.SetDefault("ember.base_url", "https://api.ember-energy.org")
	v.SetDefault("ember.start_date", "2000-01")
	v.SetDefault("ember.timeout_secs", 30)
	v.SetDefault("ember.max_retries", 3)
	v.SetDefault("ember.rate_per_sec", 5)
	v.SetDefault("pipeline.concurrency", 4)
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

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: validate")
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
