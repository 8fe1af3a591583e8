// Package config loads application configuration from config.yaml and
// GEOSAMPLE_-prefixed environment variables, and installs the global
// logger.
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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Sampling SamplingConfig `yaml:"sampling" mapstructure:"sampling"`
	Summary  SummaryConfig  `yaml:"summary" mapstructure:"summary"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SamplingConfig holds defaults applied when a CLI or API request leaves a
// sampling parameter unset.
type SamplingConfig struct {
	Iterations int   `yaml:"iterations" mapstructure:"iterations"`
	Workers    int   `yaml:"workers" mapstructure:"workers"`
	Seed       int64 `yaml:"seed" mapstructure:"seed"`
}

// SummaryConfig holds defaults for diversity summaries.
type SummaryConfig struct {
	ClassicalQuota int     `yaml:"classical_quota" mapstructure:"classical_quota"`
	CoverageQuota  float64 `yaml:"coverage_quota" mapstructure:"coverage_quota"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
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
	v.SetEnvPrefix("GEOSAMPLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geosample.db")
	v.SetDefault("sampling.iterations", 100)
	v.SetDefault("sampling.workers", 0) // 0 = NumCPU
	v.SetDefault("sampling.seed", 1)
	v.SetDefault("summary.workers", 0)
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

// Validate checks the fields the given mode depends on. Modes: "sample"
// (CLI sampling commands), "store" (commands that persist), "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}
	checkSampling := func() {
		if c.Sampling.Iterations < 1 {
			problems = append(problems, "sampling.iterations must be >= 1")
		}
		if c.Sampling.Workers < 0 {
			problems = append(problems, "sampling.workers must be >= 0")
		}
	}

	switch mode {
	case "sample":
		checkSampling()
	case "store":
		checkStore()
	case "serve":
		checkStore()
		checkSampling()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
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
