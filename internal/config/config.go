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
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	Generator GeneratorConfig `yaml:"generator" mapstructure:"generator"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EngineConfig configures the skill runtime.
type EngineConfig struct {
	// LowConfidenceThreshold applies when a skill's DSL fallback block does
	// not set its own threshold.
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold" mapstructure:"low_confidence_threshold"`
}

// BenchmarkConfig holds evaluation run defaults.
type BenchmarkConfig struct {
	Tolerance       float64 `yaml:"tolerance" mapstructure:"tolerance"`
	PartialMatch    bool    `yaml:"partial_match" mapstructure:"partial_match"`
	SkipSkillMatch  bool    `yaml:"skip_skill_match" mapstructure:"skip_skill_match"`
	CheckpointEvery int     `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// GeneratorConfig configures benchmark data generation.
type GeneratorConfig struct {
	// Seed fixes the random source for reproducible batches; 0 means
	// time-seeded.
	Seed int64 `yaml:"seed" mapstructure:"seed"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
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
	v.SetEnvPrefix("SKILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "skill-engine.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("engine.low_confidence_threshold", 0.6)
	v.SetDefault("benchmark.tolerance", 0.05)
	v.SetDefault("benchmark.partial_match", true)
	v.SetDefault("benchmark.skip_skill_match", false)
	v.SetDefault("benchmark.checkpoint_every", 10)
	v.SetDefault("generator.seed", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 20)
	v.SetDefault("server.rate_burst", 40)
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
