package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Sentry      SentryConfig   `mapstructure:"sentry"`
	Engine      EngineConfig   `mapstructure:"engine"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver           string `mapstructure:"driver"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	User             string `mapstructure:"user"`
	Password         string `mapstructure:"password"`
	DBName           string `mapstructure:"dbname"`
	SSLMode          string `mapstructure:"sslmode"`
	DatabaseURL      string `mapstructure:"database_url"`
	MaxOpenConns     int    `mapstructure:"max_open_conns"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  string `mapstructure:"conn_max_idle_time"`
	SQLitePath       string `mapstructure:"sqlite_path"`
	ApplicationName  string `mapstructure:"application_name"`
	ConnectTimeout   int    `mapstructure:"connect_timeout"`
	StatementTimeout int    `mapstructure:"statement_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// EngineConfig tunes the capital reconciliation engine.
type EngineConfig struct {
	// DefaultCapital is assigned when a user has no positive capital on record.
	DefaultCapital float64 `mapstructure:"default_capital"`
	// DriftEpsilon is the tolerance before persisted available funds are healed.
	DriftEpsilon float64 `mapstructure:"drift_epsilon"`
	// OutcomeTolerance widens the target/stop bands when classifying a closed trade.
	OutcomeTolerance float64 `mapstructure:"outcome_tolerance"`
	// AllowNegativeAvailable accepts reserved exposure exceeding total capital
	// as a transient state instead of rejecting new trade previews.
	AllowNegativeAvailable bool   `mapstructure:"allow_negative_available"`
	SnapshotTTLSeconds     int    `mapstructure:"snapshot_ttl_seconds"`
	SweepSchedule          string `mapstructure:"sweep_schedule"`
}

// Load reads configuration from config.yaml (optional) and the environment.
// Environment variables use underscores, e.g. DATABASE_HOST, ENGINE_DEFAULT_CAPITAL.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "capitalengine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")
	v.SetDefault("database.sqlite_path", "data/capitalengine.db")
	v.SetDefault("database.application_name", "capitalengine")
	v.SetDefault("database.connect_timeout", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("sentry.traces_sample_rate", 0.1)

	v.SetDefault("engine.default_capital", 100000)
	v.SetDefault("engine.drift_epsilon", 0.01)
	v.SetDefault("engine.outcome_tolerance", 0.10)
	v.SetDefault("engine.allow_negative_available", true)
	v.SetDefault("engine.snapshot_ttl_seconds", 30)
	v.SetDefault("engine.sweep_schedule", "@every 5m")
}

// Validate rejects configuration the engine cannot safely run with.
func (c *Config) Validate() error {
	if c.Engine.DefaultCapital <= 0 {
		return fmt.Errorf("engine.default_capital must be positive, got %v", c.Engine.DefaultCapital)
	}
	if c.Engine.DriftEpsilon < 0 {
		return fmt.Errorf("engine.drift_epsilon must not be negative, got %v", c.Engine.DriftEpsilon)
	}
	if c.Engine.OutcomeTolerance < 0 || c.Engine.OutcomeTolerance >= 1 {
		return fmt.Errorf("engine.outcome_tolerance must be in [0, 1), got %v", c.Engine.OutcomeTolerance)
	}
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}
