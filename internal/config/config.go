package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ATMLEDGER_DATABASE_HOST.
const EnvPrefix = "ATMLEDGER"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql, postgres or sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	DSN             string        `mapstructure:"dsn"` // overrides the fields above when set
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	ConnectRetries  int           `mapstructure:"connect_retries"`
}

type RedisConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Movements string `mapstructure:"movements"`
}

type LedgerConfig struct {
	NodeID              int64 `mapstructure:"node_id"`
	AccountNumberLength int   `mapstructure:"account_number_length"`
	PinLength           int   `mapstructure:"pin_length"`
	PinHashCost         int   `mapstructure:"pin_hash_cost"`
	HistoryDefaultLimit int   `mapstructure:"history_default_limit"`
	HistoryMaxLimit     int   `mapstructure:"history_max_limit"`
}

type OutboxConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	MaxRetry  int           `mapstructure:"max_retry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "atm_ledger")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.connect_retries", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.movements", "ledger.movements")

	v.SetDefault("ledger.node_id", 1)
	v.SetDefault("ledger.account_number_length", 9)
	v.SetDefault("ledger.pin_length", 4)
	v.SetDefault("ledger.pin_hash_cost", 10)
	v.SetDefault("ledger.history_default_limit", 10)
	v.SetDefault("ledger.history_max_limit", 100)

	v.SetDefault("outbox.interval", 5*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retry", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads an optional .env file, then the YAML file at path, then
// ATMLEDGER_* environment overrides. A missing YAML file is not an error;
// defaults and environment still apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			slog.Warn("config file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the ledger cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql, postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		return errors.New("database.dsn is required for sqlite")
	}
	if c.Ledger.AccountNumberLength <= 0 {
		return errors.New("ledger.account_number_length must be positive")
	}
	if c.Ledger.PinLength <= 0 {
		return errors.New("ledger.pin_length must be positive")
	}
	if c.Ledger.HistoryDefaultLimit <= 0 || c.Ledger.HistoryMaxLimit < c.Ledger.HistoryDefaultLimit {
		return errors.New("ledger.history_default_limit must be positive and not above history_max_limit")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
