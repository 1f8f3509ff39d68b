// Package config loads the service configuration from YAML, .env and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"PriceCast/pkg/logger"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
	TwelveData  TwelveDataConfig `yaml:"twelvedata"`
	Model       ModelConfig      `yaml:"model"`
	Forecast    ForecastConfig   `yaml:"forecast"`
	Cache       CacheConfig      `yaml:"cache"`
	Redis       RedisConfig      `yaml:"redis"`
	Queue       QueueConfig      `yaml:"queue"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Bars        BarsConfig       `yaml:"bars"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Postgres    PostgresConfig   `yaml:"postgres"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
}

type LoggingConfig struct {
	logger.Config `yaml:",inline"`
	Collect       struct {
		Enabled       bool          `yaml:"enabled"`
		Topic         string        `yaml:"topic" default:"pricecast.logs"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
		Threshold     int           `yaml:"threshold" default:"100"`
	} `yaml:"collect"`
}

// SetDefaults fills the embedded logger settings, which carry no default tags.
func (l *LoggingConfig) SetDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
}

type TwelveDataConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url" default:"https://api.twelvedata.com"`
	Timeout           time.Duration `yaml:"timeout" default:"15s"`
	RequestsPerMinute int           `yaml:"requests_per_minute" default:"8"`
	Burst             int           `yaml:"burst" default:"8"`
}

// ModelConfig sets the network architecture and training defaults.
type ModelConfig struct {
	Dir           string  `yaml:"dir" default:"models"`
	Window        int     `yaml:"window" default:"60"`
	Units         []int   `yaml:"units" default:"[50,50]"`
	Dropout       float64 `yaml:"dropout" default:"0.2"`
	LearningRate  float64 `yaml:"learning_rate" default:"0.001"`
	Seed          int64   `yaml:"seed" default:"42"`
	Epochs        int     `yaml:"epochs" default:"25"`
	BatchSize     int     `yaml:"batch_size" default:"32"`
	TrainFraction float64 `yaml:"train_fraction" default:"0.8"`
}

type ForecastConfig struct {
	MaxSteps int `yaml:"max_steps" default:"365"`
}

type CacheConfig struct {
	TTL          time.Duration `yaml:"ttl" default:"5m"`
	MemorySize   int           `yaml:"memory_size" default:"1000"`
	MaxArtifacts int           `yaml:"max_artifacts" default:"32"`
	LockTTL      time.Duration `yaml:"lock_ttl" default:"2h"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"pricecast"`
	PoolSize int    `yaml:"pool_size" default:"10"`
}

type QueueConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers" default:"1"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
	JobTimeout time.Duration `yaml:"job_timeout" default:"2h"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"pricecast.events"`
	RequiredAcks int           `yaml:"required_acks" default:"1"`
	Compression  string        `yaml:"compression" default:"snappy"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"100ms"`
	Async        bool          `yaml:"async"`

	// AutoCreateTopic lets the broker create missing topics on first write.
	AutoCreateTopic bool `yaml:"auto_create_topic"`
}

// BarsConfig selects where fetched training history is kept.
type BarsConfig struct {
	Backend    string `yaml:"backend" default:"csv"`
	Dir        string `yaml:"dir" default:"data"`
	SQLitePath string `yaml:"sqlite_path" default:"data/bars.db"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"pricecast"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" default:"5432"`
	User            string        `yaml:"user" default:"postgres"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database" default:"pricecast"`
	SSLMode         string        `yaml:"sslmode" default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"5s"`
}

// Load reads path (optional when empty), fills defaults, loads .env if
// present, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// envOverrides are the environment variables that win over the file.
type envOverrides struct {
	APIKey           string `envconfig:"TWELVE_DATA_API_KEY"`
	ModelDir         string `envconfig:"MODEL_DIR"`
	BarsBackend      string `envconfig:"BARS_BACKEND"`
	BarsDir          string `envconfig:"BARS_DIR"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
	Environment      string `envconfig:"ENVIRONMENT"`
	ClickHouseHost   string `envconfig:"CLICKHOUSE_HOST"`
	PostgresHost     string `envconfig:"POSTGRES_HOST"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	RedisAddr        string `envconfig:"REDIS_ADDR"`
	KafkaBrokers     string `envconfig:"KAFKA_BROKERS"`
	ServerPort       string `envconfig:"SERVER_PORT"`
}

func (c *Config) applyEnv() error {
	var e envOverrides
	if err := envconfig.Process("", &e); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return c.apply(e)
}

func (c *Config) apply(e envOverrides) error {
	str := func(v string, dst *string) {
		if v != "" {
			*dst = v
		}
	}
	str(e.APIKey, &c.TwelveData.APIKey)
	str(e.ModelDir, &c.Model.Dir)
	str(e.BarsBackend, &c.Bars.Backend)
	str(e.BarsDir, &c.Bars.Dir)
	str(e.LogLevel, &c.Logging.Level)
	str(e.Environment, &c.Environment)
	str(e.ClickHouseHost, &c.ClickHouse.Host)
	str(e.PostgresHost, &c.Postgres.Host)
	str(e.PostgresPassword, &c.Postgres.Password)

	if e.RedisAddr != "" {
		c.Redis.Addr = e.RedisAddr
		c.Redis.Enabled = true
	}
	if e.KafkaBrokers != "" {
		c.Kafka.Brokers = splitList(e.KafkaBrokers)
		c.Kafka.Enabled = true
	}
	if e.ServerPort != "" {
		port, err := strconv.Atoi(e.ServerPort)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Forecast.MaxSteps < 1 {
		return fmt.Errorf("forecast.max_steps must be >= 1, got %d", c.Forecast.MaxSteps)
	}
	if c.Model.Window < 1 {
		return fmt.Errorf("model.window must be >= 1, got %d", c.Model.Window)
	}
	if c.Model.Dir == "" {
		return errors.New("model.dir is required")
	}
	if c.Model.TrainFraction <= 0 || c.Model.TrainFraction > 1 {
		return fmt.Errorf("model.train_fraction must be in (0,1], got %v", c.Model.TrainFraction)
	}
	switch c.Bars.Backend {
	case "csv", "parquet", "sqlite":
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return errors.New("clickhouse.host is required for bars.backend clickhouse")
		}
	case "postgres":
		if c.Postgres.Host == "" {
			return errors.New("postgres.host is required for bars.backend postgres")
		}
	default:
		return fmt.Errorf("bars.backend must be csv, parquet, sqlite, clickhouse or postgres, got %q", c.Bars.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collect.Enabled && !c.Kafka.Enabled {
		return errors.New("logging.collect requires kafka")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return errors.New("queue requires redis")
	}
	return nil
}
