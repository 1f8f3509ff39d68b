package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creasty/defaults"
)

func defaultConfig(t *testing.T) Config {
	t.Helper()
	var c Config
	if err := defaults.Set(&c); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	return c
}

func TestDefaults(t *testing.T) {
	c := defaultConfig(t)
	if c.Server.Port != 8000 || c.Forecast.MaxSteps != 365 || c.Cache.MaxArtifacts != 32 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.Model.Window != 60 || len(c.Model.Units) != 2 || c.Model.Units[0] != 50 {
		t.Fatalf("unexpected model defaults %+v", c.Model)
	}
	if c.Server.WriteTimeout != 120*time.Second || c.Cache.LockTTL != 2*time.Hour {
		t.Fatalf("unexpected durations %+v %+v", c.Server, c.Cache)
	}
	if c.Kafka.BatchSize != 100 || c.Kafka.BatchTimeout != 100*time.Millisecond || c.Kafka.AutoCreateTopic {
		t.Fatalf("unexpected kafka defaults %+v", c.Kafka)
	}
	if c.Logging.Level != "info" || c.Logging.Format != "json" {
		t.Fatalf("logger defaults not applied: %+v", c.Logging.Config)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFileKeepsExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  port: 9100\nmodel:\n  dir: /tmp/m\n  epochs: 3\nbars:\n  backend: parquet\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SERVER_PORT", "")
	t.Setenv("MODEL_DIR", "")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9100 || c.Model.Dir != "/tmp/m" || c.Model.Epochs != 3 {
		t.Fatalf("file values lost: %+v %+v", c.Server, c.Model)
	}
	if c.Model.BatchSize != 32 || c.Bars.Backend != "parquet" || c.Logging.Level != "debug" {
		t.Fatalf("unexpected merge %+v %+v", c.Model, c.Bars)
	}
}

func TestEnvOverrides(t *testing.T) {
	c := defaultConfig(t)
	e := envOverrides{
		APIKey:       "k",
		ModelDir:     "/models",
		RedisAddr:    "redis:6379",
		KafkaBrokers: "a:9092, b:9092",
		ServerPort:   "9000",
	}
	if err := c.apply(e); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.TwelveData.APIKey != "k" || c.Model.Dir != "/models" || c.Server.Port != 9000 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" {
		t.Fatalf("redis override: %+v", c.Redis)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("kafka override: %+v", c.Kafka)
	}

	e.ServerPort = "eighty"
	if err := c.apply(e); err == nil {
		t.Fatalf("expected error for bad port")
	}
}

func TestApplyEnvReadsProcessEnvironment(t *testing.T) {
	t.Setenv("TWELVE_DATA_API_KEY", "from-env")
	t.Setenv("SERVER_PORT", "")
	c := defaultConfig(t)
	if err := c.applyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if c.TwelveData.APIKey != "from-env" || c.Server.Port != 8000 {
		t.Fatalf("unexpected %q %d", c.TwelveData.APIKey, c.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"port":            func(c *Config) { c.Server.Port = 0 },
		"max steps":       func(c *Config) { c.Forecast.MaxSteps = 0 },
		"backend":         func(c *Config) { c.Bars.Backend = "mysql" },
		"clickhouse host": func(c *Config) { c.Bars.Backend = "clickhouse" },
		"postgres host":   func(c *Config) { c.Bars.Backend = "postgres" },
		"kafka brokers":   func(c *Config) { c.Kafka.Enabled = true },
		"queue redis":     func(c *Config) { c.Queue.Enabled = true },
		"train fraction":  func(c *Config) { c.Model.TrainFraction = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := defaultConfig(t)
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsFileAndSQLiteBackends(t *testing.T) {
	for _, backend := range []string{"csv", "parquet", "sqlite"} {
		c := defaultConfig(t)
		c.Bars.Backend = backend
		if err := c.Validate(); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
	}
}
