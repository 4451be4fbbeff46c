// Package config loads canvass settings from an optional YAML file and
// applies CANVASS_* environment overrides on top of the defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LicenseKeyEnv names the environment variable holding the vendor credential.
const LicenseKeyEnv = "MELISSA_LICENSE_KEY"

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Redis    RedisConfig    `yaml:"redis"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Explorer ExplorerConfig `yaml:"explorer"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// ConsumerConfig controls calls to the consumer-records vendor. RateLimit
// caps outbound calls per second; zero or less disables it.
type ConsumerConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	LicenseKey    string        `yaml:"-"`
	LookupRecords int           `yaml:"lookupRecords"`
	ListRecords   int           `yaml:"listRecords"`
	Columns       []string      `yaml:"columns"`
	Timeout       time.Duration `yaml:"timeout"`
	RateLimit     float64       `yaml:"rateLimit"`
	Burst         int           `yaml:"burst"`
}

// RedisConfig holds the optional vendor-response cache settings. An empty
// Addr disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// MySQLConfig holds the optional annotation database settings. An empty Host
// keeps annotations in memory.
type MySQLConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Name     string `yaml:"name"`
}

const dsnFmt = "%s:%s@tcp(%s)/%s?parseTime=true"

// DSN returns a go-sql-driver/mysql data source name.
func (m MySQLConfig) DSN() string {
	return fmt.Sprintf(dsnFmt, m.User, m.Password, m.Host, m.Name)
}

// Enabled reports whether a MySQL host was configured.
func (m MySQLConfig) Enabled() bool {
	return m.Host != ""
}

// ExplorerConfig controls explorer sessions. Sessions unused for IdleTTL are
// dropped; zero keeps them until discarded.
type ExplorerConfig struct {
	IdleTTL time.Duration `yaml:"idleTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the Prometheus /metrics route.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if path is non-empty) and applies
// environment overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	if c.Consumer.LicenseKey == "" {
		return fmt.Errorf("must set %s", LicenseKeyEnv)
	}
	if c.Consumer.Endpoint == "" {
		return fmt.Errorf("consumer endpoint must not be empty")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Consumer: ConsumerConfig{
			Endpoint:      "https://list.melissadata.net/v1/Consumer/rest/Service.svc/get/zip",
			LookupRecords: 100,
			ListRecords:   10,
			Columns:       []string{"Name", "Phone", "Email"},
			Timeout:       15 * time.Second,
			RateLimit:     5,
			Burst:         5,
		},
		Redis: RedisConfig{
			CacheTTL: 5 * time.Minute,
		},
		Explorer: ExplorerConfig{
			IdleTTL: 2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(LicenseKeyEnv); v != "" {
		cfg.Consumer.LicenseKey = v
	}
	if v := os.Getenv("CANVASS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CANVASS_CONSUMER_ENDPOINT"); v != "" {
		cfg.Consumer.Endpoint = v
	}
	if v := os.Getenv("CANVASS_CONSUMER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Consumer.Timeout = d
		}
	}
	if v := os.Getenv("CANVASS_CONSUMER_RATE_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Consumer.RateLimit = limit
		}
	}
	if v := os.Getenv("CANVASS_CONSUMER_COLUMNS"); v != "" {
		cfg.Consumer.Columns = strings.Split(v, ",")
	}
	if v := os.Getenv("CANVASS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CANVASS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.MySQL.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.MySQL.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.MySQL.Host = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.MySQL.Name = v
	}
	if v := os.Getenv("CANVASS_EXPLORER_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Explorer.IdleTTL = d
		}
	}
	if v := os.Getenv("CANVASS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CANVASS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CANVASS_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
}
