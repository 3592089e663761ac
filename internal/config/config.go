package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials reports absent Datadog API credentials.
var ErrMissingCredentials = errors.New("missing datadog credentials")

// Config captures the settings required to run a triage, locally or in serve
// mode.
type Config struct {
	Datadog DatadogConfig `yaml:"datadog"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Rules   RulesConfig   `yaml:"rules"`
	Cache   CacheConfig   `yaml:"cache"`
}

// DatadogConfig configures the Datadog API client. Credentials normally come
// from the conventional DD_API_KEY / DD_APP_KEY / DD_SITE variables.
type DatadogConfig struct {
	Site       string        `yaml:"site"`
	APIKey     string        `yaml:"apiKey"`
	AppKey     string        `yaml:"appKey"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries"`
}

// ServerConfig controls the serve-mode HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig points at the recommendation rulepack.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Redis-backed caching of triage reports.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	ReportTTL    time.Duration `yaml:"reportTTL"`
}

// Load initialises Config from a YAML file and environment overrides. An
// empty path falls back to FAULTLINE_CONFIG; when neither names a file, the
// defaults plus environment are used alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FAULTLINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Validate checks that the Datadog credentials are present. Called before a
// client is constructed so runs fail before the first request.
func (c DatadogConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: DD_API_KEY is not set", ErrMissingCredentials)
	}
	if c.AppKey == "" {
		return fmt.Errorf("%w: DD_APP_KEY is not set", ErrMissingCredentials)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Datadog: DatadogConfig{
			Site:       "datadoghq.com",
			Timeout:    20 * time.Second,
			MaxRetries: 4,
		},
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Rules:   RulesConfig{Path: "configs/rules/default.yaml"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			ReportTTL:    5 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DD_API_KEY"); v != "" {
		cfg.Datadog.APIKey = v
	}
	if v := os.Getenv("DD_APP_KEY"); v != "" {
		cfg.Datadog.AppKey = v
	}
	if v := os.Getenv("DD_SITE"); v != "" {
		cfg.Datadog.Site = v
	}
	if v := os.Getenv("FAULTLINE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("FAULTLINE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FAULTLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FAULTLINE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("FAULTLINE_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("FAULTLINE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("FAULTLINE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FAULTLINE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("FAULTLINE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("FAULTLINE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("FAULTLINE_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("FAULTLINE_CACHE_REPORT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReportTTL = d
		}
	}
	if v := os.Getenv("FAULTLINE_DD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Datadog.Timeout = d
		}
	}
	if v := os.Getenv("FAULTLINE_DD_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Datadog.MaxRetries = n
		}
	}
}
