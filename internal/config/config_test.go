package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load consults so tests see only the
// fixture file. t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FAULTLINE_CONFIG",
		"DD_API_KEY", "DD_APP_KEY", "DD_SITE",
		"FAULTLINE_SERVER_ADDRESS", "FAULTLINE_METRICS_ADDRESS",
		"FAULTLINE_LOG_LEVEL", "FAULTLINE_LOG_FORMAT",
		"FAULTLINE_RULES_PATH",
		"FAULTLINE_CACHE_ADDR", "FAULTLINE_CACHE_ENABLED",
		"FAULTLINE_CACHE_USERNAME", "FAULTLINE_CACHE_PASSWORD",
		"FAULTLINE_CACHE_DB", "FAULTLINE_CACHE_TLS",
		"FAULTLINE_CACHE_REPORT_TTL",
		"FAULTLINE_DD_TIMEOUT", "FAULTLINE_DD_MAX_RETRIES",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faultline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Datadog.Site != "datadoghq.com" {
		t.Fatalf("default site = %q", cfg.Datadog.Site)
	}
	if cfg.Datadog.Timeout != 20*time.Second {
		t.Fatalf("default timeout = %v", cfg.Datadog.Timeout)
	}
	if cfg.Datadog.MaxRetries != 4 {
		t.Fatalf("default max retries = %d", cfg.Datadog.MaxRetries)
	}
	if cfg.Server.Address != ":8080" || cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("default listeners = %q / %q", cfg.Server.Address, cfg.Server.MetricsAddress)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.JSON {
		t.Fatalf("default logging = %+v", cfg.Logging)
	}
	if cfg.Rules.Path != "configs/rules/default.yaml" {
		t.Fatalf("default rules path = %q", cfg.Rules.Path)
	}
	if cfg.Cache.Enabled {
		t.Fatal("cache should default to disabled")
	}
	if cfg.Cache.ReportTTL != 5*time.Minute {
		t.Fatalf("default report TTL = %v", cfg.Cache.ReportTTL)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
datadog:
  site: datadoghq.eu
  apiKey: file-api-key
  appKey: file-app-key
  timeout: 90s
  maxRetries: 7
server:
  address: ":9090"
  gracefulTimeout: 30s
logging:
  level: debug
  json: true
rules:
  path: /etc/faultline/rules.yaml
cache:
  enabled: true
  addr: localhost:6379
  db: 3
  reportTTL: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Datadog.Site != "datadoghq.eu" {
		t.Fatalf("site = %q", cfg.Datadog.Site)
	}
	if cfg.Datadog.APIKey != "file-api-key" || cfg.Datadog.AppKey != "file-app-key" {
		t.Fatalf("credentials = %q / %q", cfg.Datadog.APIKey, cfg.Datadog.AppKey)
	}
	if cfg.Datadog.Timeout != 90*time.Second {
		t.Fatalf("timeout = %v", cfg.Datadog.Timeout)
	}
	if cfg.Datadog.MaxRetries != 7 {
		t.Fatalf("max retries = %d", cfg.Datadog.MaxRetries)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("address = %q", cfg.Server.Address)
	}
	if cfg.Server.GracefulTimeout != 30*time.Second {
		t.Fatalf("graceful timeout = %v", cfg.Server.GracefulTimeout)
	}
	// Fields the file omits keep their defaults.
	if cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("metrics address = %q", cfg.Server.MetricsAddress)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Rules.Path != "/etc/faultline/rules.yaml" {
		t.Fatalf("rules path = %q", cfg.Rules.Path)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "localhost:6379" || cfg.Cache.DB != 3 {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.ReportTTL != time.Minute {
		t.Fatalf("report TTL = %v", cfg.Cache.ReportTTL)
	}
	if cfg.Cache.DialTimeout != 2*time.Second {
		t.Fatalf("dial timeout = %v", cfg.Cache.DialTimeout)
	}
}

func TestLoadPathFromEnv(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, "logging:\n  level: warn\n")
	t.Setenv("FAULTLINE_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
datadog:
  site: datadoghq.eu
  apiKey: file-api-key
cache:
  reportTTL: 1m
`)
	t.Setenv("DD_SITE", "us5.datadoghq.com")
	t.Setenv("DD_API_KEY", "env-api-key")
	t.Setenv("DD_APP_KEY", "env-app-key")
	t.Setenv("FAULTLINE_CACHE_REPORT_TTL", "45s")
	t.Setenv("FAULTLINE_CACHE_ENABLED", "true")
	t.Setenv("FAULTLINE_CACHE_DB", "9")
	t.Setenv("FAULTLINE_LOG_FORMAT", "json")
	t.Setenv("FAULTLINE_DD_MAX_RETRIES", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Datadog.Site != "us5.datadoghq.com" {
		t.Fatalf("site = %q", cfg.Datadog.Site)
	}
	if cfg.Datadog.APIKey != "env-api-key" || cfg.Datadog.AppKey != "env-app-key" {
		t.Fatalf("credentials = %q / %q", cfg.Datadog.APIKey, cfg.Datadog.AppKey)
	}
	if cfg.Cache.ReportTTL != 45*time.Second {
		t.Fatalf("report TTL = %v", cfg.Cache.ReportTTL)
	}
	if !cfg.Cache.Enabled || cfg.Cache.DB != 9 {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if !cfg.Logging.JSON {
		t.Fatal("expected json logging from FAULTLINE_LOG_FORMAT")
	}
	if cfg.Datadog.MaxRetries != 1 {
		t.Fatalf("max retries = %d", cfg.Datadog.MaxRetries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, "datadog: [\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDatadogValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     DatadogConfig
		wantErr bool
	}{
		{"both keys", DatadogConfig{APIKey: "a", AppKey: "b"}, false},
		{"missing api key", DatadogConfig{AppKey: "b"}, true},
		{"missing app key", DatadogConfig{APIKey: "a"}, true},
		{"missing both", DatadogConfig{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrMissingCredentials) {
					t.Fatalf("expected ErrMissingCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
