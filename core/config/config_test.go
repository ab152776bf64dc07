package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
rate_limit:
  capacity: 3
  interval_ms: 5000
  key: User
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.Telegram.Workers != 8 {
		t.Fatalf("workers = %d, want 8", cfg.Telegram.Workers)
	}
	if cfg.RateLimit.Method != LimitDiscard || cfg.RateLimit.Key != KeyUser {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Interval() != 5*time.Second {
		t.Fatalf("interval = %s", cfg.RateLimit.Interval())
	}
	if cfg.Session.Backend != SessionMemory {
		t.Fatalf("session backend = %q", cfg.Session.Backend)
	}
	if cfg.Session.GCPeriod() != time.Minute || cfg.Session.Lifetime() != 24*time.Hour {
		t.Fatalf("session timings = %s / %s", cfg.Session.GCPeriod(), cfg.Session.Lifetime())
	}
	if cfg.I18n.Default != "en" || cfg.I18n.File != "" {
		t.Fatalf("i18n = %+v", cfg.I18n)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "from-file"
session:
  backend: fs
  dir: /tmp/sessions
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("SESSION_LIFETIME_SECONDS", "90")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env value", cfg.Telegram.Token)
	}
	if cfg.Session.Lifetime() != 90*time.Second {
		t.Fatalf("lifetime = %s", cfg.Session.Lifetime())
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("BOTFLOW_TEST_VALUE=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("BOTFLOW_TEST_VALUE") })

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("BOTFLOW_TEST_VALUE"); got != "loaded" {
		t.Fatalf("env value = %q", got)
	}
	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "token is required"},
		{"bad run mode", func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" }, "invalid telegram.run_mode"},
		{"webhook without url", func(c *Config) { c.Telegram.RunMode = RunModeWebhook }, "webhook.url"},
		{"limit without interval", func(c *Config) { c.RateLimit.Capacity = 1 }, "interval_ms"},
		{"bad method", func(c *Config) {
			c.RateLimit = RateLimitConfig{Capacity: 1, IntervalMS: 10, Method: "drop"}
		}, "rate_limit.method"},
		{"jitter with discard", func(c *Config) {
			c.RateLimit = RateLimitConfig{Capacity: 1, IntervalMS: 10, JitterMaxMS: 5}
		}, "jitter requires"},
		{"keys without key", func(c *Config) {
			c.RateLimit = RateLimitConfig{Capacity: 1, IntervalMS: 10, Keys: []int64{1}}
		}, "rate_limit.keys"},
		{"fs without dir", func(c *Config) { c.Session.Backend = SessionFS }, "session.dir"},
		{"redis without url", func(c *Config) { c.Session.Backend = SessionRedis }, "session.redis.url"},
		{"sql without host", func(c *Config) { c.Session.Backend = SessionSQL }, "database.host"},
		{"bad access action", func(c *Config) {
			c.Access.Rules = []AccessRule{{Action: "maybe"}}
		}, "access.rules[0].action"},
		{"combined principals", func(c *Config) {
			c.Access.Rules = []AccessRule{{Action: "allow", UserID: 1, Username: "bob"}}
		}, "combines principals"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Telegram: TelegramConfig{Token: "x"}}
			tc.mutate(cfg)
			err := Normalize(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %q, want substring %q", err, tc.want)
			}
		})
	}
}

func TestNormalizeAccessRules(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "x"},
		Access: AccessConfig{Rules: []AccessRule{
			{Action: " Allow ", Username: "@Alice"},
			{Action: "deny", ChatID: -100, UserID: 7},
		}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Access.Rules[0].Action != "allow" || cfg.Access.Rules[0].Username != "Alice" {
		t.Fatalf("rule not normalized: %+v", cfg.Access.Rules[0])
	}
}
