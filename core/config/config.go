package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// Workers bounds the number of concurrent dispatches.
	Workers int `yaml:"workers" envconfig:"TELEGRAM_WORKERS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// LimitDiscard drops updates once the bucket is empty.
	LimitDiscard = "discard"
	// LimitWait suspends the dispatch until a token is available.
	LimitWait = "wait"
)

const (
	// KeyNone selects a single global bucket.
	KeyNone = ""
	// KeyChat keeps one bucket per chat.
	KeyChat = "chat"
	// KeyUser keeps one bucket per user.
	KeyUser = "user"
	// KeyChatUser keeps one bucket per (chat, user) pair.
	KeyChatUser = "chat_user"
)

// RateLimitConfig holds token bucket settings. Capacity 0 disables limiting.
type RateLimitConfig struct {
	Capacity    int    `yaml:"capacity" envconfig:"RATE_LIMIT_CAPACITY"`
	IntervalMS  int    `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Method      string `yaml:"method" envconfig:"RATE_LIMIT_METHOD"`
	Key         string `yaml:"key" envconfig:"RATE_LIMIT_KEY"`
	JitterMinMS int    `yaml:"jitter_min_ms" envconfig:"RATE_LIMIT_JITTER_MIN_MS"`
	JitterMaxMS int    `yaml:"jitter_max_ms" envconfig:"RATE_LIMIT_JITTER_MAX_MS"`
	// Keys restricts a keyed limiter to the listed ids (chat or user ids).
	Keys []int64 `yaml:"keys" envconfig:"RATE_LIMIT_KEYS"`
}

// Interval returns the refill interval as a duration.
func (c RateLimitConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

const (
	// SessionMemory keeps sessions in process memory.
	SessionMemory = "memory"
	// SessionFS keeps sessions in a directory tree.
	SessionFS = "fs"
	// SessionRedis keeps sessions in redis.
	SessionRedis = "redis"
	// SessionSQL keeps sessions in the configured database.
	SessionSQL = "sql"
)

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	URL            string `yaml:"url" envconfig:"REDIS_URL"`
	Prefix         string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms" envconfig:"REDIS_READ_TIMEOUT_MS"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms" envconfig:"REDIS_WRITE_TIMEOUT_MS"`
	DialTimeoutMS  int    `yaml:"dial_timeout_ms" envconfig:"REDIS_DIAL_TIMEOUT_MS"`
}

// SessionConfig selects the session backend and collector cadence.
type SessionConfig struct {
	Backend         string      `yaml:"backend" envconfig:"SESSION_BACKEND"`
	Dir             string      `yaml:"dir" envconfig:"SESSION_DIR"`
	GCPeriodSeconds int         `yaml:"gc_period_seconds" envconfig:"SESSION_GC_PERIOD_SECONDS"`
	LifetimeSeconds int         `yaml:"lifetime_seconds" envconfig:"SESSION_LIFETIME_SECONDS"`
	Redis           RedisConfig `yaml:"redis"`
}

// GCPeriod returns the collector period.
func (c SessionConfig) GCPeriod() time.Duration {
	return time.Duration(c.GCPeriodSeconds) * time.Second
}

// Lifetime returns the idle lifetime after which sessions are evicted.
func (c SessionConfig) Lifetime() time.Duration {
	return time.Duration(c.LifetimeSeconds) * time.Second
}

const (
	// DriverPostgres uses lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite uses mattn/go-sqlite3.
	DriverSQLite = "sqlite3"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// AccessRule is one allow/deny entry. Exactly one principal field may be set;
// none of them means "everyone".
type AccessRule struct {
	Action       string `yaml:"action"`
	UserID       int64  `yaml:"user_id"`
	Username     string `yaml:"username"`
	ChatID       int64  `yaml:"chat_id"`
	ChatUsername string `yaml:"chat_username"`
}

// AccessConfig lists the rules of the default access policy.
type AccessConfig struct {
	Rules []AccessRule `yaml:"rules"`
}

// I18nConfig points at the translation catalog and names its default locale.
type I18nConfig struct {
	File    string `yaml:"file" envconfig:"I18N_FILE"`
	Default string `yaml:"default" envconfig:"I18N_DEFAULT"`
}

// Config aggregates the configuration of the pipeline.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
	Database  DatabaseConfig  `yaml:"database"`
	Access    AccessConfig    `yaml:"access"`
	I18n      I18nConfig      `yaml:"i18n"`
}

// Load reads the optional .env file, the YAML file and environment variables.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(""); err != nil {
		return nil, err
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from path (".env" when empty) without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := normalizeTelegram(cfg); err != nil {
		return err
	}
	if err := normalizeRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := normalizeSession(&cfg.Session); err != nil {
		return err
	}
	if err := normalizeDatabase(cfg); err != nil {
		return err
	}
	normalizeI18n(&cfg.I18n)
	return normalizeAccess(&cfg.Access)
}

func normalizeI18n(c *I18nConfig) {
	c.File = strings.TrimSpace(c.File)
	c.Default = strings.TrimSpace(c.Default)
	if c.Default == "" {
		c.Default = "en"
	}
}

func normalizeTelegram(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Telegram.Workers < 0 {
		return fmt.Errorf("telegram.workers must be >= 0")
	}
	if cfg.Telegram.Workers == 0 {
		cfg.Telegram.Workers = 8
	}
	return nil
}

func normalizeRateLimit(rl *RateLimitConfig) error {
	if rl.Capacity < 0 {
		return fmt.Errorf("rate_limit.capacity must be >= 0")
	}
	if rl.Capacity == 0 {
		return nil
	}
	if rl.IntervalMS <= 0 {
		return fmt.Errorf("rate_limit.interval_ms must be > 0 when rate_limit.capacity is set")
	}

	method := strings.ToLower(strings.TrimSpace(rl.Method))
	if method == "" {
		method = LimitDiscard
	}
	switch method {
	case LimitDiscard, LimitWait:
	default:
		return fmt.Errorf("invalid rate_limit.method %q; allowed: discard, wait", rl.Method)
	}
	rl.Method = method

	key := strings.ToLower(strings.TrimSpace(rl.Key))
	switch key {
	case KeyNone, KeyChat, KeyUser, KeyChatUser:
	default:
		return fmt.Errorf("invalid rate_limit.key %q; allowed: chat, user, chat_user", rl.Key)
	}
	rl.Key = key
	if len(rl.Keys) > 0 && key != KeyChat && key != KeyUser {
		return fmt.Errorf("rate_limit.keys requires rate_limit.key to be chat or user")
	}

	if rl.JitterMinMS < 0 || rl.JitterMaxMS < 0 {
		return fmt.Errorf("rate_limit jitter bounds must be >= 0")
	}
	if rl.JitterMaxMS < rl.JitterMinMS {
		return fmt.Errorf("rate_limit.jitter_max_ms must be >= rate_limit.jitter_min_ms")
	}
	if rl.JitterMaxMS > 0 && method != LimitWait {
		return fmt.Errorf("rate_limit jitter requires rate_limit.method 'wait'")
	}
	return nil
}

func normalizeSession(s *SessionConfig) error {
	backend := strings.ToLower(strings.TrimSpace(s.Backend))
	if backend == "" {
		backend = SessionMemory
	}
	switch backend {
	case SessionMemory, SessionSQL:
	case SessionFS:
		if strings.TrimSpace(s.Dir) == "" {
			return fmt.Errorf("session.dir is required when session.backend is 'fs'")
		}
	case SessionRedis:
		if strings.TrimSpace(s.Redis.URL) == "" {
			return fmt.Errorf("session.redis.url is required when session.backend is 'redis'")
		}
		if s.Redis.Prefix == "" {
			s.Redis.Prefix = "botflow"
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, fs, redis, sql", s.Backend)
	}
	s.Backend = backend

	if s.GCPeriodSeconds < 0 || s.LifetimeSeconds < 0 {
		return fmt.Errorf("session gc period and lifetime must be >= 0")
	}
	if s.GCPeriodSeconds == 0 {
		s.GCPeriodSeconds = 60
	}
	if s.LifetimeSeconds == 0 {
		s.LifetimeSeconds = 24 * 60 * 60
	}
	return nil
}

func normalizeDatabase(cfg *Config) error {
	db := &cfg.Database
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	if driver == "" {
		driver = DriverPostgres
	}
	switch driver {
	case DriverPostgres:
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
		if db.Port == "" {
			db.Port = "5432"
		}
	case DriverSQLite:
		if cfg.Session.Backend == SessionSQL && strings.TrimSpace(db.Path) == "" {
			return fmt.Errorf("database.path is required for the sqlite3 driver")
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite3", db.Driver)
	}
	db.Driver = driver
	if db.MaxConnections <= 0 {
		db.MaxConnections = 10
	}
	if cfg.Session.Backend == SessionSQL && driver == DriverPostgres && strings.TrimSpace(db.Host) == "" {
		return fmt.Errorf("database.host is required when session.backend is 'sql'")
	}
	return nil
}

func normalizeAccess(a *AccessConfig) error {
	for i := range a.Rules {
		r := &a.Rules[i]
		action := strings.ToLower(strings.TrimSpace(r.Action))
		if action != "allow" && action != "deny" {
			return fmt.Errorf("invalid access.rules[%d].action %q; allowed: allow, deny", i, r.Action)
		}
		r.Action = action
		r.Username = strings.TrimPrefix(strings.TrimSpace(r.Username), "@")
		r.ChatUsername = strings.TrimPrefix(strings.TrimSpace(r.ChatUsername), "@")
		set := 0
		if r.UserID != 0 {
			set++
		}
		if r.Username != "" {
			set++
		}
		if r.ChatID != 0 {
			set++
		}
		if r.ChatUsername != "" {
			set++
		}
		if set > 1 && !(set == 2 && r.ChatID != 0 && r.UserID != 0) {
			return fmt.Errorf("access.rules[%d] combines principals; only chat_id+user_id may be combined", i)
		}
	}
	return nil
}
