// Package bootstrap wires configuration into a ready dispatch.App.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/botflow/core/access"
	coreconfig "github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/database"
	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/i18n"
	"github.com/m3rciful/botflow/core/logger"
	"github.com/m3rciful/botflow/core/ratelimit"
	"github.com/m3rciful/botflow/core/session"
	"github.com/m3rciful/botflow/core/session/fsstore"
	"github.com/m3rciful/botflow/core/session/redisstore"
	"github.com/m3rciful/botflow/core/session/sqlstore"
	"github.com/m3rciful/botflow/core/store"
)

// HandlerFunc builds the application handler once shared values are in the
// store.
type HandlerFunc func(res *Result) (dispatch.Handler, error)

// Options control the bootstrap pipeline.
type Options struct {
	Config  *coreconfig.Config
	Handler HandlerFunc

	LoggerInit func(*coreconfig.Config) error
	// Translations is a YAML catalog used when i18n.file is not configured.
	Translations []byte
	// DisableCollector skips starting the background session collector.
	DisableCollector bool
}

// Result exposes what Run initialized. Close releases it.
type Result struct {
	Config    *coreconfig.Config
	Store     *store.Store
	App       *dispatch.App
	Sessions  *session.Manager
	Collector    *session.Collector
	Access       access.Rules
	Translations *i18n.Store

	DB    *sqlx.DB
	Redis *redis.Client

	sweeper *session.Handle
}

// Backends holds an opened session backend and the connections behind it.
type Backends struct {
	Session session.Backend
	DB      *sqlx.DB
	Redis   *redis.Client
}

// Close releases the connections opened for the backend.
func (b *Backends) Close() error {
	var errs []error
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	return errors.Join(errs...)
}

// OpenSessions opens the session backend selected by cfg.Session.Backend.
// The sql backend is migrated before use.
func OpenSessions(ctx context.Context, cfg *coreconfig.Config) (*Backends, error) {
	switch cfg.Session.Backend {
	case coreconfig.SessionMemory, "":
		return &Backends{Session: session.NewMemoryBackend()}, nil
	case coreconfig.SessionFS:
		b, err := fsstore.New(cfg.Session.Dir)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: session dir: %w", err)
		}
		return &Backends{Session: b}, nil
	case coreconfig.SessionRedis:
		client, err := redisstore.Connect(ctx, cfg.Session.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis: %w", err)
		}
		b := redisstore.New(client, redisstore.WithPrefix(cfg.Session.Redis.Prefix))
		return &Backends{Session: b, Redis: client}, nil
	case coreconfig.SessionSQL:
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		return &Backends{Session: sqlstore.New(db), DB: db}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.Session.Backend)
	}
}

// LoadTranslations builds the translator store from the configured catalog
// file, else from fallback. Without either every locale renders message keys
// as they are.
func LoadTranslations(cfg coreconfig.I18nConfig, fallback []byte) (*i18n.Store, error) {
	def := cfg.Default
	if def == "" {
		def = "en"
	}
	load := func() (*i18n.Store, error) { return i18n.Parse(fallback, def) }
	if cfg.File != "" {
		load = func() (*i18n.Store, error) { return i18n.LoadFile(cfg.File, def) }
	}
	st, err := load()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: translations: %w", err)
	}
	return st, nil
}

// Run initializes the logger and the session backend, then assembles the
// app: rate limit, access policy and the application handler, in that order.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	if opts.Handler == nil {
		return nil, errors.New("bootstrap: nil handler provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	rules, err := access.RulesFromConfig(cfg.Access)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: access rules: %w", err)
	}
	limiter, err := ratelimit.FromConfig(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: rate limit: %w", err)
	}

	translations, err := LoadTranslations(cfg.I18n, opts.Translations)
	if err != nil {
		return nil, err
	}

	backends, err := OpenSessions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Config:       cfg,
		Store:        store.New(),
		Sessions:     session.NewManager(backends.Session),
		Access:       rules,
		Translations: translations,
		DB:           backends.DB,
		Redis:        backends.Redis,
	}
	store.Put(res.Store, res.Sessions)
	store.Put(res.Store, res.Translations)
	store.Put(res.Store, cfg)
	if res.DB != nil {
		store.Put(res.Store, res.DB)
	}

	root, err := opts.Handler(res)
	if err != nil {
		_ = backends.Close()
		return nil, fmt.Errorf("bootstrap: handler: %w", err)
	}

	var guard dispatch.Handler
	if len(rules) > 0 {
		guard = access.Predicate(rules)
	}
	res.App = dispatch.NewApp(res.Store, dispatch.All(limiter, guard, root))

	res.Collector = session.NewCollector(backends.Session, cfg.Session.GCPeriod(), cfg.Session.Lifetime())
	if !opts.DisableCollector {
		res.sweeper = res.Collector.Start(context.WithoutCancel(ctx))
	}

	logger.Info(ctx, "app", "bootstrap.ready",
		slog.String("backend", cfg.Session.Backend),
		slog.Int("rules", len(rules)),
		slog.Bool("rate_limited", limiter != nil),
		slog.Any("locales", translations.Locales()),
	)
	return res, nil
}

// Close stops the collector and closes the backend connections.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	if r.sweeper != nil {
		r.sweeper.Stop()
	}
	b := Backends{DB: r.DB, Redis: r.Redis}
	return b.Close()
}
