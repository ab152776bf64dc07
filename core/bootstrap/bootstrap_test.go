package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/i18n"
	"github.com/m3rciful/botflow/core/session"
	"github.com/m3rciful/botflow/core/session/fsstore"
	"github.com/m3rciful/botflow/core/session/redisstore"
	"github.com/m3rciful/botflow/core/session/sqlstore"
	"github.com/m3rciful/botflow/core/store"
	"github.com/m3rciful/botflow/core/update/updatetest"
)

func noLogger(*coreconfig.Config) error { return nil }

func baseConfig() *coreconfig.Config {
	cfg := &coreconfig.Config{}
	cfg.Session.Backend = coreconfig.SessionMemory
	cfg.Session.GCPeriodSeconds = 60
	cfg.Session.LifetimeSeconds = 3600
	return cfg
}

func TestRunAssemblesPipeline(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit = coreconfig.RateLimitConfig{Capacity: 1, IntervalMS: 3_600_000, Method: coreconfig.LimitDiscard, Key: coreconfig.KeyChat}
	cfg.Access.Rules = []coreconfig.AccessRule{{Action: "allow", UserID: 2}}

	var calls atomic.Int32
	res, err := Run(context.Background(), Options{
		Config:           cfg,
		LoggerInit:       noLogger,
		DisableCollector: true,
		Handler: func(res *Result) (dispatch.Handler, error) {
			require.NotNil(t, res.Sessions)
			return dispatch.HandlerFunc(func(context.Context, *dispatch.Input) dispatch.Result {
				calls.Add(1)
				return dispatch.Continue()
			}), nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, res.Close()) })

	m, ok := store.Get[*session.Manager](res.Store)
	require.True(t, ok)
	require.Same(t, res.Sessions, m)
	_, ok = m.Backend().(*session.MemoryBackend)
	require.True(t, ok)

	ctx := context.Background()
	require.True(t, res.App.Dispatch(ctx, updatetest.Message(1, 2, "hi")).IsContinue())
	require.True(t, res.App.Dispatch(ctx, updatetest.Message(1, 2, "again")).IsStop(), "second update in chat 1 is limited")
	require.True(t, res.App.Dispatch(ctx, updatetest.Message(3, 9, "hi")).IsStop(), "user 9 is not allowed")
	require.EqualValues(t, 1, calls.Load())
}

func TestRunWithoutRulesAllowsEveryone(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Config:     baseConfig(),
		LoggerInit: noLogger,
		Handler: func(*Result) (dispatch.Handler, error) {
			return dispatch.HandlerFunc(func(context.Context, *dispatch.Input) dispatch.Result {
				return dispatch.Stop()
			}), nil
		},
	})
	require.NoError(t, err)
	require.True(t, res.App.Dispatch(context.Background(), updatetest.Message(5, 6, "x")).IsStop())
	require.NoError(t, res.Close())
}

func TestRunStoresTranslations(t *testing.T) {
	cfg := baseConfig()
	cfg.I18n.Default = "en"
	res, err := Run(context.Background(), Options{
		Config:           cfg,
		LoggerInit:       noLogger,
		DisableCollector: true,
		Translations:     []byte("en:\n  hi: Hello\nru:\n  hi: Привет\n"),
		Handler: func(*Result) (dispatch.Handler, error) {
			return dispatch.Bind(i18n.FromEvent(), func(_ context.Context, tr *i18n.Translator) dispatch.Result {
				if tr.Text("hi") != "Привет" {
					return dispatch.Fail(errors.New("unexpected translation " + tr.Text("hi")))
				}
				return dispatch.Stop()
			}), nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, res.Close()) })

	st, ok := store.Get[*i18n.Store](res.Store)
	require.True(t, ok)
	require.Same(t, res.Translations, st)
	require.Equal(t, []string{"en", "ru"}, st.Locales())
	ev := updatetest.WithLanguage(updatetest.Message(1, 2, "hi"), "ru")
	require.True(t, res.App.Dispatch(context.Background(), ev).IsStop())
}

func TestLoadTranslations(t *testing.T) {
	st, err := LoadTranslations(coreconfig.I18nConfig{}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"en"}, st.Locales())
	require.Equal(t, "key", st.Lookup("ru").Text("key"))

	path := filepath.Join(t.TempDir(), "locales.yaml")
	require.NoError(t, os.WriteFile(path, []byte("de:\n  hi: Hallo\n"), 0o600))
	st, err = LoadTranslations(coreconfig.I18nConfig{File: path, Default: "de"}, []byte("en:\n  hi: Hello\n"))
	require.NoError(t, err)
	require.Equal(t, "Hallo", st.Default().Text("hi"))

	_, err = LoadTranslations(coreconfig.I18nConfig{File: filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	require.Error(t, err)
}

func TestRunErrors(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)

	_, err = Run(context.Background(), Options{Config: baseConfig()})
	require.Error(t, err)

	boom := errors.New("boom")
	_, err = Run(context.Background(), Options{
		Config:     baseConfig(),
		LoggerInit: func(*coreconfig.Config) error { return boom },
		Handler:    func(*Result) (dispatch.Handler, error) { return nil, nil },
	})
	require.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{
		Config:     baseConfig(),
		LoggerInit: noLogger,
		Handler:    func(*Result) (dispatch.Handler, error) { return nil, boom },
	})
	require.ErrorIs(t, err, boom)
}

func TestOpenSessions(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name  string
		setup func(cfg *coreconfig.Config)
		check func(t *testing.T, b *Backends)
	}{
		{
			name:  "fs",
			setup: func(cfg *coreconfig.Config) { cfg.Session.Backend = coreconfig.SessionFS; cfg.Session.Dir = t.TempDir() },
			check: func(t *testing.T, b *Backends) {
				_, ok := b.Session.(*fsstore.Backend)
				require.True(t, ok)
			},
		},
		{
			name: "redis",
			setup: func(cfg *coreconfig.Config) {
				cfg.Session.Backend = coreconfig.SessionRedis
				cfg.Session.Redis = coreconfig.RedisConfig{URL: "redis://" + mr.Addr(), Prefix: "bootstrap"}
			},
			check: func(t *testing.T, b *Backends) {
				_, ok := b.Session.(*redisstore.Backend)
				require.True(t, ok)
				require.NotNil(t, b.Redis)
			},
		},
		{
			name: "sql",
			setup: func(cfg *coreconfig.Config) {
				cfg.Session.Backend = coreconfig.SessionSQL
				cfg.Database = coreconfig.DatabaseConfig{Driver: coreconfig.DriverSQLite, Path: ":memory:"}
			},
			check: func(t *testing.T, b *Backends) {
				_, ok := b.Session.(*sqlstore.Backend)
				require.True(t, ok)
				require.NotNil(t, b.DB)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.setup(cfg)
			b, err := OpenSessions(ctx, cfg)
			require.NoError(t, err)
			tt.check(t, b)

			s := session.NewManager(b.Session).Get("1-2")
			require.NoError(t, s.Set(ctx, "k", "v"))
			v, ok, err := session.Value[string](ctx, s, "k")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "v", v)
			require.NoError(t, b.Close())
		})
	}

	cfg := baseConfig()
	cfg.Session.Backend = "etcd"
	_, err := OpenSessions(ctx, cfg)
	require.Error(t, err)
}
