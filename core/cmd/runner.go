// Package cmd builds the command tree shared by bots built on botflow.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/bootstrap"
	"github.com/m3rciful/botflow/core/buildinfo"
	coreconfig "github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/database"
	"github.com/m3rciful/botflow/core/logger"
	"github.com/m3rciful/botflow/core/session"
	"github.com/m3rciful/botflow/core/telegram"
)

const defaultWaitTimeout = 30 * time.Second

// Options describe how to load configuration and build the bot handler.
type Options struct {
	Use               string
	Short             string
	ConfigEnvVar      string
	DefaultConfigPath string

	Handler bootstrap.HandlerFunc
	// Commands are published as the bot command menu.
	Commands []tele.Command
	// Translations is the built-in YAML catalog, overridden by i18n.file.
	Translations []byte

	LoadConfig     func(path string) (*coreconfig.Config, error)
	LoggerInit     func(*coreconfig.Config) error
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts telegram.RunOptions) error
}

func (o *Options) defaults() {
	if o.Use == "" {
		o.Use = "botflow"
	}
	if o.ConfigEnvVar == "" {
		o.ConfigEnvVar = "CONFIG_PATH"
	}
	if o.LoadConfig == nil {
		o.LoadConfig = coreconfig.Load
	}
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.ShutdownLogger == nil {
		o.ShutdownLogger = logger.Shutdown
	}
	if o.RunTelegram == nil {
		o.RunTelegram = telegram.Run
	}
}

// Execute runs the command tree against os.Args.
func Execute(opts Options) error {
	return NewRoot(opts).Execute()
}

// NewRoot returns the root command with run, migrate, sweep and version.
func NewRoot(opts Options) *cobra.Command {
	opts.defaults()
	var cfgPath string

	root := &cobra.Command{
		Use:           opts.Use,
		Short:         opts.Short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		fmt.Sprintf("config file (default $%s or %q)", opts.ConfigEnvVar, opts.DefaultConfigPath))

	load := func() (*coreconfig.Config, error) {
		path := cfgPath
		if path == "" {
			path = os.Getenv(opts.ConfigEnvVar)
		}
		if path == "" {
			path = opts.DefaultConfigPath
		}
		if path == "" {
			return nil, fmt.Errorf("cmd: config path not provided via --config, %s or DefaultConfigPath", opts.ConfigEnvVar)
		}
		log.Printf("loading config: %s", path)
		cfg, err := opts.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("cmd: failed to load config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(
		runCommand(&opts, load),
		migrateCommand(&opts, load),
		sweepCommand(&opts, load),
		versionCommand(),
	)
	return root
}

func runCommand(opts *Options, load func() (*coreconfig.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Handler == nil {
				return errors.New("cmd: Handler is required")
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			startedAt := time.Now()
			res, err := bootstrap.Run(ctx, bootstrap.Options{
				Config:       cfg,
				Handler:      opts.Handler,
				LoggerInit:   opts.LoggerInit,
				Translations: opts.Translations,
			})
			if err != nil {
				return fmt.Errorf("cmd: bootstrap failed: %w", err)
			}
			defer shutdown(opts, res)

			return opts.RunTelegram(ctx, telegram.RunOptions{
				Config:   cfg,
				App:      res.App,
				Commands: opts.Commands,
				OnStart: func(ctx context.Context, _ *tele.Bot) error {
					logger.Info(ctx, "app", "ready",
						slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
					)
					return nil
				},
			})
		},
	}
}

func shutdown(opts *Options, res *bootstrap.Result) {
	logger.Info(context.Background(), "app", "shutdown")
	if err := res.Close(); err != nil {
		logger.Error(context.Background(), "app", "shutdown", logger.Err(err))
	}
	if err := opts.ShutdownLogger(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}

func migrateCommand(opts *Options, load func() (*coreconfig.Config, error)) *cobra.Command {
	var wait time.Duration
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the session schema to the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := opts.LoggerInit(cfg); err != nil {
				return fmt.Errorf("cmd: logger init failed: %w", err)
			}
			defer func() { _ = opts.ShutdownLogger() }()

			ctx := cmd.Context()
			if cfg.Database.Driver == coreconfig.DriverPostgres && wait > 0 {
				if err := database.WaitForPostgres(ctx, database.DSN(cfg.Database), wait); err != nil {
					return fmt.Errorf("cmd: database not ready: %w", err)
				}
			}
			db, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("cmd: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(ctx, db); err != nil {
				return fmt.Errorf("cmd: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	c.Flags().DurationVar(&wait, "wait", defaultWaitTimeout, "wait for postgres to accept connections (0 disables)")
	return c
}

func sweepCommand(opts *Options, load func() (*coreconfig.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Evict idle sessions once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// Memory sessions live in the bot process; a separate sweep sees none.
			if b := cfg.Session.Backend; b == "" || b == coreconfig.SessionMemory {
				return errors.New("cmd: sweep needs a shared session backend, got memory")
			}
			if err := opts.LoggerInit(cfg); err != nil {
				return fmt.Errorf("cmd: logger init failed: %w", err)
			}
			defer func() { _ = opts.ShutdownLogger() }()

			ctx := cmd.Context()
			backends, err := bootstrap.OpenSessions(ctx, cfg)
			if err != nil {
				return err
			}
			defer backends.Close()

			stats, err := session.NewCollector(backends.Session, cfg.Session.GCPeriod(), cfg.Session.Lifetime()).Sweep(ctx)
			if err != nil {
				return fmt.Errorf("cmd: sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sessions=%d evicted=%d failed=%d\n", stats.Count, stats.Evicted, stats.Failed)
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
