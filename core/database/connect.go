// Package database opens the SQL session store and applies its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/logger"
)

// DSN renders the driver connection string for cfg.
func DSN(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverSQLite {
		return cfg.Path
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// URL renders cfg as a postgres:// URL.
func URL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

func target(cfg config.DatabaseConfig) []slog.Attr {
	if cfg.Driver == config.DriverSQLite {
		return []slog.Attr{slog.String("driver", cfg.Driver), slog.String("db", cfg.Path)}
	}
	return []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
}

// Connect opens the database connection, configures the pool, and verifies connectivity.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, DSN(cfg))
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		attrs := append(target(cfg), slog.String("status", "error"), slog.Duration("duration", took), logger.Err(err))
		logger.Error(ctx, logger.CompDB, "db.connect", attrs...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if cfg.Driver == config.DriverSQLite {
		// One writer at a time; in-memory databases also live on a single connection.
		pool = 1
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	db.SetConnMaxIdleTime(0)
	logger.Debug(ctx, logger.CompDB, "db.pool", slog.Int("pool_open", pool))

	attrs := append(target(cfg), slog.String("status", "ok"), slog.Int("pool_open", pool), slog.Duration("duration", took))
	logger.Info(ctx, logger.CompDB, "db.connect", attrs...)
	return db, nil
}

// WaitForPostgres tries to connect to the DB until it is ready or timeout is reached.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	attempts := 0
	for {
		attempts++
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				_ = db.Close()
				return nil
			}
			_ = db.Close()
		}
		logger.Debug(ctx, logger.CompDB, "db.wait", slog.Int("attempts", attempts), logger.Err(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-time.After(2 * time.Second):
		}
	}
}
