package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/logger"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every up migration for the driver of db.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	driverName := db.DriverName()
	dir := path.Join("migrations", driverName)
	files := listMigrationFiles(dir)
	preview, truncated := logger.SummarizeStrings(files, 6)
	attrs := []slog.Attr{
		slog.String("driver", driverName),
		slog.Int("count", len(files)),
	}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	logger.Debug(ctx, logger.CompMigrate, "migrate.resolve", attrs...)

	src, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("migrations source %s: %w", driverName, err)
	}

	var (
		drv     database.Driver
		release func() error
	)
	switch driverName {
	case config.DriverPostgres:
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("migrations conn: %w", err)
		}
		release = conn.Close
		drv, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to initialize migrations: %w", err)
		}
	case config.DriverSQLite:
		// Closing this driver would close db, so it is left open.
		drv, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("failed to initialize migrations: %w", err)
		}
	default:
		return fmt.Errorf("migrations: unsupported driver %q", driverName)
	}
	if release != nil {
		defer func() { _ = release() }()
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, drv)
	if err != nil {
		logger.Error(ctx, logger.CompMigrate, "migrate.init", slog.String("status", "error"), logger.Err(err))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info(ctx, logger.CompMigrate, "migrate.summary",
			slog.String("status", "ok"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("count", 0),
			slog.Duration("duration", took),
		)
		return nil
	default:
		logger.Error(ctx, logger.CompMigrate, "migrate.apply",
			slog.String("status", "error"),
			slog.Duration("duration", took),
			logger.Err(upErr),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		names, cut := logger.SummarizeStrings(applied, 6)
		logger.Debug(ctx, logger.CompMigrate, "migrate.applied",
			slog.Int("count", len(applied)),
			slog.String("files_preview", names),
			slog.Bool("files_truncated", cut),
		)
	}
	logger.Info(ctx, logger.CompMigrate, "migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("count", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func listMigrationFiles(dir string) []string {
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
