package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var migrations embed.FS

const migrationsDir = "sql"

// gooseUp is a seam for testing goose.UpContext.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// EnsureMigrated applies every pending embedded migration.
func EnsureMigrated(ctx context.Context, db *sql.DB, log zerolog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_start").Str("status", "in_progress").Msg("")

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("pgx"); err != nil {
		log.Error().Str("event", "db_migration_failed").Str("status", "error").
			Err(err).Int64("duration_ms", time.Since(start).Milliseconds()).Msg("")
		return fmt.Errorf("set migration dialect: %w", err)
	}

	if err := gooseUp(ctx, db, migrationsDir); err != nil {
		log.Error().Str("event", "db_migration_failed").Str("status", "error").
			Err(err).Int64("duration_ms", time.Since(start).Milliseconds()).Msg("")
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Info().Str("event", "db_migration_success").Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).Msg("")
	return nil
}
