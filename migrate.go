package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/placesauth/internal/logging"
	"github.com/example/placesauth/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
)

// ApplyMigrations runs the embedded migrations against the provided Postgres DSN.
func ApplyMigrations(ctx context.Context, log logging.Logger, dbURL string) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	m, err := migrations.NewMigrator(db)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("checking migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state (version %d). Manual intervention required", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info(ctx, "database is up to date", "version", version)
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	log.Info(ctx, "database migrated", "from", version, "to", newVersion)
	return nil
}
