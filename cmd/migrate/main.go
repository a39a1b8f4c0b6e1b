package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/placesauth/internal/config"
	"github.com/example/placesauth/internal/logging"
	"github.com/example/placesauth/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force, cleanup")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
	)
	flag.Parse()

	log := logging.New(os.Stderr, "info", "text").With("cmd", "migrate")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, log, *command, *steps, *version); err != nil {
		log.Error(ctx, "migrate failed", "command", *command, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log logging.Logger, command string, steps int, version uint) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.DBAdapter != "postgres" {
		return fmt.Errorf("migrations only work with PostgreSQL, current adapter: %s", cfg.DBAdapter)
	}
	dsn, err := cfg.BuildPostgresDSN()
	if err != nil {
		return fmt.Errorf("postgres config error: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if command == "cleanup" {
		users, txs, err := cleanup(ctx, db)
		if err != nil {
			return err
		}
		log.Info(ctx, "cleanup complete", "users_deleted", users, "transactions_deleted", txs)
		return nil
	}

	m, err := migrations.NewMigrator(db)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		if err := migrateSteps(m, true, steps); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Info(ctx, "migrations applied")
	case "down":
		if err := migrateSteps(m, false, steps); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Info(ctx, "migrations rolled back")
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			v, err = 0, nil
		}
		if err != nil {
			return fmt.Errorf("reading version: %w", err)
		}
		if dirty {
			return fmt.Errorf("database is in a dirty state (version %d)", v)
		}
		log.Info(ctx, "current migration version", "version", v)
	case "force":
		if version == 0 {
			return errors.New("version required for force command (use -version flag)")
		}
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("forcing version: %w", err)
		}
		log.Info(ctx, "forced database version", "version", version)
	default:
		return fmt.Errorf("unknown command: %s (supported: up, down, version, force, cleanup)", command)
	}
	return nil
}

func migrateSteps(m *migrate.Migrate, up bool, steps int) error {
	var err error
	switch {
	case steps > 0 && up:
		err = m.Steps(steps)
	case steps > 0:
		err = m.Steps(-steps)
	case up:
		err = m.Up()
	default:
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// cleanup removes every transaction and user. Revoked tokens are kept until
// they would have expired anyway.
func cleanup(ctx context.Context, db *sql.DB) (users, txs int64, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning cleanup: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting transactions: %w", err)
	}
	txs, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting users: %w", err)
	}
	users, _ = res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing cleanup: %w", err)
	}
	return users, txs, nil
}
