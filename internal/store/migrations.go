package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded schema migrations, mirroring
// pkg/database/client.go::runMigrations's embedded-iofs approach but
// against our own hand-written SQL (see DESIGN.md's "Dropped teacher
// dependencies" for why ent's generated-migration path does not
// apply). A short-lived database/sql connection is used here, since
// golang-migrate's postgres driver wants one; the long-lived pgxpool
// used for request traffic is opened separately by NewPool.
func RunMigrations(ctx context.Context, cfg Config) error {
	db, err := stdsql.Open("pgx", cfg.dsn())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, cfg.Database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return sourceDriver.Close()
}
