package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"slices"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationState is one embedded schema migration and whether it has run.
type MigrationState struct {
	Version   string
	Applied   bool
	AppliedAt time.Time
}

// embeddedMigrations lists the bundled migration files in apply order.
func embeddedMigrations() ([]string, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	for i, name := range names {
		names[i] = strings.TrimPrefix(name, "migrations/")
	}
	slices.Sort(names)
	return names, nil
}

// appliedMigrations creates the bookkeeping table if needed and returns the
// applied versions with their timestamps.
func (p *Pool) appliedMigrations(ctx context.Context) (map[string]time.Time, error) {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var (
			version string
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// Migrate applies the embedded migrations that have not run yet, each in its own transaction.
func (p *Pool) Migrate(ctx context.Context) error {
	applied, err := p.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	names, err := embeddedMigrations()
	if err != nil {
		return err
	}

	for _, name := range names {
		if _, done := applied[name]; done {
			continue
		}
		if err := p.applyMigration(ctx, name); err != nil {
			return err
		}
		log.Printf("postgres: applied migration %s", name)
	}
	return nil
}

func (p *Pool) applyMigration(ctx context.Context, name string) error {
	script, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// MigrationStatus reports every embedded migration in apply order.
func (p *Pool) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	applied, err := p.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	names, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, len(names))
	for i, name := range names {
		at, ok := applied[name]
		states[i] = MigrationState{Version: name, Applied: ok, AppliedAt: at}
	}
	return states, nil
}
