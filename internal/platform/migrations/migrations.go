// Package migrations applies the bundled database scripts to a live
// database. The Postgres image runs the same scripts on first bootstrap; this
// runner makes every other start converge to the same schema, applying each
// script at most once.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	dbscripts "github.com/filmbay/rental-service/database_scripts"
)

// Apply executes every bundled script that has not been applied yet, in
// lexical order, each inside its own transaction.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := scriptNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		applied, err := isApplied(ctx, db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := applyOne(ctx, db, name); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func scriptNames() ([]string, error) {
	entries, err := dbscripts.FS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read scripts: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM schema_migrations WHERE filename = $1
	`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", name, err)
	}
	return count > 0, nil
}

func applyOne(ctx context.Context, db *sql.DB, name string) error {
	script, err := dbscripts.FS.ReadFile(name)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (filename) VALUES ($1)
	`, name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
