package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/assets"
)

const migrationTableSchema = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME
	);`

// runMigrations applies the embedded schema migrations.
func runMigrations(db *sql.DB) error {
	return migrate(db, assets.FS(), "migrations")
}

// migrate applies every *.sql file under dir of fsys that is not yet recorded
// in schema_migrations, in lexical order, each in its own transaction.
func migrate(db *sql.DB, fsys fs.FS, dir string) error {
	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	pending, err := pendingMigrations(db, fsys, dir)
	if err != nil {
		return err
	}

	for _, version := range pending {
		content, err := fs.ReadFile(fsys, path.Join(dir, version))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", version, err)
		}

		log.Info().Str("file", version).Msg("Applying database migration...")
		if err := applyMigration(db, version, string(content)); err != nil {
			return err
		}
	}

	return nil
}

func pendingMigrations(db *sql.DB, fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", entry.Name()).Scan(&exists)
		switch {
		case err == nil:
			// applied
		case errors.Is(err, sql.ErrNoRows):
			pending = append(pending, entry.Name())
		default:
			return nil, fmt.Errorf("failed to check migration status: %w", err)
		}
	}
	slices.Sort(pending)

	return pending, nil
}

func applyMigration(db *sql.DB, version, content string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(content); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to exec migration %s: %w", version, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", version, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", version, err)
	}

	return tx.Commit()
}
