package storage

import (
	"database/sql"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/alphahub/assets"
)

// runMigrations applies the embedded SQL files for the dialect that are not yet
// recorded in schema_migrations. Every file uses CREATE ... IF NOT EXISTS so a
// half-recorded run can be repeated safely.
func runMigrations(db *sql.DB, d dialect) error {
	const migrationTableSchema = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	);`

	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	dir := path.Join("migrations", d.name)
	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		var exists int
		err := db.QueryRow(d.rebind("SELECT 1 FROM schema_migrations WHERE version = ?"), file).Scan(&exists)
		if err == nil {
			continue
		} else if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		log.Info().Str("dialect", d.name).Str("file", file).Msg("Applying database migration...")

		content, err := assets.ReadFile(path.Join(dir, file))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to exec migration %s: %w", file, err)
		}

		if _, err := tx.Exec(
			d.rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
			file, time.Now().UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// migrationFiles lists the .sql files of an embedded directory in apply order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := assets.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	return files, nil
}
