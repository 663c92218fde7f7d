package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type migration struct {
	Version int
	Name    string
	// SQL per driver, statements separated by semicolons.
	SQL map[string]string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create users sections notes",
		SQL: map[string]string{
			DriverMySQL: `
				CREATE TABLE IF NOT EXISTS users (
					id CHAR(36) PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					created_at DATETIME(6) NOT NULL,
					updated_at DATETIME(6) NOT NULL
				) ENGINE=InnoDB;
				CREATE TABLE IF NOT EXISTS sections (
					id CHAR(36) PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					user_id CHAR(36) NOT NULL,
					created_at DATETIME(6) NOT NULL,
					updated_at DATETIME(6) NOT NULL,
					INDEX idx_sections_user_created (user_id, created_at),
					FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
				) ENGINE=InnoDB;
				CREATE TABLE IF NOT EXISTS notes (
					id CHAR(36) PRIMARY KEY,
					title VARCHAR(200) NOT NULL,
					content TEXT NOT NULL,
					section_id CHAR(36) NOT NULL,
					user_id CHAR(36) NOT NULL,
					created_at DATETIME(6) NOT NULL,
					updated_at DATETIME(6) NOT NULL,
					INDEX idx_notes_section_user_created (section_id, user_id, created_at),
					FOREIGN KEY (section_id) REFERENCES sections(id) ON DELETE CASCADE,
					FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
				) ENGINE=InnoDB`,
			DriverSQLite: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					email TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				);
				CREATE TABLE IF NOT EXISTS sections (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_sections_user_created ON sections (user_id, created_at);
				CREATE TABLE IF NOT EXISTS notes (
					id TEXT PRIMARY KEY,
					title TEXT NOT NULL,
					content TEXT NOT NULL,
					section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_notes_section_user_created ON notes (section_id, user_id, created_at)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
func (d *DB) Migrate(ctx context.Context) error {
	log.Info().Msg("Running database migrations")

	_, err := d.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := d.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	log.Debug().Int("current_version", current).Msg("Current schema version")

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		script, ok := m.SQL[d.driver]
		if !ok {
			return fmt.Errorf("migration %d has no %s variant", m.Version, d.driver)
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		err := d.InTx(ctx, func(tx *Tx) error {
			for i, stmt := range splitStatements(script) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d statement %d failed: %w", m.Version, i+1, err)
				}
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
