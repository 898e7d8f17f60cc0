package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"newsroom/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one numbered schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationManager applies the embedded schema migrations
type MigrationManager struct {
	db    *PostgresDB
	files fs.FS
}

// NewMigrationManager creates a manager for the embedded migrations
func NewMigrationManager(db *PostgresDB) *MigrationManager {
	return &MigrationManager{db: db, files: migrationFiles}
}

// Migrate runs all pending migrations in version order
func (m *MigrationManager) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	available, err := m.load()
	if err != nil {
		return 0, fmt.Errorf("failed to load migrations: %w", err)
	}

	var pending []Migration
	for _, mig := range available {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	if len(pending) == 0 {
		logger.Debug("No pending migrations")
		return 0, nil
	}

	for _, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return 0, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}

	logger.Info("Database migrated", "applied", len(pending))
	return len(pending), nil
}

func (m *MigrationManager) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *MigrationManager) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions[v] = true
	}
	return versions, rows.Err()
}

// load reads files named like "001_create_raw_articles.sql"
func (m *MigrationManager) load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, description, ok := parseMigrationName(entry.Name())
		if !ok {
			logger.Warn("Skipping migration file with invalid name", "file", entry.Name())
			continue
		}
		content, err := fs.ReadFile(m.files, "migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version:     version,
			Description: description,
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseMigrationName(name string) (int, string, bool) {
	parts := strings.SplitN(strings.TrimSuffix(name, ".sql"), "_", 2)
	if len(parts) < 2 {
		return 0, "", false
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	return version, strings.ReplaceAll(parts[1], "_", " "), true
}

func (m *MigrationManager) apply(ctx context.Context, mig Migration) error {
	logger.Info("Applying migration", "version", mig.Version, "description", mig.Description)

	return withTx(ctx, m.db.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schema_migrations (version, description)
			VALUES ($1, $2)
			ON CONFLICT (version) DO NOTHING
		`, mig.Version, mig.Description)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}
