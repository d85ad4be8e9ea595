// Package sqlite provides a SQLite-backed host.Storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/storage/sqlite/migrations"
)

// Store persists plugin data in SQLite, one row per scope/visibility/key.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get decodes the value stored under key into dest.
func (s *Store) Get(ctx context.Context, scope host.Scope, vis host.Visibility, key string, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var data []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM plugin_data
		 WHERE scope_kind = ? AND scope_id = ? AND visibility = ? AND key = ?`,
		string(scope.Kind), scope.ID, string(vis), key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s/%s/%s: %w", scope, vis, key, err)
	}
	if err := host.Decode(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set upserts the value stored under key.
func (s *Store) Set(ctx context.Context, scope host.Scope, vis host.Visibility, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := host.Encode(value)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO plugin_data (scope_kind, scope_id, visibility, key, value, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (scope_kind, scope_id, visibility, key)
		 DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(scope.Kind), scope.ID, string(vis), key, data, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s/%s: %w", scope, vis, key, err)
	}
	return nil
}

// Remove deletes the value stored under key.
func (s *Store) Remove(ctx context.Context, scope host.Scope, vis host.Visibility, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM plugin_data
		 WHERE scope_kind = ? AND scope_id = ? AND visibility = ? AND key = ?`,
		string(scope.Kind), scope.ID, string(vis), key,
	)
	if err != nil {
		return fmt.Errorf("remove %s/%s/%s: %w", scope, vis, key, err)
	}
	return nil
}

// UpdatedAt reports when the value under key was last written.
func (s *Store) UpdatedAt(ctx context.Context, scope host.Scope, vis host.Visibility, key string) (time.Time, bool, error) {
	var millis int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT updated_at FROM plugin_data
		 WHERE scope_kind = ? AND scope_id = ? AND visibility = ? AND key = ?`,
		string(scope.Kind), scope.ID, string(vis), key,
	).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("updated_at %s/%s/%s: %w", scope, vis, key, err)
	}
	return time.UnixMilli(millis).UTC(), true, nil
}

// applyMigrations executes each embedded migration at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var count int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}
